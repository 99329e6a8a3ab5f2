package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/database"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
)

var testTime = time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC) // a Wednesday

func setupHandlerTest(t *testing.T) (*sql.DB, *store.ScheduleStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, store.NewScheduleStore(db), store.NewUserStore(db)
}

func insertApartment(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO buildings (code, name) VALUES ('T' || (SELECT COUNT(1)+1 FROM buildings), 'Test')`)
	if err != nil {
		t.Fatalf("insert building: %v", err)
	}
	buildingID, _ := res.LastInsertId()
	res, err = db.Exec(`INSERT INTO apartments (building_id, number) VALUES (?, 1)`, buildingID)
	if err != nil {
		t.Fatalf("insert apartment: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func insertUser(t *testing.T, us *store.UserStore, username string) *model.User {
	t.Helper()
	u, err := us.Create(username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newScheduleHandler(ss *store.ScheduleStore) *ScheduleHandler {
	h := NewScheduleHandler(ss, nil, slog.New(slog.DiscardHandler))
	h.now = func() time.Time { return testTime }
	return h
}

// memberRequest builds a request carrying auth and membership context.
func memberRequest(method, target string, userID, apartmentID int64) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{UserID: userID, Username: "test"})
	ctx = auth.WithMember(ctx, model.ApartmentMember{ApartmentID: apartmentID, UserID: userID, Role: store.RoleResident})
	return req.WithContext(ctx)
}

func TestWeekReturnsSevenSlots(t *testing.T) {
	db, ss, us := setupHandlerTest(t)
	h := newScheduleHandler(ss)
	apt := insertApartment(t, db)
	u := insertUser(t, us, "alice")

	rec := httptest.NewRecorder()
	h.Week(rec, memberRequest(http.MethodGet, "/api/schedule", u.ID, apt))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var slots []model.ScheduleSlot
	if err := json.NewDecoder(rec.Body).Decode(&slots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	// The Wednesday test clock falls in the week starting Monday the 24th.
	if slots[0].WeekStart != "2026-08-24" {
		t.Errorf("week_start = %q, want 2026-08-24", slots[0].WeekStart)
	}
}

func TestClaimConflictStatus(t *testing.T) {
	db, ss, us := setupHandlerTest(t)
	h := newScheduleHandler(ss)
	apt := insertApartment(t, db)
	alice := insertUser(t, us, "alice")
	bob := insertUser(t, us, "bob")

	slots, err := ss.ListWeek(apt, "2026-08-24")
	if err != nil {
		t.Fatalf("seed week: %v", err)
	}
	if _, err := ss.Claim(slots[0].ID, alice.ID, apt); err != nil {
		t.Fatalf("claim: %v", err)
	}

	req := memberRequest(http.MethodPost, "/api/schedule/claim", bob.ID, apt)
	req.SetPathValue("id", strconv.FormatInt(slots[0].ID, 10))
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestClaimUnknownSlot(t *testing.T) {
	db, ss, us := setupHandlerTest(t)
	h := newScheduleHandler(ss)
	apt := insertApartment(t, db)
	u := insertUser(t, us, "alice")

	req := memberRequest(http.MethodPost, "/api/schedule/claim", u.ID, apt)
	req.SetPathValue("id", "9999")
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReleaseByNonClaimantStatus(t *testing.T) {
	db, ss, us := setupHandlerTest(t)
	h := newScheduleHandler(ss)
	apt := insertApartment(t, db)
	alice := insertUser(t, us, "alice")
	bob := insertUser(t, us, "bob")

	slots, _ := ss.ListWeek(apt, "2026-08-24")
	ss.Claim(slots[2].ID, alice.ID, apt)

	req := memberRequest(http.MethodPost, "/api/schedule/release", bob.ID, apt)
	req.SetPathValue("id", fmt.Sprint(slots[2].ID))
	rec := httptest.NewRecorder()
	h.Release(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestClaimInvalidID(t *testing.T) {
	_, ss, _ := setupHandlerTest(t)
	h := newScheduleHandler(ss)

	req := memberRequest(http.MethodPost, "/api/schedule/claim", 1, 1)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
