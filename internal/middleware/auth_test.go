package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/database"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
)

func setupAuthTest(t *testing.T) (*sql.DB, *auth.TokenManager, *store.UserStore, *store.HousingStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return db, tokens, store.NewUserStore(db), store.NewHousingStore(db)
}

func createTestUser(t *testing.T, us *store.UserStore, username string) *model.User {
	t.Helper()
	u, err := us.Create(username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestApartment(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO buildings (code, name) VALUES ('T1', 'Test')`)
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

func TestRequireAuthNoHeader(t *testing.T) {
	_, tokens, us, _ := setupAuthTest(t)

	handler := RequireAuth(tokens, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	_, tokens, us, _ := setupAuthTest(t)

	handler := RequireAuth(tokens, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	_, tokens, us, _ := setupAuthTest(t)
	u := createTestUser(t, us, "alice")

	token, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var gotID int64
	handler := RequireAuth(tokens, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotID != u.ID {
		t.Errorf("context user id = %d, want %d", gotID, u.ID)
	}
}

func TestRequireAuthUnknownSubject(t *testing.T) {
	_, tokens, us, _ := setupAuthTest(t)

	// Token for a user that was never created.
	token, err := tokens.Issue(&model.User{ID: 99, Username: "ghost"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := RequireAuth(tokens, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireMemberUnassigned(t *testing.T) {
	_, _, us, hs := setupAuthTest(t)
	u := createTestUser(t, us, "alice")

	handler := RequireMember(hs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, Username: u.Username}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRequireMemberAssigned(t *testing.T) {
	db, _, us, hs := setupAuthTest(t)
	u := createTestUser(t, us, "alice")
	apt := createTestApartment(t, db)
	if _, err := hs.Join(apt, u.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	var gotApt int64
	handler := RequireMember(hs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApt = auth.ApartmentID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, Username: u.Username}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotApt != apt {
		t.Errorf("context apartment id = %d, want %d", gotApt, apt)
	}
}

func TestRequireManager(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{store.RoleManager, http.StatusOK},
		{store.RoleResident, http.StatusForbidden},
	}

	for _, tt := range tests {
		handler := RequireManager(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
		req = req.WithContext(auth.WithMember(req.Context(), model.ApartmentMember{
			ID: 1, ApartmentID: 1, UserID: 1, Role: tt.role,
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("role %s: status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}
}
