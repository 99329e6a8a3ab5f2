package store

import (
	"database/sql"
	"testing"

	"github.com/ndenisov/cleanday/internal/model"
)

func setUseDefault(t *testing.T, db *sql.DB, apartmentID int64, v bool) {
	t.Helper()
	if _, err := db.Exec(`UPDATE apartments SET use_default_tasks = ? WHERE id = ?`, v, apartmentID); err != nil {
		t.Fatalf("set use_default_tasks: %v", err)
	}
}

func TestListDaySeedsDefaultSet(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)

	tasks, err := ts.ListDay(apt, 0)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(tasks) != len(DefaultTasks) {
		t.Fatalf("expected %d tasks, got %d", len(DefaultTasks), len(tasks))
	}
	for i, task := range tasks {
		if task.Name != DefaultTasks[i] {
			t.Errorf("task[%d].Name = %q, want %q", i, task.Name, DefaultTasks[i])
		}
		if task.IsDone {
			t.Errorf("task[%d] should start not done", i)
		}
		if task.DayOfWeek != 0 {
			t.Errorf("task[%d].DayOfWeek = %d, want 0", i, task.DayOfWeek)
		}
	}
}

func TestListDaySeedsOnce(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)

	first, _ := ts.ListDay(apt, 2)
	second, err := ts.ListDay(apt, 2)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("checklist grew on second read: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("task[%d] identity changed", i)
		}
	}
}

func TestListDaySeedsFromTemplates(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)
	setUseDefault(t, db, apt, false)

	if _, err := ts.CreateTemplate(apt, "Water the plants", ""); err != nil {
		t.Fatalf("create template: %v", err)
	}
	if _, err := ts.CreateTemplate(apt, "Vacuum the hallway", "weekly"); err != nil {
		t.Fatalf("create template: %v", err)
	}

	tasks, err := ts.ListDay(apt, 4)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != "Water the plants" || tasks[1].Name != "Vacuum the hallway" {
		t.Errorf("unexpected task names: %q, %q", tasks[0].Name, tasks[1].Name)
	}
}

func TestListDayEmptyWhenNoTemplates(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)
	setUseDefault(t, db, apt, false)

	tasks, err := ts.ListDay(apt, 1)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty checklist, got %d tasks", len(tasks))
	}
}

func TestSeededDayIgnoresLaterFlagChange(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)

	seeded, _ := ts.ListDay(apt, 3)

	// Flipping the flag and adding templates must not rewrite the day.
	setUseDefault(t, db, apt, false)
	if _, err := ts.CreateTemplate(apt, "Mow the lawn", ""); err != nil {
		t.Fatalf("create template: %v", err)
	}

	after, err := ts.ListDay(apt, 3)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(after) != len(seeded) {
		t.Fatalf("checklist changed after flag flip: %d -> %d", len(seeded), len(after))
	}
	for i := range seeded {
		if after[i].ID != seeded[i].ID || after[i].Name != seeded[i].Name {
			t.Errorf("task[%d] changed after flag flip", i)
		}
	}

	// A day seeded after the flip uses the templates.
	other, _ := ts.ListDay(apt, 5)
	if len(other) != 1 || other[0].Name != "Mow the lawn" {
		t.Errorf("newly seeded day should use templates, got %v", other)
	}
}

func TestToggleFlipsState(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	u := createUser(t, us, "alice")

	tasks, _ := ts.ListDay(apt, 0)

	task, credited, err := ts.Toggle(tasks[0].ID, u.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !task.IsDone {
		t.Error("task should be done after toggle")
	}
	if credited {
		t.Error("partial completion must not credit")
	}

	task, credited, err = ts.Toggle(tasks[0].ID, u.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if task.IsDone {
		t.Error("task should be undone after second toggle")
	}
	if credited {
		t.Error("un-toggling must not credit")
	}
}

func TestToggleUnknownTask(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	us := NewUserStore(db)
	u := createUser(t, us, "alice")

	task, credited, err := ts.Toggle(9999, u.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if task != nil || credited {
		t.Error("expected nil task and no credit for unknown id")
	}
}

// claimDay seeds the week and claims the slot for the given day.
func claimDay(t *testing.T, ss *ScheduleStore, apt, userID int64, day int) {
	t.Helper()
	slots, err := ss.ListWeek(apt, testWeek)
	if err != nil {
		t.Fatalf("seed week: %v", err)
	}
	if _, err := ss.Claim(slots[day].ID, userID, apt); err != nil {
		t.Fatalf("claim day %d: %v", day, err)
	}
}

func totalCleanings(t *testing.T, us *UserStore, id int64) int {
	t.Helper()
	u, err := us.GetByID(id)
	if err != nil || u == nil {
		t.Fatalf("get user: %v", err)
	}
	return u.TotalCleanings
}

func TestCompletionCreditsClaimant(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ss := NewScheduleStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	u := createUser(t, us, "alice")

	const day = 2
	claimDay(t, ss, apt, u.ID, day)
	tasks, _ := ts.ListDay(apt, day)

	for i, task := range tasks {
		_, credited, err := ts.Toggle(task.ID, u.ID)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		last := i == len(tasks)-1
		if credited != last {
			t.Errorf("toggle %d: credited = %v, want %v", i, credited, last)
		}
	}

	if got := totalCleanings(t, us, u.ID); got != 1 {
		t.Errorf("total_cleanings = %d, want 1", got)
	}
}

func TestRecompletionCreditsAgain(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ss := NewScheduleStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	u := createUser(t, us, "alice")

	const day = 3
	claimDay(t, ss, apt, u.ID, day)
	tasks, _ := ts.ListDay(apt, day)

	for _, task := range tasks {
		ts.Toggle(task.ID, u.ID)
	}
	if got := totalCleanings(t, us, u.ID); got != 1 {
		t.Fatalf("total_cleanings after completion = %d, want 1", got)
	}

	// Un-toggle one task and re-toggle it: the day completes again and the
	// counter moves again.
	ts.Toggle(tasks[0].ID, u.ID)
	_, credited, err := ts.Toggle(tasks[0].ID, u.ID)
	if err != nil {
		t.Fatalf("re-toggle: %v", err)
	}
	if !credited {
		t.Error("re-completion should credit")
	}
	if got := totalCleanings(t, us, u.ID); got != 2 {
		t.Errorf("total_cleanings = %d, want 2", got)
	}
}

func TestNoCreditWithoutClaim(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	u := createUser(t, us, "alice")

	tasks, _ := ts.ListDay(apt, 1)
	for _, task := range tasks {
		_, credited, err := ts.Toggle(task.ID, u.ID)
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if credited {
			t.Error("credit awarded without a claimed slot")
		}
	}
	if got := totalCleanings(t, us, u.ID); got != 0 {
		t.Errorf("total_cleanings = %d, want 0", got)
	}
}

func TestCreditGoesToActorNotClaimant(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ss := NewScheduleStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	alice := createUser(t, us, "alice")
	bob := createUser(t, us, "bob")

	const day = 4
	claimDay(t, ss, apt, alice.ID, day)
	tasks, _ := ts.ListDay(apt, day)

	// Bob finishes the checklist while Alice holds the slot. Credit attaches
	// to the slot holder acting, so nobody gets it.
	for _, task := range tasks {
		_, credited, err := ts.Toggle(task.ID, bob.ID)
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if credited {
			t.Error("non-claimant must not be credited")
		}
	}
	if got := totalCleanings(t, us, alice.ID); got != 0 {
		t.Errorf("alice total_cleanings = %d, want 0", got)
	}
	if got := totalCleanings(t, us, bob.ID); got != 0 {
		t.Errorf("bob total_cleanings = %d, want 0", got)
	}
}

func TestNoCreditForEmptyChecklist(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ss := NewScheduleStore(db)
	us := NewUserStore(db)
	apt := createApartment(t, db)
	u := createUser(t, us, "alice")
	setUseDefault(t, db, apt, false)

	const day = 5
	claimDay(t, ss, apt, u.ID, day)
	tasks, err := ts.ListDay(apt, day)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty checklist, got %d", len(tasks))
	}
	if got := totalCleanings(t, us, u.ID); got != 0 {
		t.Errorf("total_cleanings = %d, want 0", got)
	}
}

func TestTemplates(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt := createApartment(t, db)

	tpl, err := ts.CreateTemplate(apt, "Dust the shelves", "top to bottom")
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if tpl.Name != "Dust the shelves" || tpl.Description != "top to bottom" {
		t.Errorf("unexpected template: %+v", tpl)
	}

	templates, err := ts.ListTemplates(apt)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(templates))
	}

	removed, err := ts.DeleteTemplate(tpl.ID, apt)
	if err != nil {
		t.Fatalf("delete template: %v", err)
	}
	if !removed {
		t.Error("delete should report success")
	}

	templates, _ = ts.ListTemplates(apt)
	if len(templates) != 0 {
		t.Errorf("expected 0 templates after delete, got %d", len(templates))
	}
}

func TestDeleteTemplateScopedToApartment(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	apt1 := createApartment(t, db)
	apt2 := createApartment(t, db)

	tpl, _ := ts.CreateTemplate(apt1, "Clean the windows", "")

	removed, err := ts.DeleteTemplate(tpl.ID, apt2)
	if err != nil {
		t.Fatalf("delete template: %v", err)
	}
	if removed {
		t.Error("template of another apartment must not be deletable")
	}

	var got []model.TaskTemplate
	got, _ = ts.ListTemplates(apt1)
	if len(got) != 1 {
		t.Errorf("template should survive, got %d", len(got))
	}
}
