package store

import (
	"database/sql"
	"fmt"

	"github.com/ndenisov/cleanday/internal/model"
)

// DefaultTasks is the built-in "general cleaning" checklist used to seed a
// day when the apartment relies on the default set.
var DefaultTasks = []string{
	"Sweep and mop the floors",
	"Take out the trash",
	"Wash the dishes",
	"Tidy the bedroom",
	"Clean the toilet and bathroom",
	"Tidy the kitchen",
}

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, apartment_id, day_of_week, name, is_done`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(&t.ID, &t.ApartmentID, &t.DayOfWeek, &t.Name, &t.IsDone)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SeedDay creates the checklist for (apartment, day) if none exists. The
// source set is chosen once at creation time: the default set when the
// apartment's use_default_tasks flag is on, otherwise the apartment's
// templates — which may be empty, leaving an empty checklist. Later flag or
// template changes never touch already-seeded days.
func (s *TaskStore) SeedDay(apartmentID int64, dayOfWeek int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(
		`SELECT 1 FROM tasks WHERE apartment_id = ? AND day_of_week = ? LIMIT 1`,
		apartmentID, dayOfWeek,
	).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check day seeded: %w", err)
	}

	useDefault := true
	err = tx.QueryRow(
		`SELECT use_default_tasks FROM apartments WHERE id = ?`,
		apartmentID,
	).Scan(&useDefault)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("get apartment flag: %w", err)
	}

	names := DefaultTasks
	if !useDefault {
		names = nil
		rows, err := tx.Query(
			`SELECT name FROM task_templates WHERE apartment_id = ? ORDER BY id ASC`,
			apartmentID,
		)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("scan template: %w", err)
			}
			names = append(names, name)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate templates: %w", err)
		}
	}

	for _, name := range names {
		_, err := tx.Exec(
			`INSERT INTO tasks (apartment_id, day_of_week, name) VALUES (?, ?, ?)`,
			apartmentID, dayOfWeek, name,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}
	return tx.Commit()
}

// ListDay returns the checklist for (apartment, day) in insertion order,
// seeding it first if absent.
func (s *TaskStore) ListDay(apartmentID int64, dayOfWeek int) ([]model.Task, error) {
	if err := s.SeedDay(apartmentID, dayOfWeek); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE apartment_id = ? AND day_of_week = ? ORDER BY id ASC`,
		apartmentID, dayOfWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("list day tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Toggle flips the task's done state. When a task flips to done and the
// acting user holds the taken slot for the task's (apartment, day), the
// whole day's checklist is checked: if non-empty and fully done, the user's
// total_cleanings counter is incremented by one in the same transaction.
// The check runs on every flip to done, so re-completing a day after
// un-toggling a task credits again.
//
// Returns the updated task, nil when the task does not exist, and whether
// credit was awarded.
func (s *TaskStore) Toggle(taskID, userID int64) (*model.Task, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get task for toggle: %w", err)
	}

	task.IsDone = !task.IsDone
	if _, err := tx.Exec(`UPDATE tasks SET is_done = ? WHERE id = ?`, task.IsDone, task.ID); err != nil {
		return nil, false, fmt.Errorf("toggle task: %w", err)
	}

	credited := false
	if task.IsDone {
		var holds int
		err = tx.QueryRow(
			`SELECT COUNT(1) FROM schedule_slots
			 WHERE apartment_id = ? AND day_of_week = ? AND user_id = ? AND is_taken = 1`,
			task.ApartmentID, task.DayOfWeek, userID,
		).Scan(&holds)
		if err != nil {
			return nil, false, fmt.Errorf("check slot claimant: %w", err)
		}

		if holds > 0 {
			var total, done int
			err = tx.QueryRow(
				`SELECT COUNT(1), COALESCE(SUM(is_done), 0) FROM tasks
				 WHERE apartment_id = ? AND day_of_week = ?`,
				task.ApartmentID, task.DayOfWeek,
			).Scan(&total, &done)
			if err != nil {
				return nil, false, fmt.Errorf("count day tasks: %w", err)
			}

			if total > 0 && done == total {
				_, err = tx.Exec(
					`UPDATE users SET total_cleanings = total_cleanings + 1 WHERE id = ?`,
					userID,
				)
				if err != nil {
					return nil, false, fmt.Errorf("increment total cleanings: %w", err)
				}
				credited = true
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit toggle: %w", err)
	}
	return task, credited, nil
}

// --- Template methods ---

const templateCols = `id, apartment_id, name, description`

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	err := scanner.Scan(&t.ID, &t.ApartmentID, &t.Name, &t.Description)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskStore) ListTemplates(apartmentID int64) ([]model.TaskTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+templateCols+` FROM task_templates WHERE apartment_id = ? ORDER BY id ASC`,
		apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.TaskTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TaskStore) CreateTemplate(apartmentID int64, name, description string) (*model.TaskTemplate, error) {
	result, err := s.db.Exec(
		`INSERT INTO task_templates (apartment_id, name, description) VALUES (?, ?, ?)`,
		apartmentID, name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM task_templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// DeleteTemplate removes a template scoped to the apartment. Returns false
// when no matching template exists.
func (s *TaskStore) DeleteTemplate(id, apartmentID int64) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM task_templates WHERE id = ? AND apartment_id = ?`,
		id, apartmentID,
	)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
