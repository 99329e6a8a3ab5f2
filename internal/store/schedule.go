package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndenisov/cleanday/internal/model"
)

// ErrSlotTaken is returned by Claim when the slot is already held by a
// different user.
var ErrSlotTaken = errors.New("slot already taken by another user")

// ErrNotClaimant is returned by Release when the acting user does not hold
// the slot. Releasing an unclaimed slot fails the same way.
var ErrNotClaimant = errors.New("slot not claimed by this user")

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const slotCols = `s.id, s.apartment_id, s.week_start, s.day_of_week, s.user_id, u.username, s.is_taken, s.created_at`

func scanSlot(scanner interface{ Scan(...any) error }) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	var userID sql.NullInt64
	var username sql.NullString

	err := scanner.Scan(
		&slot.ID, &slot.ApartmentID, &slot.WeekStart, &slot.DayOfWeek,
		&userID, &username, &slot.IsTaken, &slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		slot.UserID = &userID.Int64
	}
	if username.Valid {
		slot.Username = &username.String
	}
	return &slot, nil
}

// SeedWeek creates the seven unclaimed slots for (apartment, week) if they
// do not exist yet. Safe to call repeatedly and concurrently: the unique
// constraint on (apartment_id, week_start, day_of_week) makes each insert
// at-most-once.
func (s *ScheduleStore) SeedWeek(apartmentID int64, weekStart string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for day := 0; day < 7; day++ {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO schedule_slots (apartment_id, week_start, day_of_week) VALUES (?, ?, ?)`,
			apartmentID, weekStart, day,
		)
		if err != nil {
			return fmt.Errorf("seed slot day %d: %w", day, err)
		}
	}
	return tx.Commit()
}

// ListWeek returns the seven slots for (apartment, week) ordered by day,
// seeding them first if absent.
func (s *ScheduleStore) ListWeek(apartmentID int64, weekStart string) ([]model.ScheduleSlot, error) {
	if err := s.SeedWeek(apartmentID, weekStart); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT `+slotCols+` FROM schedule_slots s
		 LEFT JOIN users u ON u.id = s.user_id
		 WHERE s.apartment_id = ? AND s.week_start = ?
		 ORDER BY s.day_of_week ASC`,
		apartmentID, weekStart,
	)
	if err != nil {
		return nil, fmt.Errorf("list week: %w", err)
	}
	defer rows.Close()

	var slots []model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

// GetByID returns the slot scoped to the given apartment, or nil if it does
// not exist or belongs elsewhere.
func (s *ScheduleStore) GetByID(id, apartmentID int64) (*model.ScheduleSlot, error) {
	row := s.db.QueryRow(
		`SELECT `+slotCols+` FROM schedule_slots s
		 LEFT JOIN users u ON u.id = s.user_id
		 WHERE s.id = ? AND s.apartment_id = ?`,
		id, apartmentID,
	)
	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// Claim assigns the slot to the acting user. A slot held by someone else
// fails with ErrSlotTaken. Any other slot the user holds in the same week
// for this apartment is released in the same transaction, so a user holds
// at most one claimed day per week.
func (s *ScheduleStore) Claim(slotID, userID, apartmentID int64) (*model.ScheduleSlot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var weekStart string
	var holder sql.NullInt64
	var isTaken bool
	err = tx.QueryRow(
		`SELECT week_start, user_id, is_taken FROM schedule_slots WHERE id = ? AND apartment_id = ?`,
		slotID, apartmentID,
	).Scan(&weekStart, &holder, &isTaken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot for claim: %w", err)
	}

	if isTaken && holder.Valid && holder.Int64 != userID {
		return nil, ErrSlotTaken
	}

	_, err = tx.Exec(
		`UPDATE schedule_slots SET user_id = NULL, is_taken = 0
		 WHERE apartment_id = ? AND week_start = ? AND user_id = ? AND id != ?`,
		apartmentID, weekStart, userID, slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("release prior slot: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE schedule_slots SET user_id = ?, is_taken = 1 WHERE id = ?`,
		userID, slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetByID(slotID, apartmentID)
}

// Release clears the slot's claimant. Only the current claimant may release;
// anyone else, including on an already-unclaimed slot, gets ErrNotClaimant.
func (s *ScheduleStore) Release(slotID, userID, apartmentID int64) (*model.ScheduleSlot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var holder sql.NullInt64
	err = tx.QueryRow(
		`SELECT user_id FROM schedule_slots WHERE id = ? AND apartment_id = ?`,
		slotID, apartmentID,
	).Scan(&holder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot for release: %w", err)
	}

	if !holder.Valid || holder.Int64 != userID {
		return nil, ErrNotClaimant
	}

	_, err = tx.Exec(
		`UPDATE schedule_slots SET user_id = NULL, is_taken = 0 WHERE id = ?`,
		slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release: %w", err)
	}
	return s.GetByID(slotID, apartmentID)
}
