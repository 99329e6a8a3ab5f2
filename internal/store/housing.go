package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndenisov/cleanday/internal/model"
)

// Campus layout seeded on first access: each building gets apartments 1-96.
var buildingCodes = []string{"C1", "C2", "R1", "R2", "R3", "R4", "R5", "R6"}

const apartmentsPerBuilding = 96

var (
	// ErrAlreadyMember is returned by Join when the user already lives somewhere.
	ErrAlreadyMember = errors.New("user already assigned to an apartment")
	// ErrApartmentFull is returned by Join and Move when the target is at capacity.
	ErrApartmentFull = errors.New("apartment is full")
	// ErrLastManager is returned by RemoveMember when removing the member would
	// leave the apartment without a manager.
	ErrLastManager = errors.New("cannot remove the only manager")
)

const (
	RoleManager  = "manager"
	RoleResident = "resident"
)

type HousingStore struct {
	db *sql.DB
}

func NewHousingStore(db *sql.DB) *HousingStore {
	return &HousingStore{db: db}
}

func scanApartment(scanner interface{ Scan(...any) error }) (*model.Apartment, error) {
	var a model.Apartment
	err := scanner.Scan(&a.ID, &a.BuildingID, &a.Number, &a.MaxResidents, &a.UseDefaultTasks)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const apartmentCols = `id, building_id, number, max_residents, use_default_tasks`

// SeedBuildings creates the campus directory if it is empty. Idempotent:
// a non-zero building count makes it a no-op, and the unique code constraint
// guards concurrent first calls.
func (s *HousingStore) SeedBuildings() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM buildings`).Scan(&count); err != nil {
		return fmt.Errorf("count buildings: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, code := range buildingCodes {
		result, err := tx.Exec(`INSERT OR IGNORE INTO buildings (code, name) VALUES (?, ?)`, code, code)
		if err != nil {
			return fmt.Errorf("insert building %s: %w", code, err)
		}
		buildingID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for number := 1; number <= apartmentsPerBuilding; number++ {
			_, err := tx.Exec(
				`INSERT OR IGNORE INTO apartments (building_id, number, max_residents) VALUES (?, ?, 8)`,
				buildingID, number,
			)
			if err != nil {
				return fmt.Errorf("insert apartment %s-%d: %w", code, number, err)
			}
		}
	}
	return tx.Commit()
}

// ListBuildings returns all buildings ordered by code, seeding the campus
// directory on first access.
func (s *HousingStore) ListBuildings() ([]model.Building, error) {
	if err := s.SeedBuildings(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT id, code, name FROM buildings ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var buildings []model.Building
	for rows.Next() {
		var b model.Building
		if err := rows.Scan(&b.ID, &b.Code, &b.Name); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

func (s *HousingStore) GetBuildingByCode(code string) (*model.Building, error) {
	var b model.Building
	err := s.db.QueryRow(`SELECT id, code, name FROM buildings WHERE code = ?`, code).
		Scan(&b.ID, &b.Code, &b.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	return &b, nil
}

// ListApartmentsByBuilding returns the building's apartments with current
// resident counts.
func (s *HousingStore) ListApartmentsByBuilding(buildingID int64) ([]model.ApartmentInfo, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.number, b.code,
		        (SELECT COUNT(1) FROM apartment_members m WHERE m.apartment_id = a.id)
		 FROM apartments a
		 JOIN buildings b ON b.id = a.building_id
		 WHERE a.building_id = ?
		 ORDER BY a.number ASC`,
		buildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list apartments: %w", err)
	}
	defer rows.Close()

	var apartments []model.ApartmentInfo
	for rows.Next() {
		var a model.ApartmentInfo
		if err := rows.Scan(&a.ID, &a.Number, &a.BuildingCode, &a.CurrentResidents); err != nil {
			return nil, fmt.Errorf("scan apartment: %w", err)
		}
		apartments = append(apartments, a)
	}
	return apartments, rows.Err()
}

func (s *HousingStore) GetApartment(id int64) (*model.Apartment, error) {
	row := s.db.QueryRow(`SELECT `+apartmentCols+` FROM apartments WHERE id = ?`, id)
	a, err := scanApartment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}
	return a, nil
}

// ApartmentInfoByID returns the directory view of one apartment.
func (s *HousingStore) ApartmentInfoByID(id int64) (*model.ApartmentInfo, error) {
	var a model.ApartmentInfo
	err := s.db.QueryRow(
		`SELECT a.id, a.number, b.code,
		        (SELECT COUNT(1) FROM apartment_members m WHERE m.apartment_id = a.id)
		 FROM apartments a
		 JOIN buildings b ON b.id = a.building_id
		 WHERE a.id = ?`,
		id,
	).Scan(&a.ID, &a.Number, &a.BuildingCode, &a.CurrentResidents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apartment info: %w", err)
	}
	return &a, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.ApartmentMember, error) {
	var m model.ApartmentMember
	err := scanner.Scan(&m.ID, &m.ApartmentID, &m.UserID, &m.Role)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, apartment_id, user_id, role`

// GetMemberByUser returns the user's apartment membership, or nil when the
// user is not assigned anywhere.
func (s *HousingStore) GetMemberByUser(userID int64) (*model.ApartmentMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM apartment_members WHERE user_id = ?`, userID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// Join assigns the user to an apartment. The first member of an empty
// apartment becomes its manager. Fails with ErrAlreadyMember when the user
// already lives somewhere and ErrApartmentFull at capacity.
func (s *HousingStore) Join(apartmentID, userID int64) (*model.ApartmentMember, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM apartment_members WHERE user_id = ?`, userID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	residents, maxResidents, err := occupancy(tx, apartmentID)
	if err != nil {
		return nil, err
	}
	if residents >= maxResidents {
		return nil, ErrApartmentFull
	}

	role := RoleResident
	if residents == 0 {
		role = RoleManager
	}

	result, err := tx.Exec(
		`INSERT INTO apartment_members (apartment_id, user_id, role) VALUES (?, ?, ?)`,
		apartmentID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+memberCols+` FROM apartment_members WHERE id = ?`, id)
	return scanMember(row)
}

// Move reassigns the user to another apartment, acting as Join when the
// user lives nowhere. Moving into an occupied apartment resets the role to
// resident; moving into an empty one grants manager.
func (s *HousingStore) Move(apartmentID, userID int64) (*model.ApartmentMember, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	residents, maxResidents, err := occupancy(tx, apartmentID)
	if err != nil {
		return nil, err
	}
	if residents >= maxResidents {
		return nil, ErrApartmentFull
	}

	row := tx.QueryRow(`SELECT `+memberCols+` FROM apartment_members WHERE user_id = ?`, userID)
	member, err := scanMember(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get member for move: %w", err)
	}

	var memberID int64
	if member == nil {
		role := RoleResident
		if residents == 0 {
			role = RoleManager
		}
		result, err := tx.Exec(
			`INSERT INTO apartment_members (apartment_id, user_id, role) VALUES (?, ?, ?)`,
			apartmentID, userID, role,
		)
		if err != nil {
			return nil, fmt.Errorf("insert member: %w", err)
		}
		memberID, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	} else {
		role := member.Role
		if residents > 0 {
			role = RoleResident
		}
		if _, err := tx.Exec(
			`UPDATE apartment_members SET apartment_id = ?, role = ? WHERE id = ?`,
			apartmentID, role, member.ID,
		); err != nil {
			return nil, fmt.Errorf("move member: %w", err)
		}
		memberID = member.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move: %w", err)
	}

	row = s.db.QueryRow(`SELECT `+memberCols+` FROM apartment_members WHERE id = ?`, memberID)
	return scanMember(row)
}

func occupancy(tx *sql.Tx, apartmentID int64) (residents, maxResidents int, err error) {
	err = tx.QueryRow(`SELECT max_residents FROM apartments WHERE id = ?`, apartmentID).Scan(&maxResidents)
	if err != nil {
		return 0, 0, fmt.Errorf("get apartment capacity: %w", err)
	}
	err = tx.QueryRow(`SELECT COUNT(1) FROM apartment_members WHERE apartment_id = ?`, apartmentID).Scan(&residents)
	if err != nil {
		return 0, 0, fmt.Errorf("count residents: %w", err)
	}
	return residents, maxResidents, nil
}

// ListMembers returns the apartment roster with usernames.
func (s *HousingStore) ListMembers(apartmentID int64) ([]model.MemberInfo, error) {
	rows, err := s.db.Query(
		`SELECT m.user_id, u.username, m.role
		 FROM apartment_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.apartment_id = ?
		 ORDER BY m.id ASC`,
		apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.MemberInfo
	for rows.Next() {
		var m model.MemberInfo
		if err := rows.Scan(&m.UserID, &m.Username, &m.Role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember removes a user from the apartment. Returns false when no
// such membership exists. Removing the apartment's only manager fails with
// ErrLastManager.
func (s *HousingStore) RemoveMember(apartmentID, userID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+memberCols+` FROM apartment_members WHERE apartment_id = ? AND user_id = ?`,
		apartmentID, userID,
	)
	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get member for removal: %w", err)
	}

	if member.Role == RoleManager {
		var managers int
		err = tx.QueryRow(
			`SELECT COUNT(1) FROM apartment_members WHERE apartment_id = ? AND role = ?`,
			apartmentID, RoleManager,
		).Scan(&managers)
		if err != nil {
			return false, fmt.Errorf("count managers: %w", err)
		}
		if managers <= 1 {
			return false, ErrLastManager
		}
	}

	if _, err := tx.Exec(`DELETE FROM apartment_members WHERE id = ?`, member.ID); err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit removal: %w", err)
	}
	return true, nil
}

// SetUseDefaultTasks flips the apartment's checklist source flag. The flag
// is read only when a day's checklist is first seeded; existing checklists
// are untouched.
func (s *HousingStore) SetUseDefaultTasks(apartmentID int64, useDefault bool) (*model.Apartment, error) {
	result, err := s.db.Exec(
		`UPDATE apartments SET use_default_tasks = ? WHERE id = ?`,
		useDefault, apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("update apartment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetApartment(apartmentID)
}
