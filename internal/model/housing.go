package model

type Building struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Apartment struct {
	ID              int64 `json:"id"`
	BuildingID      int64 `json:"building_id"`
	Number          int   `json:"number"`
	MaxResidents    int   `json:"max_residents"`
	UseDefaultTasks bool  `json:"use_default_tasks"`
}

// ApartmentInfo is the directory view of an apartment with its occupancy.
type ApartmentInfo struct {
	ID               int64  `json:"id"`
	Number           int    `json:"number"`
	BuildingCode     string `json:"building_code"`
	CurrentResidents int    `json:"current_residents"`
}

// MemberInfo is the roster view of an apartment member.
type MemberInfo struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ApartmentMember links a user to the one apartment they live in.
// Roles: "manager" or "resident". The first user to join an empty
// apartment becomes its manager.
type ApartmentMember struct {
	ID          int64  `json:"id"`
	ApartmentID int64  `json:"apartment_id"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
}
