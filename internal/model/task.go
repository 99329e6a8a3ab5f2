package model

// Task is a single checklist entry for an apartment's cleaning day.
type Task struct {
	ID          int64  `json:"id"`
	ApartmentID int64  `json:"apartment_id"`
	DayOfWeek   int    `json:"day_of_week"`
	Name        string `json:"name"`
	IsDone      bool   `json:"is_done"`
}

// TaskTemplate is an apartment-defined task name used to seed daily
// checklists when the apartment has opted out of the default set.
type TaskTemplate struct {
	ID          int64  `json:"id"`
	ApartmentID int64  `json:"apartment_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
