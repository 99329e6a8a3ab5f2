package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
	"github.com/ndenisov/cleanday/internal/websocket"
	"github.com/ndenisov/cleanday/internal/week"
)

type TaskHandler struct {
	taskStore *store.TaskStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type dayResponse struct {
	DayOfWeek int          `json:"day_of_week"`
	Tasks     []model.Task `json:"tasks"`
}

// Day returns the checklist for one day of the week in the caller's
// apartment, seeding it on first access.
func (h *TaskHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil || !week.ValidDay(day) {
		writeError(w, http.StatusBadRequest, "day_of_week must be between 0 and 6")
		return
	}

	apartmentID := auth.ApartmentID(r.Context())
	tasks, err := h.taskStore.ListDay(apartmentID, day)
	if err != nil {
		h.logger.Error("list day tasks", "error", err, "apartment_id", apartmentID, "day", day)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, dayResponse{DayOfWeek: day, Tasks: tasks})
}

// Toggle flips a task's done state. Credit for completing the whole day is
// evaluated inside the store when the acting user holds the day's slot.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	task, credited, err := h.taskStore.Toggle(id, userID)
	if err != nil {
		h.logger.Error("toggle task", "error", err, "task_id", id, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to toggle task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if credited {
		h.logger.Info("cleaning credited", "user_id", userID, "apartment_id", task.ApartmentID, "day", task.DayOfWeek)
	}

	h.broadcast(websocket.NewMessage("task", "toggled", task.ID, map[string]any{
		"day_of_week": task.DayOfWeek,
		"is_done":     task.IsDone,
		"credited":    credited,
	}))

	writeJSON(w, http.StatusOK, task)
}

// --- Template management (manager-only) ---

type templateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *TaskHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	apartmentID := auth.ApartmentID(r.Context())
	templates, err := h.taskStore.ListTemplates(apartmentID)
	if err != nil {
		h.logger.Error("list templates", "error", err, "apartment_id", apartmentID)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.TaskTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TaskHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apartmentID := auth.ApartmentID(r.Context())
	template, err := h.taskStore.CreateTemplate(apartmentID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("create template", "error", err, "apartment_id", apartmentID)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (h *TaskHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	apartmentID := auth.ApartmentID(r.Context())
	ok, err := h.taskStore.DeleteTemplate(id, apartmentID)
	if err != nil {
		h.logger.Error("delete template", "error", err, "template_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
