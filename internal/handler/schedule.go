package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
	"github.com/ndenisov/cleanday/internal/websocket"
	"github.com/ndenisov/cleanday/internal/week"
)

type ScheduleHandler struct {
	scheduleStore *store.ScheduleStore
	hub           *websocket.Hub
	logger        *slog.Logger
	now           func() time.Time
}

func NewScheduleHandler(ss *store.ScheduleStore, hub *websocket.Hub, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleStore: ss,
		hub:           hub,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *ScheduleHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Week returns the current week's roster for the caller's apartment,
// seeding the seven slots on first access.
func (h *ScheduleHandler) Week(w http.ResponseWriter, r *http.Request) {
	apartmentID := auth.ApartmentID(r.Context())
	weekStart := week.StartKey(h.now())

	slots, err := h.scheduleStore.ListWeek(apartmentID, weekStart)
	if err != nil {
		h.logger.Error("list week", "error", err, "apartment_id", apartmentID)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	if slots == nil {
		slots = []model.ScheduleSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *ScheduleHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	apartmentID := auth.ApartmentID(r.Context())

	slot, err := h.scheduleStore.Claim(id, userID, apartmentID)
	if errors.Is(err, store.ErrSlotTaken) {
		writeError(w, http.StatusBadRequest, "this day is already taken by another user")
		return
	}
	if err != nil {
		h.logger.Error("claim slot", "error", err, "slot_id", id, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to claim day")
		return
	}
	if slot == nil {
		writeError(w, http.StatusNotFound, "day not found")
		return
	}

	h.broadcast(websocket.NewMessage("slot", "claimed", slot.ID, map[string]any{
		"day_of_week": slot.DayOfWeek,
		"user_id":     userID,
	}))

	writeJSON(w, http.StatusOK, slot)
}

func (h *ScheduleHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	apartmentID := auth.ApartmentID(r.Context())

	slot, err := h.scheduleStore.Release(id, userID, apartmentID)
	if errors.Is(err, store.ErrNotClaimant) {
		writeError(w, http.StatusBadRequest, "you cannot release this day")
		return
	}
	if err != nil {
		h.logger.Error("release slot", "error", err, "slot_id", id, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to release day")
		return
	}
	if slot == nil {
		writeError(w, http.StatusNotFound, "day not found")
		return
	}

	h.broadcast(websocket.NewMessage("slot", "released", slot.ID, map[string]any{
		"day_of_week": slot.DayOfWeek,
	}))

	writeJSON(w, http.StatusOK, slot)
}
