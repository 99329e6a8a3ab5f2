package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
)

type HousingHandler struct {
	housingStore *store.HousingStore
	userStore    *store.UserStore
	logger       *slog.Logger
}

func NewHousingHandler(hs *store.HousingStore, us *store.UserStore, logger *slog.Logger) *HousingHandler {
	return &HousingHandler{housingStore: hs, userStore: us, logger: logger}
}

func (h *HousingHandler) Buildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.housingStore.ListBuildings()
	if err != nil {
		h.logger.Error("list buildings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list buildings")
		return
	}
	if buildings == nil {
		buildings = []model.Building{}
	}
	writeJSON(w, http.StatusOK, buildings)
}

func (h *HousingHandler) Apartments(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	building, err := h.housingStore.GetBuildingByCode(code)
	if err != nil {
		h.logger.Error("get building", "error", err, "code", code)
		writeError(w, http.StatusInternalServerError, "failed to get building")
		return
	}
	if building == nil {
		writeError(w, http.StatusNotFound, "building not found")
		return
	}

	apartments, err := h.housingStore.ListApartmentsByBuilding(building.ID)
	if err != nil {
		h.logger.Error("list apartments", "error", err, "building_id", building.ID)
		writeError(w, http.StatusInternalServerError, "failed to list apartments")
		return
	}
	if apartments == nil {
		apartments = []model.ApartmentInfo{}
	}
	writeJSON(w, http.StatusOK, apartments)
}

// memberInfo resolves the roster view for one membership.
func (h *HousingHandler) memberInfo(member *model.ApartmentMember) (*model.MemberInfo, error) {
	user, err := h.userStore.GetByID(member.UserID)
	if err != nil || user == nil {
		return nil, err
	}
	return &model.MemberInfo{UserID: user.ID, Username: user.Username, Role: member.Role}, nil
}

func (h *HousingHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	apartment, err := h.housingStore.GetApartment(id)
	if err != nil {
		h.logger.Error("get apartment", "error", err, "apartment_id", id)
		writeError(w, http.StatusInternalServerError, "failed to get apartment")
		return
	}
	if apartment == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}

	member, err := h.housingStore.Join(id, auth.UserID(r.Context()))
	if errors.Is(err, store.ErrAlreadyMember) {
		writeError(w, http.StatusBadRequest, "user already assigned to an apartment")
		return
	}
	if errors.Is(err, store.ErrApartmentFull) {
		writeError(w, http.StatusBadRequest, "apartment is full")
		return
	}
	if err != nil {
		h.logger.Error("join apartment", "error", err, "apartment_id", id)
		writeError(w, http.StatusInternalServerError, "failed to join apartment")
		return
	}

	info, err := h.memberInfo(member)
	if err != nil || info == nil {
		writeError(w, http.StatusInternalServerError, "failed to join apartment")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HousingHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	apartment, err := h.housingStore.GetApartment(id)
	if err != nil {
		h.logger.Error("get apartment", "error", err, "apartment_id", id)
		writeError(w, http.StatusInternalServerError, "failed to get apartment")
		return
	}
	if apartment == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}

	member, err := h.housingStore.Move(id, auth.UserID(r.Context()))
	if errors.Is(err, store.ErrApartmentFull) {
		writeError(w, http.StatusBadRequest, "apartment is full")
		return
	}
	if err != nil {
		h.logger.Error("move apartment", "error", err, "apartment_id", id)
		writeError(w, http.StatusInternalServerError, "failed to move")
		return
	}

	info, err := h.memberInfo(member)
	if err != nil || info == nil {
		writeError(w, http.StatusInternalServerError, "failed to move")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HousingHandler) MyApartment(w http.ResponseWriter, r *http.Request) {
	info, err := h.housingStore.ApartmentInfoByID(auth.ApartmentID(r.Context()))
	if err != nil {
		h.logger.Error("apartment info", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get apartment")
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HousingHandler) MyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.housingStore.ListMembers(auth.ApartmentID(r.Context()))
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.MemberInfo{}
	}
	writeJSON(w, http.StatusOK, members)
}

// RemoveMember evicts a user from an apartment. Manager-only; a manager may
// act only on their own apartment, and the only manager cannot be removed.
func (h *HousingHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	if auth.ApartmentID(r.Context()) != apartmentID {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	removed, err := h.housingStore.RemoveMember(apartmentID, userID)
	if errors.Is(err, store.ErrLastManager) {
		writeError(w, http.StatusBadRequest, "cannot remove the only manager")
		return
	}
	if err != nil {
		h.logger.Error("remove member", "error", err, "apartment_id", apartmentID, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "member removed"})
}

type defaultTasksRequest struct {
	UseDefault bool `json:"use_default"`
}

// SetDefaultTasks flips the apartment's checklist source. The change only
// affects days whose checklist has not been seeded yet.
func (h *HousingHandler) SetDefaultTasks(w http.ResponseWriter, r *http.Request) {
	var req defaultTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	apartment, err := h.housingStore.SetUseDefaultTasks(auth.ApartmentID(r.Context()), req.UseDefault)
	if err != nil {
		h.logger.Error("set default tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update apartment")
		return
	}
	if apartment == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"use_default_tasks": apartment.UseDefaultTasks})
}
