package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/model"
	"github.com/ndenisov/cleanday/internal/store"
)

type UserHandler struct {
	userStore    *store.UserStore
	housingStore *store.HousingStore
	tokens       *auth.TokenManager
	logger       *slog.Logger
}

func NewUserHandler(us *store.UserStore, hs *store.HousingStore, tokens *auth.TokenManager, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, housingStore: hs, tokens: tokens, logger: logger}
}

type apartmentInfo struct {
	BuildingCode    string `json:"building_code"`
	ApartmentNumber int    `json:"apartment_number"`
	Role            string `json:"role"`
}

type userResponse struct {
	ID             int64          `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	TotalCleanings int            `json:"total_cleanings"`
	CreatedAt      time.Time      `json:"created_at"`
	Apartment      *apartmentInfo `json:"apartment"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// profile assembles the user view with their apartment, if any.
func (h *UserHandler) profile(u *model.User) (userResponse, error) {
	resp := userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		TotalCleanings: u.TotalCleanings,
		CreatedAt:      u.CreatedAt,
	}

	member, err := h.housingStore.GetMemberByUser(u.ID)
	if err != nil {
		return resp, err
	}
	if member == nil {
		return resp, nil
	}

	info, err := h.housingStore.ApartmentInfoByID(member.ApartmentID)
	if err != nil {
		return resp, err
	}
	if info != nil {
		resp.Apartment = &apartmentInfo{
			BuildingCode:    info.BuildingCode,
			ApartmentNumber: info.Number,
			Role:            member.Role,
		}
	}
	return resp, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	existing, err := h.userStore.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userStore.Create(req.Username, req.Email, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	resp, err := h.profile(user)
	if err != nil {
		h.logger.Error("build profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.userStore.GetByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	resp, err := h.profile(user)
	if err != nil {
		h.logger.Error("build profile", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        resp,
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	resp, err := h.profile(user)
	if err != nil {
		h.logger.Error("build profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 100
	}

	users, err := h.userStore.List(offset, limit)
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		p, err := h.profile(&users[i])
		if err != nil {
			h.logger.Error("build profile", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		resp = append(resp, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	user, err := h.userStore.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	resp, err := h.profile(user)
	if err != nil {
		h.logger.Error("build profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
