package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klokku/slotfinder/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid         string `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Timezone    string `json:"timezone"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating user")

	var dto UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}

	created, err := h.userService.CreateUser(r.Context(), dtoToUser(dto))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Unable to create user", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(userToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	current, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoUser) || errors.Is(err, ErrUserNotFound) {
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
			return
		}
		log.Errorf("failed to get current user: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Unable to get current user", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(userToDTO(current)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func userToDTO(u User) UserDTO {
	return UserDTO{
		Uid:         u.Uid,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Timezone:    u.Timezone,
	}
}

func dtoToUser(dto UserDTO) User {
	return User{
		Uid:         dto.Uid,
		Username:    dto.Username,
		DisplayName: dto.DisplayName,
		Email:       dto.Email,
		Timezone:    dto.Timezone,
	}
}
