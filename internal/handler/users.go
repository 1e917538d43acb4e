package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/service"
)

type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func newUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Login:     u.Login,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// ListUsers возвращает список операторов.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), actorID)
	if err != nil {
		h.writeError(w, r, err, "list users error")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser заводит оператора с выбранной ролью.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req service.UserInput
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.CreateUser(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, r, err, "create user error")
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(*u))
}

// UpdateUser меняет логин, роль и пароль оператора.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req service.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.UpdateUser(r.Context(), actorID, id, req)
	if err != nil {
		h.writeError(w, r, err, "update user error")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(*u))
}

// DeleteUser удаляет оператора.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := operatorID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), actorID, id); err != nil {
		h.writeError(w, r, err, "delete user error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
