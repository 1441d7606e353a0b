package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tuneroom/server/internal/service/room"
)

type createConnectTokenInput struct {
	Username  string `json:"username" validate:"required,min=1,max=32"`
	Color     string `json:"color" validate:"max=16"`
	AvatarUrl string `json:"avatar_url" validate:"max=256"`
}

func (c controller) createConnectToken(w http.ResponseWriter, r *http.Request) {
	var input createConnectTokenInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"errors": validationErrors})
		return
	}

	connectToken, err := c.roomService.CreateConnectToken(r.Context(), &room.CreateConnectTokenParams{
		Username:  input.Username,
		Color:     input.Color,
		AvatarUrl: input.AvatarUrl,
	})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to create connect token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"connect_token": connectToken})
}

func (c controller) createJoinConnectToken(w http.ResponseWriter, r *http.Request) {
	var input createConnectTokenInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"errors": validationErrors})
		return
	}

	connectToken, err := c.roomService.CreateJoinConnectToken(r.Context(), &room.CreateJoinConnectTokenParams{
		Username:  input.Username,
		Color:     input.Color,
		AvatarUrl: input.AvatarUrl,
		RoomId:    chi.URLParam(r, "room-id"),
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		case errors.Is(err, room.ErrMembersLimitReached):
			http.Error(w, "members limit reached", http.StatusConflict)
		default:
			c.logger.ErrorContext(r.Context(), "failed to create join connect token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"connect_token": connectToken})
}
