package handlers

import (
	"context"
	"net/http"

	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/pkg/utils"
)

type CallbackHandler struct {
	Service *services.CallbackService
}

func NewCallbackHandler(s *services.CallbackService) *CallbackHandler {
	return &CallbackHandler{Service: s}
}

func (h *CallbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req models.CreateCallbackRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	cb, err := h.Service.Create(r.Context(), actor, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, cb)
}

func (h *CallbackHandler) Scheduled(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.Scheduled)
}

// Due lists callbacks inside the due window or already overdue
func (h *CallbackHandler) Due(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.Due)
}

func (h *CallbackHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.Upcoming)
}

func (h *CallbackHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.UpdateCallbackStatusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	cb, err := h.Service.UpdateStatus(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, cb)
}

func (h *CallbackHandler) list(w http.ResponseWriter, r *http.Request,
	fetch func(ctx context.Context, actor models.Actor) ([]*models.Callback, error)) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	callbacks, err := fetch(r.Context(), actor)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, callbacks)
}
