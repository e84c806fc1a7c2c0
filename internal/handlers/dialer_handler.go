package handlers

import (
	"net/http"

	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// APIKeyHeader carries the shared secret the dialer sends with intake calls
const APIKeyHeader = "X-API-Key"

type DialerHandler struct {
	Intake *services.IntakeService
	Dialer *services.DialerService
}

func NewDialerHandler(intake *services.IntakeService, dialer *services.DialerService) *DialerHandler {
	return &DialerHandler{Intake: intake, Dialer: dialer}
}

// IntakeLead is the dialer's webhook. It is not behind JWT auth; the API
// key is the only credential.
func (h *DialerHandler) IntakeLead(w http.ResponseWriter, r *http.Request) {
	if err := h.Intake.CheckAPIKey(r.Header.Get(APIKeyHeader)); err != nil {
		utils.Error(w, err)
		return
	}

	var payload models.DialerPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.Error(w, err)
		return
	}

	res, err := h.Intake.Intake(r.Context(), &payload)
	if err != nil {
		utils.Error(w, err)
		return
	}

	status := http.StatusOK
	if res.CreatedVsUpdated == models.IntakeCreated {
		status = http.StatusCreated
	}
	utils.JSON(w, status, res)
}

func (h *DialerHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.Dialer.ListMappings(r.Context())
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, mappings)
}

// UpsertMapping serves POST with the external id in the body and PUT with it
// in the path
func (h *DialerHandler) UpsertMapping(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertDialerMappingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	if ext, ok := mux.Vars(r)["external_user_id"]; ok {
		req.ExternalUserID = ext
	}

	m, err := h.Dialer.UpsertMapping(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, m)
}

func (h *DialerHandler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.Dialer.DeleteMapping(r.Context(), mux.Vars(r)["external_user_id"]); err != nil {
		utils.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DialerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	active, err := h.Dialer.IsActive(r.Context())
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.DialerStatus{Active: active})
}

func (h *DialerHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	var req models.DialerStatus
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	if err := h.Dialer.SetActive(r.Context(), actor, req.Active); err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, req)
}
