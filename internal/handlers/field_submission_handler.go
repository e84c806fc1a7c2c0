package handlers

import (
	"net/http"

	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/pkg/utils"
)

type FieldSubmissionHandler struct {
	Service *services.FieldSubmissionService
}

func NewFieldSubmissionHandler(s *services.FieldSubmissionService) *FieldSubmissionHandler {
	return &FieldSubmissionHandler{Service: s}
}

type submissionResponse struct {
	Submission  *models.FieldSubmission  `json:"submission"`
	Lead        *models.Lead             `json:"lead,omitempty"`
	SideEffects *models.SideEffectReport `json:"side_effects,omitempty"`
}

func newSubmissionResponse(fs *models.FieldSubmission, res *models.TransitionResult) submissionResponse {
	out := submissionResponse{Submission: fs}
	if res != nil {
		out.Lead = res.Lead
		out.SideEffects = &res.SideEffects
	}
	return out
}

func (h *FieldSubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req models.FieldSubmissionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	fs, res, err := h.Service.Submit(r.Context(), actor, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, newSubmissionResponse(fs, res))
}

func (h *FieldSubmissionHandler) Resave(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.FieldSubmissionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	fs, res, err := h.Service.Resave(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, newSubmissionResponse(fs, res))
}

func (h *FieldSubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req models.ReviewFieldSubmissionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	fs, err := h.Service.Review(r.Context(), actor, id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, fs)
}

func (h *FieldSubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	fs, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, fs)
}

// List shows canvassers their own submissions and reviewers all of them
func (h *FieldSubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	list, err := h.Service.List(r.Context(), actor)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, list)
}
