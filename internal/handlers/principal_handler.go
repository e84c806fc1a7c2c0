package handlers

import (
	"net/http"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/pkg/utils"
)

type PrincipalHandler struct {
	Service *services.PrincipalService
}

func NewPrincipalHandler(s *services.PrincipalService) *PrincipalHandler {
	return &PrincipalHandler{Service: s}
}

func (h *PrincipalHandler) CreatePrincipal(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePrincipalRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	p, err := h.Service.Create(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, p)
}

func (h *PrincipalHandler) GetPrincipal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	p, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, p)
}

// ListPrincipals returns active principals, or all with ?include_retired=true
func (h *PrincipalHandler) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.Service.List(r.Context(), queryBool(r, "include_retired"))
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, principals)
}

// UpdatePrincipal patches a principal; is_active=false retires it
func (h *PrincipalHandler) UpdatePrincipal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	var req models.UpdatePrincipalRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	p, err := h.Service.Update(r.Context(), id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, p)
}

// DeletePrincipal removes a principal. ?force=true releases their leads.
func (h *PrincipalHandler) DeletePrincipal(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	if err := h.Service.Delete(r.Context(), actor, id, queryBool(r, "force")); err != nil {
		utils.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetupTOTP is open to the principal themself and to admins
func (h *PrincipalHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.selfOrAdmin(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	resp, err := h.Service.SetupTOTP(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

func (h *PrincipalHandler) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.selfOrAdmin(r)
	if err != nil {
		utils.Error(w, err)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	if err := h.Service.EnableTOTP(r.Context(), id, req.Code); err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]bool{"totp_enabled": true})
}

func (h *PrincipalHandler) selfOrAdmin(r *http.Request) (int, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return 0, err
	}
	id, err := pathID(r)
	if err != nil {
		return 0, err
	}
	if actor.ID != id && actor.Role != models.RoleAdmin {
		return 0, apperr.Forbidden("you can only manage your own second factor")
	}
	return id, nil
}
