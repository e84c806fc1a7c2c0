package handlers

import (
	"net/http"

	"leads-backend/internal/models"
	"leads-backend/internal/services"
	"leads-backend/pkg/utils"
)

type AuthHandler struct {
	Principals *services.PrincipalService
}

func NewAuthHandler(principals *services.PrincipalService) *AuthHandler {
	return &AuthHandler{Principals: principals}
}

// Login exchanges username/email and password for a token. A principal with
// TOTP enabled gets {"requires":"totp"} until the code is sent along.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	resp, err := h.Principals.Login(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

// Me returns the authenticated principal
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	p, err := h.Principals.Get(r.Context(), actor.ID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, p)
}
