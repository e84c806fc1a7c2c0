package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/auth"
	"leads-backend/internal/models"
)

const minPasswordLength = 8

type PrincipalService struct {
	Store      PrincipalStore
	JWTManager *auth.JWTManager
}

func NewPrincipalService(store PrincipalStore, jwtManager *auth.JWTManager) *PrincipalService {
	return &PrincipalService{
		Store:      store,
		JWTManager: jwtManager,
	}
}

// Login authenticates by username or email. Principals with TOTP enabled get
// back Requires="totp" until they send a valid code.
func (s *PrincipalService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		return nil, apperr.Validation("login", "login and password are required")
	}

	p, err := s.Store.GetByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid login or password")
		}
		return nil, err
	}
	if !auth.VerifyPassword(p.PasswordHash, req.Password) {
		return nil, apperr.Unauthorized("invalid login or password")
	}
	if !p.IsActive {
		return nil, apperr.Unauthorized("account has been retired")
	}

	if p.TOTPEnabled {
		if req.TOTPCode == "" {
			return &models.AuthResponse{Requires: "totp"}, nil
		}
		if !auth.ValidateTOTP(req.TOTPCode, p.TOTPSecret) {
			return nil, apperr.Unauthorized("invalid two-factor code")
		}
	}

	token, err := s.JWTManager.GenerateToken(p)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &models.AuthResponse{Token: token, Principal: p}, nil
}

func (s *PrincipalService) Get(ctx context.Context, id int) (*models.Principal, error) {
	return s.Store.Get(ctx, id)
}

func (s *PrincipalService) List(ctx context.Context, includeRetired bool) ([]*models.Principal, error) {
	return s.Store.List(ctx, includeRetired)
}

// Create adds a principal with a hashed password
func (s *PrincipalService) Create(ctx context.Context, req *models.CreatePrincipalRequest) (*models.Principal, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username", "required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("name", "required")
	}
	if !models.ValidRole(req.Role) {
		return nil, apperr.Validation("role", fmt.Sprintf("unknown role %q", req.Role))
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Validation("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	p := &models.Principal{
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[Principals] created %s (%s) id=%d", p.Username, p.Role, p.ID)
	return p, nil
}

// Update applies a partial change. Clearing is_active retires the principal
// without touching their leads.
func (s *PrincipalService) Update(ctx context.Context, id int, req *models.UpdatePrincipalRequest) (*models.Principal, error) {
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperr.Validation("name", "required")
		}
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, apperr.Validation("role", fmt.Sprintf("unknown role %q", *req.Role))
		}
		p.Role = *req.Role
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return nil, apperr.Validation("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, apperr.Internal("failed to hash password", err)
		}
		p.PasswordHash = hash
	}
	if err := s.Store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a principal. One still referenced by leads must be retired
// instead unless force is set, in which case the leads keep the agent name
// and lose the id.
func (s *PrincipalService) Delete(ctx context.Context, actor models.Actor, id int, force bool) error {
	if actor.ID == id {
		return apperr.Validation("id", "you cannot delete yourself")
	}
	refs, err := s.Store.CountLeadReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 && !force {
		return apperr.Validation("id", fmt.Sprintf("principal is referenced by %d leads; retire it instead", refs))
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("[Principals] deleted id=%d by %s (%d lead references released)", id, actor.Name, refs)
	return nil
}

// SetupTOTP stores a fresh, not yet enabled secret
func (s *PrincipalService) SetupTOTP(ctx context.Context, id int) (*models.TOTPSetupResponse, error) {
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	account := p.Email
	if account == "" {
		account = p.Username
	}
	key, err := auth.GenerateTOTP(account)
	if err != nil {
		return nil, apperr.Internal("failed to generate TOTP secret", err)
	}
	if err := s.Store.SetTOTPSecret(ctx, id, key.Secret()); err != nil {
		return nil, err
	}
	return &models.TOTPSetupResponse{
		Secret:      key.Secret(),
		URL:         key.URL(),
		Issuer:      auth.TOTPIssuer,
		AccountName: account,
	}, nil
}

// EnableTOTP turns on the second factor once the principal proves the app
// produces valid codes.
func (s *PrincipalService) EnableTOTP(ctx context.Context, id int, code string) error {
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.TOTPSecret == "" {
		return apperr.Validation("totp", "run setup first")
	}
	if !auth.ValidateTOTP(code, p.TOTPSecret) {
		return apperr.Validation("code", "invalid two-factor code")
	}
	return s.Store.EnableTOTP(ctx, id)
}

// EnsureAdmin creates the initial admin. created is false when the username
// already exists.
func (s *PrincipalService) EnsureAdmin(ctx context.Context, username, name, email, password string) (*models.Principal, bool, error) {
	existing, err := s.Store.GetByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	p, err := s.Create(ctx, &models.CreatePrincipalRequest{
		Username: username,
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}
