package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"

	"github.com/pquerna/otp/totp"
)

func TestLoginFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.principals.Create(ctx, &models.CreatePrincipalRequest{
		Username: "dana", Name: "Dana Agent", Email: "dana@example.com", Password: "correct-horse", Role: models.RoleAgent,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := e.principals.Login(ctx, &models.LoginRequest{Login: "dana@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if resp.Token == "" || resp.Principal.ID != p.ID {
		t.Errorf("unexpected response: %+v", resp)
	}

	if _, err := e.principals.Login(ctx, &models.LoginRequest{Login: "dana", Password: "wrong-password"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("bad password: %v", err)
	}
	if _, err := e.principals.Login(ctx, &models.LoginRequest{Login: "nobody", Password: "whatever1"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown user: %v", err)
	}

	retired := false
	if _, err := e.principals.Update(ctx, p.ID, &models.UpdatePrincipalRequest{IsActive: &retired}); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if _, err := e.principals.Login(ctx, &models.LoginRequest{Login: "dana", Password: "correct-horse"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("retired principal logged in: %v", err)
	}
}

func TestLoginWithTOTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p, err := e.principals.Create(ctx, &models.CreatePrincipalRequest{
		Username: "kim", Name: "Kim", Password: "another-pass", Role: models.RoleQualifier,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	setup, err := e.principals.SetupTOTP(ctx, p.ID)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := e.principals.EnableTOTP(ctx, p.ID, "000000"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad code enabled TOTP: %v", err)
	}
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := e.principals.EnableTOTP(ctx, p.ID, code); err != nil {
		t.Fatalf("enable: %v", err)
	}

	resp, err := e.principals.Login(ctx, &models.LoginRequest{Login: "kim", Password: "another-pass"})
	if err != nil {
		t.Fatalf("first factor: %v", err)
	}
	if resp.Requires != "totp" || resp.Token != "" {
		t.Errorf("expected a second factor prompt, got %+v", resp)
	}
	resp, err = e.principals.Login(ctx, &models.LoginRequest{Login: "kim", Password: "another-pass", TOTPCode: code})
	if err != nil || resp.Token == "" {
		t.Fatalf("second factor: %+v %v", resp, err)
	}
}

func TestCreatePrincipalValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := []struct {
		name string
		req  models.CreatePrincipalRequest
	}{
		{"short password", models.CreatePrincipalRequest{Username: "x1", Name: "X", Password: "short", Role: models.RoleAgent}},
		{"bad role", models.CreatePrincipalRequest{Username: "x2", Name: "X", Password: "long-enough", Role: "manager"}},
		{"taken username", models.CreatePrincipalRequest{Username: "Alice", Name: "X", Password: "long-enough", Role: models.RoleAgent}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.principals.Create(ctx, &tc.req); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDeletePrincipalWithLeads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.interestedLead(t, "+441234500300")

	if err := e.principals.Delete(ctx, e.admin.Actor(), e.agent.ID, false); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("referenced principal deleted without force: %v", err)
	}
	if err := e.principals.Delete(ctx, e.admin.Actor(), e.admin.ID, true); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self delete allowed: %v", err)
	}
	if err := e.principals.Delete(ctx, e.admin.Actor(), e.agent.ID, true); err != nil {
		t.Fatalf("forced delete: %v", err)
	}

	stored := e.db.RawLead(l.ID)
	if stored.OwningAgentID != nil {
		t.Errorf("owner id not released: %v", *stored.OwningAgentID)
	}
	if stored.AgentName != e.agent.Name {
		t.Errorf("agent name lost: %q", stored.AgentName)
	}
	if _, err := e.dialer.ResolveAgent(ctx, "ext-alice", ""); !errors.Is(err, apperr.ErrAgentMappingMissing) {
		t.Errorf("mapping of a deleted agent still resolves: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p, created, err := e.principals.EnsureAdmin(ctx, "root", "Root", "root@example.com", "bootstrap-pass")
	if err != nil || !created || p.Role != models.RoleAdmin {
		t.Fatalf("first call: %+v %t %v", p, created, err)
	}
	again, created, err := e.principals.EnsureAdmin(ctx, "root", "Root", "root@example.com", "bootstrap-pass")
	if err != nil || created || again.ID != p.ID {
		t.Errorf("second call should find the existing admin: %+v %t %v", again, created, err)
	}
}

func TestDialerMappings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.dialer.UpsertMapping(ctx, &models.UpsertDialerMappingRequest{ExternalUserID: "Q1", PrincipalID: e.qualifier.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("non-agent mapped: %v", err)
	}
	e.mapAgent(t, "A1", e.agent)
	if _, err := e.dialer.UpsertMapping(ctx, &models.UpsertDialerMappingRequest{ExternalUserID: "A2", PrincipalID: e.agent.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("second external id for one agent accepted: %v", err)
	}

	// reassigning an external id moves future leads
	e.mapAgent(t, "A1", e.agent2)
	p, err := e.dialer.ResolveAgent(ctx, "A1", "")
	if err != nil || p.ID != e.agent2.ID {
		t.Fatalf("resolve after reassignment: %+v %v", p, err)
	}

	if err := e.dialer.DeleteMapping(ctx, "A1"); err != nil {
		t.Fatalf("delete mapping: %v", err)
	}
	if list, _ := e.dialer.ListMappings(ctx); len(list) != 0 {
		t.Errorf("mappings left: %+v", list)
	}
}

func TestSeedMappings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seeds, err := ParseMappingSeeds(strings.NewReader(`
mappings:
  - external_user_id: "1001"
    username: alice
  - external_user_id: "1002"
    username: BOB
  - external_user_id: "1003"
    username: nobody
  - external_user_id: "1004"
    username: kelly
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(seeds) != 4 {
		t.Fatalf("expected 4 seeds, got %d", len(seeds))
	}

	applied, failures := e.dialer.SeedMappings(ctx, seeds)
	if applied != 2 || len(failures) != 2 {
		t.Fatalf("applied=%d failures=%v", applied, failures)
	}
	p, err := e.dialer.ResolveAgent(ctx, "1002", "")
	if err != nil || p.ID != e.agent2.ID {
		t.Fatalf("resolve 1002: %+v %v", p, err)
	}

	if _, err := ParseMappingSeeds(strings.NewReader("mappings: [")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("broken yaml accepted: %v", err)
	}
}
