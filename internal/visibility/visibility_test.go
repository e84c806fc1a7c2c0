package visibility

import (
	"testing"

	"leads-backend/internal/models"
)

func intPtr(v int) *int { return &v }

func ids(actor models.Actor, leads []*models.Lead) []int {
	q := Scope(actor, models.LeadQuery{})
	var out []int
	for _, l := range leads {
		if q.Matches(l) {
			out = append(out, l.ID)
		}
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAgentsQualifierAdmin(t *testing.T) {
	a1 := models.Actor{ID: 1, Role: models.RoleAgent}
	a2 := models.Actor{ID: 2, Role: models.RoleAgent}
	q := models.Actor{ID: 3, Role: models.RoleQualifier}
	admin := models.Actor{ID: 4, Role: models.RoleAdmin}

	leads := []*models.Lead{
		{ID: 101, Status: models.StatusInterested, OwningAgentID: intPtr(1)},
		{ID: 102, Status: models.StatusSentToKelly, OwningAgentID: intPtr(2)},
	}

	cases := []struct {
		name  string
		actor models.Actor
		want  []int
	}{
		{"agent one", a1, []int{101}},
		{"agent two", a2, []int{102}},
		{"qualifier", q, []int{102}},
		{"admin", admin, []int{101, 102}},
	}
	for _, tc := range cases {
		if got := ids(tc.actor, leads); !equal(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSalesRepCanvasserStaff(t *testing.T) {
	rep := models.Actor{ID: 5, Role: models.RoleSalesRep}
	canv := models.Actor{ID: 6, Role: models.RoleCanvasser}
	staff := models.Actor{ID: 7, Role: models.RoleStaff4dshire}

	leads := []*models.Lead{
		{ID: 1, Status: models.StatusAppointmentSet, FieldSalesRepID: intPtr(5)},
		{ID: 2, Status: models.StatusSaleMade},
		{ID: 3, Status: models.StatusInterested, CreatedByID: intPtr(6), Source: models.SourceFieldSubmission},
		{ID: 4, Status: models.StatusInterested, CreatedByID: intPtr(6), Source: models.SourceManual},
		{ID: 5, Status: models.StatusInterested, CreatedByID: intPtr(7)},
	}

	if got := ids(rep, leads); !equal(got, []int{1, 2}) {
		t.Errorf("salesrep: got %v", got)
	}
	if got := ids(canv, leads); !equal(got, []int{3}) {
		t.Errorf("canvasser: got %v", got)
	}
	if got := ids(staff, leads); !equal(got, []int{5}) {
		t.Errorf("staff4dshire: got %v", got)
	}

	if !CanMutate(rep, leads[0]) {
		t.Errorf("salesrep should mutate own appointment")
	}
	if CanMutate(rep, leads[1]) {
		t.Errorf("salesrep must not mutate a sale they do not hold")
	}
}

func TestScopeNeverWidens(t *testing.T) {
	agent := models.Actor{ID: 1, Role: models.RoleAgent}
	q := Scope(agent, models.LeadQuery{OwningAgentID: intPtr(2)})
	if !q.Empty {
		t.Fatalf("asking for another agent's leads must yield nothing")
	}

	qual := models.Actor{ID: 3, Role: models.RoleQualifier}
	q = Scope(qual, models.LeadQuery{Statuses: []string{models.StatusColdCall}})
	if !q.Empty {
		t.Fatalf("qualifier asking for cold_call must yield nothing")
	}
	q = Scope(qual, models.LeadQuery{Statuses: []string{models.StatusColdCall, models.StatusQualified}})
	if q.Empty || len(q.Statuses) != 1 || q.Statuses[0] != models.StatusQualified {
		t.Fatalf("unexpected intersection %+v", q)
	}
}

func TestDeletedHiddenFromNonAdmins(t *testing.T) {
	agent := models.Actor{ID: 1, Role: models.RoleAgent}
	l := &models.Lead{ID: 1, Status: models.StatusInterested, OwningAgentID: intPtr(1), IsDeleted: true}
	if CanRead(agent, l) {
		t.Fatalf("agent must not see a deleted lead")
	}
	q := Scope(agent, models.LeadQuery{OnlyDeleted: true})
	if q.OnlyDeleted || q.IncludeDeleted {
		t.Fatalf("non-admin cannot ask for deleted rows")
	}
	admin := models.Actor{ID: 9, Role: models.RoleAdmin}
	if !CanRead(admin, l) {
		t.Fatalf("admin reads deleted leads by id")
	}
}
