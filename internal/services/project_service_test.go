package services

import (
	"context"
	"testing"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/types"
)

func newProjectFixture(t *testing.T) (ProjectService, *testFixture) {
	t.Helper()
	f := newFixture(t)
	svc := NewProjectService(f.db, f.log, f.projectRepo)
	return svc, f
}

func TestCreateProjectStartsPendingPayment(t *testing.T) {
	svc, f := newProjectFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	project, err := svc.CreateProject(ctx, owner.Identity(), "Launch Teaser", 2000)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if project.Status != types.ProjectPendingPayment {
		t.Fatalf("status: want=%s got=%s", types.ProjectPendingPayment, project.Status)
	}
	if project.PaymentStatus != types.PaymentPending {
		t.Fatalf("payment status: %s", project.PaymentStatus)
	}
	mustMember(t, f.db, f.projectRepo, project.ID, owner.ID, true)

	if _, err := svc.CreateProject(ctx, types.GuestIdentity("G", "g@example.com"), "Nope", 1); !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("guest create: want unauthorized, got %v", err)
	}
}

func TestGetProjectVisibility(t *testing.T) {
	svc, f := newProjectFixture(t)
	ctx := context.Background()

	owner := seedUser(t, f.db, types.RoleClient)
	outsider := seedUser(t, f.db, types.RoleClient)
	sales := seedUser(t, f.db, types.RoleSales)
	project := seedProject(t, f.db, owner.ID, types.ProjectActive)

	if _, err := svc.GetProject(ctx, project.ID, owner.Identity()); err != nil {
		t.Fatalf("owner GetProject: %v", err)
	}
	if _, err := svc.GetProject(ctx, project.ID, sales.Identity()); err != nil {
		t.Fatalf("sales GetProject: %v", err)
	}
	if _, err := svc.GetProject(ctx, project.ID, outsider.Identity()); !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("outsider GetProject: want unauthorized, got %v", err)
	}
	if _, err := svc.GetProject(ctx, project.ID, types.GuestIdentity("G", "g@example.com")); !apierr.HasCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("guest GetProject: want unauthorized, got %v", err)
	}
}

func TestListProjectsScopesByRole(t *testing.T) {
	svc, f := newProjectFixture(t)
	ctx := context.Background()

	admin := seedUser(t, f.db, types.RoleAdmin)
	ownerA := seedUser(t, f.db, types.RoleClient)
	ownerB := seedUser(t, f.db, types.RoleClient)
	seedProject(t, f.db, ownerA.ID, types.ProjectActive)
	seedProject(t, f.db, ownerB.ID, types.ProjectActive)

	all, err := svc.ListProjects(ctx, admin.Identity())
	if err != nil {
		t.Fatalf("admin ListProjects: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees all projects: want=2 got=%d", len(all))
	}

	mine, err := svc.ListProjects(ctx, ownerA.Identity())
	if err != nil {
		t.Fatalf("owner ListProjects: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerID != ownerA.ID {
		t.Fatalf("owner list scoped wrong: %+v", mine)
	}
}
