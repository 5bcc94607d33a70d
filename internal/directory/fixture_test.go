package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const fixtureYAML = `
tenants:
  - tenant:
      id: tenant-1
      name: Acme Support
      timezone: Europe/Berlin
      voicemailEnabled: true
      policy:
        onlyCheckedIn: true
        prioritizeWebPhone: true
        allowExternal: true
    users:
      - id: user-1
        name: Dana Agent
        email: dana@acme.example
        clientIdentity: client:dana
        checkedIn: true
    ringGroups:
      - id: group-1
        name: Support
        strategy: simultaneous
        memberIds: [user-1]
    workflows:
      - workflow:
          id: wf-1
          greeting: "Welcome to Acme"
          voice: alloy
          assignedAgentId: user-1
          forwardFirst: true
          forwardUserId: user-1
        numbers:
          - "+15550100"
          - "+15550101"
`

func loadFixture(t *testing.T) *FixtureStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := NewFixtureStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	return store
}

func TestFixtureResolveInbound(t *testing.T) {
	store := loadFixture(t)
	ctx := context.Background()

	route, err := store.ResolveInbound(ctx, "+15550100")
	if err != nil {
		t.Fatal(err)
	}
	if route == nil {
		t.Fatal("expected a route for +15550100")
	}
	if route.Tenant.ID != "tenant-1" || route.Workflow.ID != "wf-1" {
		t.Errorf("unexpected route: %+v", route)
	}
	if !route.Tenant.Policy.OnlyCheckedIn {
		t.Error("tenant policy must be carried into the route")
	}
	if route.Agent == nil || route.Agent.Email != "dana@acme.example" {
		t.Errorf("assigned agent must be resolved, got %+v", route.Agent)
	}
	if route.Workflow.TenantID != "tenant-1" {
		t.Error("workflow must inherit the tenant id")
	}

	// Both numbers point at the same workflow
	second, err := store.ResolveInbound(ctx, "+15550101")
	if err != nil {
		t.Fatal(err)
	}
	if second == nil || second.Workflow.ID != "wf-1" {
		t.Errorf("expected shared workflow, got %+v", second)
	}
}

func TestFixtureUnknownNumber(t *testing.T) {
	store := loadFixture(t)

	route, err := store.ResolveInbound(context.Background(), "+19990000")
	if err != nil {
		t.Fatal(err)
	}
	if route != nil {
		t.Errorf("unknown number must resolve to nil, got %+v", route)
	}
}

func TestFixtureUserAndGroupLookup(t *testing.T) {
	store := loadFixture(t)
	ctx := context.Background()

	user, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if user == nil || user.ClientIdentity != "client:dana" || user.TenantID != "tenant-1" {
		t.Errorf("unexpected user: %+v", user)
	}

	group, err := store.GetRingGroup(ctx, "group-1")
	if err != nil {
		t.Fatal(err)
	}
	if group == nil || len(group.MemberIDs) != 1 {
		t.Errorf("unexpected group: %+v", group)
	}

	missing, err := store.GetUser(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("unknown user must be (nil, nil), got %v, %v", missing, err)
	}
}
