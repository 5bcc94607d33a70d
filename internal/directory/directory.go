package directory

import (
	"context"

	"github.com/voicebridge/voicebridge/internal/types"
)

// Route is everything a new session needs about the dialed number
type Route struct {
	Tenant   types.TenantSnapshot
	Workflow types.WorkflowSnapshot
	Agent    *types.AgentSnapshot
}

// Store is the tenant directory. Lookups return (nil, nil) for unknown
// ids; errors are reserved for backend failures.
type Store interface {
	ResolveInbound(ctx context.Context, toNumber string) (*Route, error)
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetRingGroup(ctx context.Context, id string) (*types.RingGroup, error)
}
