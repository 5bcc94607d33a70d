package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/schedule"
	"github.com/voicebridge/voicebridge/internal/types"
)

// Directory resolves users and ring groups by id
type Directory interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetRingGroup(ctx context.Context, id string) (*types.RingGroup, error)
}

// Presence answers whether a user's voice client is currently ready
type Presence interface {
	ClientReady(ctx context.Context, userID string) (bool, error)
}

// Instruction is one routing request: exactly one destination field set
type Instruction struct {
	Number  string
	UserID  string
	GroupID string
	Reason  string
}

// Failure reasons returned when resolution yields no targets
const (
	FailureExternalNotAllowed = "external_number_not_allowed"
	FailureNoEligibleTargets  = "no_eligible_targets"
	FailureUnknownDestination = "unknown_destination"
)

// Resolution is the resolver output: a dial plan or a definitive failure
type Resolution struct {
	Strategy      types.RingStrategy
	Targets       []types.DialTarget
	FailureReason string
}

// Failed reports whether resolution produced no dialable target
func (r *Resolution) Failed() bool { return len(r.Targets) == 0 }

// Resolver turns routing instructions into ordered dial targets
type Resolver struct {
	dir      Directory
	presence Presence
	eval     schedule.Evaluator
	now      func() time.Time
	logger   zerolog.Logger
}

// NewResolver creates a Resolver
func NewResolver(dir Directory, presence Presence, eval schedule.Evaluator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		dir:      dir,
		presence: presence,
		eval:     eval,
		now:      time.Now,
		logger:   logger,
	}
}

// Resolve produces the dial plan for one instruction under tenant policy.
// A nil error with an empty target list is a definitive resolution failure
// (voicemail / callback-intake fallback); errors are collaborator failures.
func (r *Resolver) Resolve(ctx context.Context, inst Instruction, tenant types.TenantSnapshot) (*Resolution, error) {
	switch {
	case inst.Number != "":
		return r.resolveNumber(inst.Number, tenant), nil
	case inst.UserID != "":
		return r.resolveUser(ctx, inst.UserID, tenant)
	case inst.GroupID != "":
		return r.resolveGroup(ctx, inst.GroupID, tenant)
	}
	return nil, fmt.Errorf("routing: instruction has no destination")
}

func (r *Resolver) resolveNumber(number string, tenant types.TenantSnapshot) *Resolution {
	if tenant.Policy.RestrictExternalForwarding && !allowListed(number, tenant.Policy.ExternalAllowList) {
		r.logger.Warn().
			Str("tenant_id", tenant.ID).
			Str("number", number).
			Msg("external number rejected by forwarding restriction")
		return &Resolution{Strategy: types.RingSequential, FailureReason: FailureExternalNotAllowed}
	}

	return &Resolution{
		Strategy: types.RingSequential,
		Targets:  []types.DialTarget{{Kind: types.TargetExternalNumber, Number: number}},
	}
}

func (r *Resolver) resolveUser(ctx context.Context, userID string, tenant types.TenantSnapshot) (*Resolution, error) {
	user, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("routing: user lookup failed: %w", err)
	}
	if user == nil {
		return &Resolution{Strategy: types.RingSequential, FailureReason: FailureUnknownDestination}, nil
	}

	targets := r.userTargets(ctx, user, tenant)
	if len(targets) == 0 {
		return &Resolution{Strategy: types.RingSequential, FailureReason: FailureNoEligibleTargets}, nil
	}
	return &Resolution{Strategy: types.RingSequential, Targets: targets}, nil
}

func (r *Resolver) resolveGroup(ctx context.Context, groupID string, tenant types.TenantSnapshot) (*Resolution, error) {
	group, err := r.dir.GetRingGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("routing: ring group lookup failed: %w", err)
	}
	if group == nil {
		return &Resolution{Strategy: types.RingSequential, FailureReason: FailureUnknownDestination}, nil
	}

	strategy := group.Strategy
	if strategy == "" {
		strategy = types.RingSequential
	}

	var targets []types.DialTarget
	for _, memberID := range group.MemberIDs {
		member, err := r.dir.GetUser(ctx, memberID)
		if err != nil {
			return nil, fmt.Errorf("routing: member lookup failed: %w", err)
		}
		if member == nil {
			r.logger.Warn().Str("group_id", groupID).Str("user_id", memberID).Msg("skipping unknown ring group member")
			continue
		}
		targets = append(targets, r.userTargets(ctx, member, tenant)...)
	}

	if len(targets) == 0 {
		return &Resolution{Strategy: strategy, FailureReason: FailureNoEligibleTargets}, nil
	}
	return &Resolution{Strategy: strategy, Targets: targets}, nil
}

// userTargets resolves one user to their eligible dial targets, ordered by
// the tenant's web-phone preference.
func (r *Resolver) userTargets(ctx context.Context, user *types.User, tenant types.TenantSnapshot) []types.DialTarget {
	if tenant.Policy.OnlyCheckedIn && !user.CheckedIn {
		return nil
	}
	if tenant.Policy.RespectWorkingHours {
		sched := user.Schedule
		if sched == nil {
			sched = tenant.Schedule
		}
		if !r.eval.IsOpen(sched, r.now()) {
			return nil
		}
	}

	var client, number *types.DialTarget

	ready, err := r.presence.ClientReady(ctx, user.ID)
	if err != nil {
		// Presence is eventually consistent; treat lookup failure as not ready
		r.logger.Warn().Err(err).Str("user_id", user.ID).Msg("presence lookup failed")
	} else if ready && user.ClientIdentity != "" {
		client = &types.DialTarget{Kind: types.TargetWebPhone, ClientIdentity: user.ClientIdentity, UserID: user.ID}
	}

	if user.ForwardingNumber != "" && tenant.Policy.AllowExternal {
		number = &types.DialTarget{Kind: types.TargetUserNumber, Number: user.ForwardingNumber, UserID: user.ID}
	}

	var targets []types.DialTarget
	if tenant.Policy.PrioritizeWebPhone {
		if client != nil {
			targets = append(targets, *client)
		}
		if number != nil {
			targets = append(targets, *number)
		}
	} else {
		if number != nil {
			targets = append(targets, *number)
		}
		if client != nil {
			targets = append(targets, *client)
		}
	}
	return targets
}

// DialPlan is one gateway dial attempt: the numbers and client identities
// to ring together, derived from a routing record's cursor position.
type DialPlan struct {
	Numbers []string
	Clients []string
}

// NextDialPlan returns the next attempt for the record, or ok=false when
// the record is exhausted or already bridged. Sequential strategy dials one
// target per attempt; simultaneous dials every target at once.
func NextDialPlan(rec *types.RoutingRecord) (DialPlan, bool) {
	if rec.Bridged {
		return DialPlan{}, false
	}

	if rec.Strategy == types.RingSimultaneous {
		if rec.NextIndex > 0 {
			return DialPlan{}, false
		}
		var plan DialPlan
		for _, t := range rec.Targets {
			appendTarget(&plan, t)
		}
		return plan, len(plan.Numbers)+len(plan.Clients) > 0
	}

	if rec.Exhausted() {
		return DialPlan{}, false
	}
	var plan DialPlan
	appendTarget(&plan, rec.Targets[rec.NextIndex])
	return plan, true
}

func appendTarget(plan *DialPlan, t types.DialTarget) {
	switch t.Kind {
	case types.TargetWebPhone:
		plan.Clients = append(plan.Clients, t.ClientIdentity)
	case types.TargetExternalNumber, types.TargetUserNumber:
		plan.Numbers = append(plan.Numbers, t.Number)
	}
}

// allowListed checks a number against the tenant allow-list, ignoring
// formatting differences.
func allowListed(number string, allowList []string) bool {
	want := normalizeNumber(number)
	for _, entry := range allowList {
		if normalizeNumber(entry) == want {
			return true
		}
	}
	return false
}

func normalizeNumber(n string) string {
	var b strings.Builder
	for _, r := range n {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
