package directory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore is the production directory backed by Postgres
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore connects, verifies the connection and returns the store
func NewPostgresStore(ctx context.Context, url string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Migrate applies pending schema migrations
func Migrate(url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// ResolveInbound maps a dialed number to its tenant and workflow
func (s *PostgresStore) ResolveInbound(ctx context.Context, toNumber string) (*Route, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT t.id, t.name, t.timezone, t.schedule, t.policy,
		       t.voicemail_enabled, t.voicemail_greeting, t.max_booking_minutes,
		       w.id, w.instructions, w.greeting, w.voice, w.timezone,
		       w.required_slots, w.assigned_agent_id,
		       w.forward_first, w.forward_number, w.forward_user_id, w.forward_group_id,
		       w.disable_idle_hangup, w.booking_minutes
		FROM phone_numbers pn
		JOIN workflows w ON w.id = pn.workflow_id
		JOIN tenants t ON t.id = w.tenant_id
		WHERE pn.number = $1`, toNumber)

	var (
		tenant          types.TenantSnapshot
		workflow        types.WorkflowSnapshot
		scheduleJSON    []byte
		policyJSON      []byte
		slotsJSON       []byte
		maxBookingMins  int
		bookingMins     int
		voicemailGreet  sql.NullString
		workflowTZ      sql.NullString
		assignedAgentID sql.NullString
		forwardNumber   sql.NullString
		forwardUserID   sql.NullString
		forwardGroupID  sql.NullString
	)

	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Timezone, &scheduleJSON, &policyJSON,
		&tenant.VoicemailEnabled, &voicemailGreet, &maxBookingMins,
		&workflow.ID, &workflow.Instructions, &workflow.Greeting, &workflow.Voice, &workflowTZ,
		&slotsJSON, &assignedAgentID,
		&workflow.ForwardFirst, &forwardNumber, &forwardUserID, &forwardGroupID,
		&workflow.DisableIdleHangup, &bookingMins,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inbound lookup failed for %s: %w", toNumber, err)
	}

	if len(scheduleJSON) > 0 {
		var sched types.Schedule
		if err := json.Unmarshal(scheduleJSON, &sched); err != nil {
			return nil, fmt.Errorf("invalid tenant schedule for %s: %w", tenant.ID, err)
		}
		tenant.Schedule = &sched
	}
	if len(policyJSON) > 0 {
		if err := json.Unmarshal(policyJSON, &tenant.Policy); err != nil {
			return nil, fmt.Errorf("invalid forwarding policy for %s: %w", tenant.ID, err)
		}
	}
	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &workflow.RequiredSlots); err != nil {
			return nil, fmt.Errorf("invalid required slots for workflow %s: %w", workflow.ID, err)
		}
	}

	tenant.VoicemailGreeting = voicemailGreet.String
	tenant.MaxBookingDuration = time.Duration(maxBookingMins) * time.Minute
	workflow.TenantID = tenant.ID
	workflow.Timezone = workflowTZ.String
	workflow.AssignedAgentID = assignedAgentID.String
	workflow.ForwardNumber = forwardNumber.String
	workflow.ForwardUserID = forwardUserID.String
	workflow.ForwardGroupID = forwardGroupID.String
	workflow.BookingDuration = time.Duration(bookingMins) * time.Minute

	route := &Route{Tenant: tenant, Workflow: workflow}
	if workflow.AssignedAgentID != "" {
		agent, err := s.getAgent(ctx, workflow.AssignedAgentID)
		if err != nil {
			// A broken agent link degrades to an unassigned workflow
			s.logger.Warn().Err(err).Str("user_id", workflow.AssignedAgentID).Msg("assigned agent lookup failed")
		} else {
			route.Agent = agent
		}
	}
	return route, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, forwarding_number, client_identity,
		       checked_in, timezone, schedule
		FROM users WHERE id = $1`, id)

	var (
		user         types.User
		fwdNumber    sql.NullString
		clientIdent  sql.NullString
		timezone     sql.NullString
		scheduleJSON []byte
	)
	err := row.Scan(&user.ID, &user.TenantID, &user.Name, &user.Email,
		&fwdNumber, &clientIdent, &user.CheckedIn, &timezone, &scheduleJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed for %s: %w", id, err)
	}

	user.ForwardingNumber = fwdNumber.String
	user.ClientIdentity = clientIdent.String
	user.Timezone = timezone.String
	if len(scheduleJSON) > 0 {
		var sched types.Schedule
		if err := json.Unmarshal(scheduleJSON, &sched); err != nil {
			return nil, fmt.Errorf("invalid schedule for user %s: %w", id, err)
		}
		user.Schedule = &sched
	}
	return &user, nil
}

func (s *PostgresStore) GetRingGroup(ctx context.Context, id string) (*types.RingGroup, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, strategy, member_ids
		FROM ring_groups WHERE id = $1`, id)

	var (
		group       types.RingGroup
		membersJSON []byte
	)
	err := row.Scan(&group.ID, &group.TenantID, &group.Name, &group.Strategy, &membersJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ring group lookup failed for %s: %w", id, err)
	}

	if len(membersJSON) > 0 {
		if err := json.Unmarshal(membersJSON, &group.MemberIDs); err != nil {
			return nil, fmt.Errorf("invalid member list for group %s: %w", id, err)
		}
	}
	return &group, nil
}

func (s *PostgresStore) getAgent(ctx context.Context, userID string) (*types.AgentSnapshot, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("agent user %s not found", userID)
	}
	return &types.AgentSnapshot{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Timezone: user.Timezone,
	}, nil
}
