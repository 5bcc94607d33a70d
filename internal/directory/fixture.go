package directory

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/types"
	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk shape of a development directory
type fixtureFile struct {
	Tenants []fixtureTenant `yaml:"tenants"`
}

type fixtureTenant struct {
	Tenant     types.TenantSnapshot `yaml:"tenant"`
	Workflows  []fixtureWorkflow    `yaml:"workflows"`
	Users      []types.User         `yaml:"users"`
	RingGroups []types.RingGroup    `yaml:"ringGroups"`
}

type fixtureWorkflow struct {
	Workflow types.WorkflowSnapshot `yaml:"workflow"`
	Numbers  []string               `yaml:"numbers"`
}

// FixtureStore serves the directory from a YAML file, for local
// development without Postgres.
type FixtureStore struct {
	routes map[string]*Route
	users  map[string]*types.User
	groups map[string]*types.RingGroup
}

// NewFixtureStore loads and indexes the fixture file
func NewFixtureStore(path string, logger zerolog.Logger) (*FixtureStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory fixture: %w", err)
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse directory fixture: %w", err)
	}

	store := &FixtureStore{
		routes: make(map[string]*Route),
		users:  make(map[string]*types.User),
		groups: make(map[string]*types.RingGroup),
	}

	for _, ft := range file.Tenants {
		for i := range ft.Users {
			user := ft.Users[i]
			user.TenantID = ft.Tenant.ID
			store.users[user.ID] = &user
		}
		for i := range ft.RingGroups {
			group := ft.RingGroups[i]
			group.TenantID = ft.Tenant.ID
			store.groups[group.ID] = &group
		}
		for _, fw := range ft.Workflows {
			workflow := fw.Workflow
			workflow.TenantID = ft.Tenant.ID

			route := &Route{Tenant: ft.Tenant, Workflow: workflow}
			if workflow.AssignedAgentID != "" {
				if user, ok := store.users[workflow.AssignedAgentID]; ok {
					route.Agent = &types.AgentSnapshot{
						UserID:   user.ID,
						Name:     user.Name,
						Email:    user.Email,
						Timezone: user.Timezone,
					}
				}
			}
			for _, number := range fw.Numbers {
				store.routes[number] = route
			}
		}
	}

	logger.Info().
		Str("path", path).
		Int("numbers", len(store.routes)).
		Int("users", len(store.users)).
		Msg("directory fixture loaded")
	return store, nil
}

func (s *FixtureStore) ResolveInbound(_ context.Context, toNumber string) (*Route, error) {
	return s.routes[toNumber], nil
}

func (s *FixtureStore) GetUser(_ context.Context, id string) (*types.User, error) {
	return s.users[id], nil
}

func (s *FixtureStore) GetRingGroup(_ context.Context, id string) (*types.RingGroup, error) {
	return s.groups[id], nil
}
