package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/primary"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// mockScreenService implements primary.ScreenService for testing.
type mockScreenService struct {
	snapshots  map[string]entity.Snapshot
	actionErr  error
	publishErr error

	mounted     []string
	unmounted   []string
	refreshed   []string
	visibility  []entity.VisibilityState
	published   []entity.TopicEvent
	appliedDefs [][]entity.ScreenDefinition
}

var _ primary.ScreenService = (*mockScreenService)(nil)

func newMockScreenService() *mockScreenService {
	fetched := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &mockScreenService{
		snapshots: map[string]entity.Snapshot{
			"marks": {
				Screen:    "marks",
				Mounted:   true,
				Data:      map[string]json.RawMessage{"/api/marks": json.RawMessage(`[90]`)},
				FetchedAt: fetched,
				Refreshes: 3,
				Interval:  300 * time.Second,
				Topics:    []entity.Topic{entity.TopicMarks},
				TaskID:    "task-1",
			},
			"timetable": {
				Screen:   "timetable",
				Interval: 1800 * time.Second,
			},
		},
	}
}

func (m *mockScreenService) Mount(_ context.Context, name string) error {
	if _, err := m.Snapshot(name); err != nil {
		return err
	}
	m.mounted = append(m.mounted, name)
	return m.actionErr
}

func (m *mockScreenService) Unmount(name string) error {
	if _, err := m.Snapshot(name); err != nil {
		return err
	}
	m.unmounted = append(m.unmounted, name)
	return m.actionErr
}

func (m *mockScreenService) Refresh(_ context.Context, name string) error {
	if _, err := m.Snapshot(name); err != nil {
		return err
	}
	m.refreshed = append(m.refreshed, name)
	return m.actionErr
}

func (m *mockScreenService) Snapshot(name string) (entity.Snapshot, error) {
	s, ok := m.snapshots[name]
	if !ok {
		return entity.Snapshot{}, domain.ErrScreenNotFound
	}
	return s, nil
}

func (m *mockScreenService) List() []entity.Snapshot {
	return []entity.Snapshot{m.snapshots["marks"], m.snapshots["timetable"]}
}

func (m *mockScreenService) SetVisibility(state entity.VisibilityState) {
	m.visibility = append(m.visibility, state)
}

func (m *mockScreenService) Publish(_ context.Context, event entity.TopicEvent) error {
	m.published = append(m.published, event)
	return m.publishErr
}

func (m *mockScreenService) ApplyDefinitions(defs []entity.ScreenDefinition) error {
	m.appliedDefs = append(m.appliedDefs, defs)
	return nil
}

// mockHealthCheck is a test double for health checks.
type mockHealthCheck struct {
	name string
	err  error
}

// healthCheckerAdapter wraps mockHealthCheck to satisfy secondary.HealthChecker.
type healthCheckerAdapter struct {
	check mockHealthCheck
}

func (a healthCheckerAdapter) Name() string {
	return a.check.name
}

func (a healthCheckerAdapter) Check(_ context.Context) error {
	return a.check.err
}

// Compile-time interface assertion
var _ secondary.HealthChecker = healthCheckerAdapter{}

// toHealthCheckers converts a slice of adapters to a slice of the interface.
func toHealthCheckers(adapters []healthCheckerAdapter) []secondary.HealthChecker {
	if len(adapters) == 0 {
		return nil
	}
	result := make([]secondary.HealthChecker, len(adapters))
	for i, a := range adapters {
		result[i] = a
	}
	return result
}
