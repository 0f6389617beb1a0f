package entity

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/valueobject"
)

// ScreenDefinition describes what a portal screen fetches and how often.
type ScreenDefinition struct {
	Name      string
	Endpoints []string
	Interval  time.Duration
	Topics    []Topic
}

// Validate normalizes the definition in place and reports the first problem found.
func (d *ScreenDefinition) Validate() error {
	name, err := valueobject.NewScreenName(d.Name)
	if err != nil {
		return err
	}
	d.Name = name.String()

	if len(d.Endpoints) == 0 {
		return fmt.Errorf("screen %q: at least one endpoint is required", d.Name)
	}
	if len(d.Endpoints) > domain.MaxEndpointsPerScreen {
		return fmt.Errorf("screen %q: at most %d endpoints allowed", d.Name, domain.MaxEndpointsPerScreen)
	}
	for i, ep := range d.Endpoints {
		ep = strings.TrimSpace(ep)
		if !strings.HasPrefix(ep, "/") {
			return fmt.Errorf("screen %q: endpoint %q must be an absolute path", d.Name, ep)
		}
		d.Endpoints[i] = ep
	}

	if d.Interval < domain.MinScreenInterval {
		return fmt.Errorf("screen %q: interval must be at least %v", d.Name, domain.MinScreenInterval)
	}

	for i, t := range d.Topics {
		parsed, err := ParseTopic(string(t))
		if err != nil {
			return fmt.Errorf("screen %q: %w", d.Name, err)
		}
		d.Topics[i] = parsed
	}
	slices.Sort(d.Topics)
	d.Topics = slices.Compact(d.Topics)

	return nil
}

// Target identifies the refetch operation of this definition. Two definitions
// with the same target fetch the same data.
func (d ScreenDefinition) Target() string {
	return d.Name + "|" + strings.Join(d.Endpoints, ",")
}

// Clone returns a deep copy.
func (d ScreenDefinition) Clone() ScreenDefinition {
	d.Endpoints = slices.Clone(d.Endpoints)
	d.Topics = slices.Clone(d.Topics)
	return d
}

// DefaultScreens returns the portal's screen catalogue with its observed cadences.
func DefaultScreens() []ScreenDefinition {
	return []ScreenDefinition{
		{
			Name:      "notifications",
			Endpoints: []string{"/api/notifications"},
			Interval:  domain.NotificationsInterval,
		},
		{
			Name:      "dashboard",
			Endpoints: []string{"/api/dashboard/stats", "/api/attendance/summary", "/api/marks/summary"},
			Interval:  domain.DefaultScreenInterval,
			Topics:    []Topic{TopicAttendance, TopicMarks},
		},
		{
			Name:      "attendance",
			Endpoints: []string{"/api/attendance", "/api/attendance/summary"},
			Interval:  domain.DefaultScreenInterval,
			Topics:    []Topic{TopicAttendance, TopicMarks},
		},
		{
			Name:      "marks",
			Endpoints: []string{"/api/marks"},
			Interval:  domain.DefaultScreenInterval,
			Topics:    []Topic{TopicMarks},
		},
		{
			Name:      "profile",
			Endpoints: []string{"/api/profile"},
			Interval:  domain.DefaultScreenInterval,
			Topics:    []Topic{TopicProfile},
		},
		{
			Name:      "downloads",
			Endpoints: []string{"/api/downloads"},
			Interval:  domain.DefaultScreenInterval,
			Topics:    []Topic{TopicDownloads},
		},
		{
			Name:      "timetable",
			Endpoints: []string{"/api/timetable"},
			Interval:  domain.TimetableInterval,
		},
	}
}

// Snapshot is a screen's local state as of its last successful refetch.
type Snapshot struct {
	Screen    string
	Mounted   bool
	Data      map[string]json.RawMessage
	FetchedAt time.Time
	Refreshes int
	LastError string
	Interval  time.Duration
	Topics    []Topic
	TaskID    string
}
