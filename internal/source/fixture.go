package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/event"
)

// fixtureDays is how much demo history gets generated.
const fixtureDays = 28

// comparisonFactor synthesizes the prior demo window as a fixed share of
// the current one, so the demo dashboard always shows growth. The real
// store queries the prior window instead; swapping implementations never
// touches callers.
const comparisonFactor = 0.8

var fixturePaths = []string{"/", "/pricing", "/docs", "/docs/quickstart", "/signup"}

// FixtureSource serves a deterministic in-memory dataset for the demo
// project, used for onboarding before any real data exists. It satisfies
// the same contract as the persisted store: ascending event order, same
// config shape, same comparison interface.
type FixtureSource struct {
	projectID string
	events    []event.Event
	cfg       *event.ProjectConfig
}

func NewFixtureSource(projectID string, now time.Time) *FixtureSource {
	s := &FixtureSource{
		projectID: projectID,
		cfg: &event.ProjectConfig{
			PrimaryGoal:    "signup_completed",
			GoalWindowDays: 7,
			EventDefinitions: map[string]event.EventDefinition{
				event.PageView:     {Title: "Page viewed", Category: "navigation"},
				"signup_started":   {Title: "Signup started", Category: "acquisition"},
				"signup_completed": {Title: "Signup completed", Category: "acquisition", IsCritical: true},
				"invite_sent":      {Title: "Invite sent", Category: "growth"},
			},
		},
	}
	s.events = generateFixtureEvents(projectID, now)
	return s
}

// generateFixtureEvents lays out four weeks of plausible activity for a
// small cast of users. Everything derives from the project id and day
// index, so reloads produce the same dataset.
func generateFixtureEvents(projectID string, now time.Time) []event.Event {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(fixtureDays - 1))

	var events []event.Event
	for d := 0; d < fixtureDays; d++ {
		day := start.AddDate(0, 0, d)

		for i := 0; i < 8; i++ {
			if (d+i)%3 != 0 {
				continue
			}
			user := fmt.Sprintf("demo-user-%d", i+1)
			sessionID := fixtureID(projectID, user, day)
			at := day.Add(9*time.Hour + time.Duration(i*37)*time.Minute)

			events = append(events,
				fixturePageView(user, sessionID, at, "/"),
				fixturePageView(user, sessionID, at.Add(2*time.Minute), fixturePaths[(d+i)%len(fixturePaths)]),
			)
			if (d+i)%6 == 0 {
				events = append(events, event.Event{
					Name:      "signup_started",
					CreatedAt: at.Add(5 * time.Minute),
					UserID:    user,
					SessionID: sessionID,
					Properties: event.Properties{
						"plan": event.String(fixturePlan(i)),
					},
				})
			}
			if (d+i)%12 == 0 {
				events = append(events,
					event.Event{
						Name:      "signup_completed",
						CreatedAt: at.Add(9 * time.Minute),
						UserID:    user,
						SessionID: sessionID,
						Properties: event.Properties{
							"plan": event.String(fixturePlan(i)),
						},
					},
					event.Event{
						Name:      "invite_sent",
						CreatedAt: at.Add(12 * time.Minute),
						UserID:    user,
						SessionID: sessionID,
						Properties: event.Properties{
							"invites": event.Number(float64(i%3 + 1)),
						},
					},
				)
			}
		}

		// A little anonymous traffic each day.
		anonSession := fixtureID(projectID, "anonymous", day)
		events = append(events,
			fixturePageView("", anonSession, day.Add(14*time.Hour), "/"),
			fixturePageView("", anonSession, day.Add(14*time.Hour+3*time.Minute), "/pricing"),
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events
}

func fixturePageView(user, sessionID string, at time.Time, path string) event.Event {
	return event.Event{
		Name:      event.PageView,
		CreatedAt: at,
		UserID:    user,
		SessionID: sessionID,
		Properties: event.Properties{
			"path": event.String(path),
		},
	}
}

func fixturePlan(i int) string {
	if i%2 == 0 {
		return "pro"
	}
	return "free"
}

// fixtureID derives a stable session id from project, user and day.
func fixtureID(projectID, user string, day time.Time) string {
	name := projectID + "|" + user + "|" + day.Format("2006-01-02")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (s *FixtureSource) FetchEvents(_ context.Context, _ string, since time.Time) ([]event.Event, error) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].CreatedAt.Before(since)
	})
	out := make([]event.Event, len(s.events)-idx)
	copy(out, s.events[idx:])
	return out, nil
}

func (s *FixtureSource) FetchProjectConfig(_ context.Context, _ string) (*event.ProjectConfig, error) {
	cfg := *s.cfg
	return &cfg, nil
}

// FetchComparisonTotals scales the current window's totals by a fixed
// factor instead of querying the prior window independently; the demo
// dataset is too short for two full windows.
func (s *FixtureSource) FetchComparisonTotals(_ context.Context, _ string, start, end time.Time, filters analytics.Filters) (analytics.Totals, error) {
	// The prior window [start, end) abuts the current one, which therefore
	// spans [end, end + (end-start)).
	currentEnd := end.Add(end.Sub(start))

	sessions := make(map[string]struct{})
	pageViews := 0
	for _, e := range s.events {
		if e.CreatedAt.Before(end) || !e.CreatedAt.Before(currentEnd) {
			continue
		}
		if !filters.Match(e.Properties) {
			continue
		}
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		if e.Name == event.PageView {
			pageViews++
		}
	}

	return analytics.Totals{
		Sessions:  int(float64(len(sessions)) * comparisonFactor),
		PageViews: int(float64(pageViews) * comparisonFactor),
	}, nil
}
