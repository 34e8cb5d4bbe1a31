package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/event"
)

var fixtureNow = time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)

func TestFixtureEventsOrderedAscending(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)

	events, err := fx.FetchEvents(context.Background(), "demo", fixtureNow.AddDate(0, 0, -fixtureDays))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].CreatedAt.Before(events[i-1].CreatedAt),
			"event %d out of order", i)
	}
}

func TestFixtureSinceFiltering(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)
	since := fixtureNow.AddDate(0, 0, -7)

	events, err := fx.FetchEvents(context.Background(), "demo", since)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.False(t, e.CreatedAt.Before(since))
	}

	all, _ := fx.FetchEvents(context.Background(), "demo", time.Time{})
	assert.Greater(t, len(all), len(events), "narrower window returns fewer events")
}

func TestFixtureDeterminism(t *testing.T) {
	a := NewFixtureSource("demo", fixtureNow)
	b := NewFixtureSource("demo", fixtureNow)

	ea, _ := a.FetchEvents(context.Background(), "demo", time.Time{})
	eb, _ := b.FetchEvents(context.Background(), "demo", time.Time{})
	assert.Equal(t, ea, eb, "fixture generation must be reproducible")
}

func TestFixtureProjectConfig(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)

	cfg, err := fx.FetchProjectConfig(context.Background(), "demo")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "signup_completed", cfg.PrimaryGoal)
	assert.Equal(t, "Signup completed", cfg.Label("signup_completed"))

	// Returned config is a copy; mutating it must not leak into the source.
	cfg.PrimaryGoal = "mutated"
	again, _ := fx.FetchProjectConfig(context.Background(), "demo")
	assert.Equal(t, "signup_completed", again.PrimaryGoal)
}

func TestFixtureComparisonScalesCurrentWindow(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)

	end := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -7)

	totals, err := fx.FetchComparisonTotals(context.Background(), "demo", start, end, nil)
	require.NoError(t, err)

	// Recompute the current window [end, end+7d) by hand and apply the
	// scaling factor.
	events, _ := fx.FetchEvents(context.Background(), "demo", end)
	currentEnd := end.AddDate(0, 0, 7)
	sessions := make(map[string]struct{})
	views := 0
	for _, e := range events {
		if !e.CreatedAt.Before(currentEnd) {
			continue
		}
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		if e.Name == event.PageView {
			views++
		}
	}

	assert.Equal(t, int(float64(len(sessions))*comparisonFactor), totals.Sessions)
	assert.Equal(t, int(float64(views)*comparisonFactor), totals.PageViews)
	assert.Greater(t, totals.PageViews, 0)
}

func TestFixtureComparisonHonorsFilters(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)

	end := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -7)

	all, err := fx.FetchComparisonTotals(context.Background(), "demo", start, end, nil)
	require.NoError(t, err)

	filtered, err := fx.FetchComparisonTotals(context.Background(), "demo", start, end,
		analytics.ParseFilters("path:equals:/pricing"))
	require.NoError(t, err)

	assert.Less(t, filtered.PageViews, all.PageViews)
}

func TestResolverSelectsFixtureForDemoProject(t *testing.T) {
	fx := NewFixtureSource("demo", fixtureNow)
	r := NewResolver("demo", fx, nil)

	assert.Equal(t, Source(fx), r.For("demo"))
	assert.Nil(t, r.For("real-project"))
}
