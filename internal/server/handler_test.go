package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/source"
)

var handlerNow = time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	fixture := source.NewFixtureSource("demo", handlerNow)
	resolver := source.NewResolver("demo", fixture, nil)

	builder := analytics.NewBuilder()
	builder.Now = func() time.Time { return handlerNow }

	ts := httptest.NewServer(New(resolver, builder, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyticsDemoProject(t *testing.T) {
	ts := newTestServer(t)

	var report analytics.Report
	status := getJSON(t, ts.URL+"/v1/projects/demo/analytics?range=14", &report)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "demo", report.ProjectID)
	assert.Equal(t, 14, report.RangeDays)
	assert.Len(t, report.ViewsByDate, 14, "series is gap-filled to the full window")
	assert.Greater(t, report.PageViews.Count, 0)
	assert.Greater(t, report.Sessions.Count, 0)
	require.NotNil(t, report.Sessions.Change, "fixture comparison is always available")
	assert.Len(t, report.Retention, 3)
	require.Len(t, report.Funnel, 3)

	// Funnel counts are non-increasing.
	for i := 1; i < len(report.Funnel); i++ {
		assert.GreaterOrEqual(t, report.Funnel[i-1].Users, report.Funnel[i].Users)
	}

	// Display labels from the demo project's event definitions.
	for _, ec := range report.Events {
		if ec.Name == "signup_completed" {
			assert.Equal(t, "Signup completed", ec.Label)
			assert.True(t, ec.IsCritical)
		}
	}
}

func TestAnalyticsInvalidFunnel(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/v1/projects/demo/analytics?funnel=only_step", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A funnel needs at least 2 steps", body["error"])
}

func TestAnalyticsCustomFunnel(t *testing.T) {
	ts := newTestServer(t)

	var report analytics.Report
	status := getJSON(t, ts.URL+"/v1/projects/demo/analytics?funnel=page_view,signup_started,signup_completed,invite_sent", &report)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, report.Funnel, 4)
	assert.Equal(t, "invite_sent", report.Funnel[3].Name)
}

func TestAnalyticsFiltersNarrowResults(t *testing.T) {
	ts := newTestServer(t)

	var all analytics.Report
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/v1/projects/demo/analytics", &all))

	var filtered analytics.Report
	require.Equal(t, http.StatusOK,
		getJSON(t, ts.URL+"/v1/projects/demo/analytics?filters=path:equals:/pricing", &filtered))

	assert.Less(t, filtered.PageViews.Count, all.PageViews.Count)
	require.NotEmpty(t, filtered.ViewsByPath)
	assert.Equal(t, "/pricing", filtered.ViewsByPath[0].Path)
}

func TestAnalyticsMalformedFiltersDegradeGracefully(t *testing.T) {
	ts := newTestServer(t)

	var report analytics.Report
	status := getJSON(t, ts.URL+"/v1/projects/demo/analytics?filters=broken,also:bad", &report)
	assert.Equal(t, http.StatusOK, status, "malformed filters are dropped, not fatal")
	assert.Greater(t, report.PageViews.Count, 0)
}

func TestAnalyticsRetentionEventOverride(t *testing.T) {
	ts := newTestServer(t)

	var report analytics.Report
	status := getJSON(t, ts.URL+"/v1/projects/demo/analytics?retention_event=does_not_exist", &report)
	require.Equal(t, http.StatusOK, status)
	for _, p := range report.Retention {
		assert.Zero(t, p.Percentage, "unknown retention event is an empty cohort, not an error")
	}
}
