package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/event"
)

const (
	// DefaultRangeDays is the query window length when none is requested.
	DefaultRangeDays = 30

	// DefaultRetentionEvent is the cohort entry fallback when neither the
	// request nor the project configures one.
	DefaultRetentionEvent = event.PageView
)

// DefaultFunnel is the fallback three-step funnel.
var DefaultFunnel = []string{event.PageView, "signup_started", "signup_completed"}

// RetentionOffsets are the day offsets reported on every dashboard.
var RetentionOffsets = []int{1, 3, 7}

// EventSource supplies a project's events and configuration. The fixture
// and the persisted store both satisfy it; the builder cannot tell them
// apart.
type EventSource interface {
	FetchEvents(ctx context.Context, projectID string, since time.Time) ([]event.Event, error)
	FetchProjectConfig(ctx context.Context, projectID string) (*event.ProjectConfig, error)
}

// Totals are the prior-window aggregates percent-change is computed
// against.
type Totals struct {
	Sessions  int
	PageViews int
}

// ComparisonSource supplies totals for the window immediately preceding
// the queried one, honoring the same property filters.
type ComparisonSource interface {
	FetchComparisonTotals(ctx context.Context, projectID string, start, end time.Time, filters Filters) (Totals, error)
}

// Request is the logical analytics query, transport-agnostic.
type Request struct {
	ProjectID      string
	RangeDays      int
	RetentionEvent string
	Filters        Filters
	FunnelSteps    []string
}

// Normalize fills request defaults in place.
func (r *Request) Normalize() {
	if r.RangeDays <= 0 {
		r.RangeDays = DefaultRangeDays
	}
	if len(r.FunnelSteps) == 0 {
		r.FunnelSteps = DefaultFunnel
	}
}

// EventCount is a labeled per-event-name total.
type EventCount struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Category   string `json:"category,omitempty"`
	IsCritical bool   `json:"is_critical"`
	Count      int    `json:"count"`
}

// FunnelStep is one step's distinct-user count.
type FunnelStep struct {
	Name  string `json:"name"`
	Users int    `json:"users"`
}

// RetentionPoint is the retention percentage at one day offset.
type RetentionPoint struct {
	OffsetDays int     `json:"offset_days"`
	Percentage float64 `json:"percentage"`
}

// Stat is a count with its percent-change against the prior window. A nil
// Change means the comparison was unavailable, which is distinct from a
// zero change.
type Stat struct {
	Count  int      `json:"count"`
	Change *float64 `json:"change"`
}

// Conversion is the conversion rate plus the explanation of what it
// measures.
type Conversion struct {
	Rate  float64 `json:"rate"`
	Label string  `json:"label"`
}

// Report is the full dashboard payload for one aggregation run.
type Report struct {
	ProjectID      string           `json:"project_id"`
	RangeDays      int              `json:"range_days"`
	GoalWindowDays int              `json:"goal_window_days,omitempty"`
	ViewsByDate    []DatePoint      `json:"views_by_date"`
	ViewsByPath    []PathCount      `json:"views_by_path"`
	Events         []EventCount     `json:"events"`
	Funnel         []FunnelStep     `json:"funnel"`
	Retention      []RetentionPoint `json:"retention"`
	Sessions       Stat             `json:"sessions"`
	PageViews      Stat             `json:"page_views"`
	Conversion     Conversion       `json:"conversion"`
}

// Builder runs one aggregation per Build call. It holds no per-run state,
// so a single builder serves concurrent requests.
type Builder struct {
	// Now is swappable for tests; the gap-filled series ends at Now().
	Now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// Build executes the full query: validate the funnel, fetch events and
// comparison totals concurrently, run the single aggregation pass and
// derive the report. An event-fetch failure aborts the run; a comparison
// failure only blanks the percent-change fields.
func (b *Builder) Build(ctx context.Context, src EventSource, cmp ComparisonSource, req Request) (*Report, error) {
	req.Normalize()
	if err := ValidateFunnel(req.FunnelSteps); err != nil {
		return nil, err
	}

	now := b.Now()
	since := startOfDay(now).AddDate(0, 0, -(req.RangeDays - 1))
	prevStart := since.AddDate(0, 0, -req.RangeDays)

	var (
		events   []event.Event
		cfg      *event.ProjectConfig
		fetchErr error

		totals Totals
		cmpErr error
	)

	// The two upstream calls have no data dependency; issue them together
	// and join before deriving anything.
	done := make(chan struct{})
	go func() {
		defer close(done)
		totals, cmpErr = cmp.FetchComparisonTotals(ctx, req.ProjectID, prevStart, since, req.Filters)
	}()

	events, fetchErr = src.FetchEvents(ctx, req.ProjectID, since)
	if fetchErr == nil {
		cfg, fetchErr = src.FetchProjectConfig(ctx, req.ProjectID)
	}
	<-done

	if fetchErr != nil {
		return nil, fmt.Errorf("build report for %s: %w", req.ProjectID, fetchErr)
	}
	if cmpErr != nil {
		log.Warn().Err(cmpErr).Str("project_id", req.ProjectID).Msg("Comparison window unavailable")
	}

	goal := ""
	if cfg != nil {
		goal = cfg.PrimaryGoal
	}
	retentionEvent := req.RetentionEvent
	if retentionEvent == "" {
		retentionEvent = goal
	}
	if retentionEvent == "" {
		retentionEvent = DefaultRetentionEvent
	}

	acc := Aggregate(events, req.Filters, req.FunnelSteps, goal, retentionEvent)

	report := &Report{
		ProjectID:   req.ProjectID,
		RangeDays:   req.RangeDays,
		ViewsByDate: FillMissingDates(acc.ViewsByDate, req.RangeDays, now),
		ViewsByPath: sortedPathCounts(acc.ViewsByPath),
		Events:      labeledEventCounts(acc.EventsByName, cfg),
		Sessions:    Stat{Count: acc.SessionCount()},
		PageViews:   Stat{Count: acc.TotalPageViews()},
	}
	if cfg != nil {
		report.GoalWindowDays = cfg.GoalWindowDays
	}

	counts := acc.FunnelCounts()
	report.Funnel = make([]FunnelStep, len(req.FunnelSteps))
	for i, name := range req.FunnelSteps {
		report.Funnel[i] = FunnelStep{Name: name, Users: counts[i]}
	}

	report.Retention = make([]RetentionPoint, 0, len(RetentionOffsets))
	for _, offset := range RetentionOffsets {
		report.Retention = append(report.Retention, RetentionPoint{
			OffsetDays: offset,
			Percentage: RetentionRate(acc.CohortStart, acc.ActivityByUser, offset),
		})
	}

	if cmpErr == nil {
		sessionChange := PercentChange(float64(acc.SessionCount()), float64(totals.Sessions))
		viewChange := PercentChange(float64(acc.TotalPageViews()), float64(totals.PageViews))
		report.Sessions.Change = &sessionChange
		report.PageViews.Change = &viewChange
	}

	if goal != "" {
		report.Conversion = Conversion{
			Rate:  ConversionRate(len(acc.GoalUsers), len(acc.AllUsers)),
			Label: fmt.Sprintf("Users who completed %s", cfg.Label(goal)),
		}
	} else {
		report.Conversion = Conversion{
			Rate:  FunnelConversion(counts),
			Label: fmt.Sprintf("Funnel completion %s to %s", req.FunnelSteps[0], req.FunnelSteps[len(req.FunnelSteps)-1]),
		}
	}

	return report, nil
}

func labeledEventCounts(byName map[string]int, cfg *event.ProjectConfig) []EventCount {
	out := make([]EventCount, 0, len(byName))
	for name, count := range byName {
		ec := EventCount{Name: name, Label: cfg.Label(name), Count: count}
		if def, ok := cfg.Definition(name); ok {
			ec.Category = def.Category
			ec.IsCritical = def.IsCritical
		}
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
