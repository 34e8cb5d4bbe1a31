package analytics

import (
	"time"

	"github.com/pagelens/pagelens/internal/event"
)

// dayFormat keys all calendar-day buckets.
const dayFormat = "2006-01-02"

// Session is a transient reconstruction of one SDK session: all events
// sharing a non-empty session id. There is no timeout or expiry boundary
// here; where a session starts and ends is entirely the SDK's call, the
// aggregator only min/maxes what it is given.
type Session struct {
	ID    string
	Start time.Time
	End   time.Time
	Pages []string
}

// Accumulator is the single-pass aggregation state for one run. One run
// owns one accumulator; it is never shared between goroutines and performs
// no I/O. Malformed input degrades to sentinel values instead of erroring,
// so a pass always completes.
type Accumulator struct {
	EventsByName map[string]int
	ViewsByDate  map[string]int
	ViewsByPath  map[string]int
	Sessions     map[string]*Session

	// Goal is the project's primary conversion goal; empty disables goal
	// tracking.
	Goal      string
	GoalUsers map[string]struct{}
	AllUsers  map[string]struct{}

	// RetentionEvent is the cohort entry event. CohortStart records each
	// user's first-touch entry timestamp; ActivityByUser the calendar days
	// on which the user produced any event.
	RetentionEvent string
	CohortStart    map[string]time.Time
	ActivityByUser map[string]map[string]struct{}

	funnel *funnelTracker
}

// NewAccumulator builds an empty accumulator for the given funnel steps,
// conversion goal and retention entry event.
func NewAccumulator(funnelSteps []string, goal, retentionEvent string) *Accumulator {
	return &Accumulator{
		EventsByName:   make(map[string]int),
		ViewsByDate:    make(map[string]int),
		ViewsByPath:    make(map[string]int),
		Sessions:       make(map[string]*Session),
		Goal:           goal,
		GoalUsers:      make(map[string]struct{}),
		AllUsers:       make(map[string]struct{}),
		RetentionEvent: retentionEvent,
		CohortStart:    make(map[string]time.Time),
		ActivityByUser: make(map[string]map[string]struct{}),
		funnel:         newFunnelTracker(funnelSteps),
	}
}

// Observe folds one event into every derived view. Events must arrive in
// ascending created-at order; the funnel and cohort first-touch rules
// depend on it.
func (a *Accumulator) Observe(e event.Event) {
	user := e.User()
	day := e.CreatedAt.Format(dayFormat)

	a.AllUsers[user] = struct{}{}
	a.EventsByName[e.Name]++

	if e.Name == event.PageView {
		a.ViewsByDate[day]++
		a.ViewsByPath[e.Path()]++
	}

	if e.SessionID != "" {
		a.observeSession(e)
	}

	a.funnel.observe(user, e.Name, e.CreatedAt)

	if a.Goal != "" && e.Name == a.Goal {
		a.GoalUsers[user] = struct{}{}
	}

	if e.Name == a.RetentionEvent {
		if _, ok := a.CohortStart[user]; !ok {
			a.CohortStart[user] = e.CreatedAt
		}
	}

	days := a.ActivityByUser[user]
	if days == nil {
		days = make(map[string]struct{})
		a.ActivityByUser[user] = days
	}
	days[day] = struct{}{}
}

func (a *Accumulator) observeSession(e event.Event) {
	s := a.Sessions[e.SessionID]
	if s == nil {
		s = &Session{ID: e.SessionID, Start: e.CreatedAt, End: e.CreatedAt}
		a.Sessions[e.SessionID] = s
	}
	if e.CreatedAt.Before(s.Start) {
		s.Start = e.CreatedAt
	}
	if e.CreatedAt.After(s.End) {
		s.End = e.CreatedAt
	}
	if e.Name == event.PageView {
		if path, ok := e.Properties.GetString("path"); ok && path != "" {
			s.Pages = append(s.Pages, path)
		}
	}
}

// SessionCount is the number of distinct sessions with at least one event.
func (a *Accumulator) SessionCount() int {
	return len(a.Sessions)
}

// TotalPageViews is the number of page-view events observed.
func (a *Accumulator) TotalPageViews() int {
	return a.EventsByName[event.PageView]
}

// FunnelCounts returns per-step distinct-user counts, in step order.
func (a *Accumulator) FunnelCounts() []int {
	return a.funnel.counts()
}

// Aggregate runs the single pass: events already scoped to the query
// window, in ascending time order, filtered through the compiled predicate
// before any counter is touched.
func Aggregate(events []event.Event, filters Filters, funnelSteps []string, goal, retentionEvent string) *Accumulator {
	acc := NewAccumulator(funnelSteps, goal, retentionEvent)
	for _, e := range events {
		if !filters.Match(e.Properties) {
			continue
		}
		acc.Observe(e)
	}
	return acc
}
