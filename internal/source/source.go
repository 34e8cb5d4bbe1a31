// Package source supplies project events and configuration to the
// aggregation engine from either the persisted stores or the built-in
// fixture dataset, behind one interface.
package source

import (
	"errors"

	"github.com/pagelens/pagelens/internal/analytics"
)

// ErrDataUnavailable wraps any upstream store failure. The engine never
// retries internally; retries, if any, belong to the caller.
var ErrDataUnavailable = errors.New("analytics data unavailable")

// Source is the union the API layer resolves per project: the event feed
// and the comparison-window totals come from the same backing store.
type Source interface {
	analytics.EventSource
	analytics.ComparisonSource
}

// Resolver picks the backing source for a project once, at the API
// boundary. The demo sentinel project is served from the fixture dataset;
// everything else from the persisted store. Nothing downstream of this
// branch knows which it got.
type Resolver struct {
	demoProjectID string
	fixture       Source
	persisted     Source
}

func NewResolver(demoProjectID string, fixture, persisted Source) *Resolver {
	return &Resolver{
		demoProjectID: demoProjectID,
		fixture:       fixture,
		persisted:     persisted,
	}
}

// For returns the source serving the given project.
func (r *Resolver) For(projectID string) Source {
	if projectID == r.demoProjectID && r.fixture != nil {
		return r.fixture
	}
	return r.persisted
}
