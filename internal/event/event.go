package event

import (
	"time"
)

const (
	// PageView is the event name page-view rollups key off.
	PageView = "page_view"

	// AnonymousUser replaces a missing user id so every event still
	// attributes to exactly one user bucket.
	AnonymousUser = "anonymous"

	// UnknownPath replaces a missing page path on page-view events.
	UnknownPath = "unknown"
)

// Event is a single behavioral fact ingested for a project. Events are
// append-only and never mutated; the aggregation pass treats them as
// read-only input.
type Event struct {
	Name       string     `json:"event_name"`
	CreatedAt  time.Time  `json:"created_at"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	Properties Properties `json:"properties"`
}

// User returns the event's user id, normalizing absent ids to the
// anonymous sentinel.
func (e Event) User() string {
	if e.UserID == "" {
		return AnonymousUser
	}
	return e.UserID
}

// Path returns the page path for page-view events, falling back to the
// unknown sentinel when the property is absent or empty.
func (e Event) Path() string {
	if p, ok := e.Properties.GetString("path"); ok && p != "" {
		return p
	}
	return UnknownPath
}

// EventDefinition is display metadata attached to a raw event name. It
// affects labeling only, never aggregation math.
type EventDefinition struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	IsCritical bool   `json:"is_critical"`
}

// ProjectConfig is the slowly-changing per-project analytics configuration,
// read once per aggregation run.
type ProjectConfig struct {
	// PrimaryGoal is the event name used as the project's conversion goal.
	// Empty means no goal is configured.
	PrimaryGoal string `json:"primary_goal"`

	// GoalWindowDays is the conversion attribution window. It is stored and
	// reported but not applied as a filter: conversion counts any goal event
	// regardless of elapsed time since acquisition. Enforcing it would be a
	// behavior change, not a bug fix.
	GoalWindowDays int `json:"goal_window_days"`

	EventDefinitions map[string]EventDefinition `json:"event_definitions"`
}

// Label resolves the display title for an event name, falling back to the
// raw name when no definition exists.
func (c *ProjectConfig) Label(name string) string {
	if c == nil {
		return name
	}
	if def, ok := c.EventDefinitions[name]; ok && def.Title != "" {
		return def.Title
	}
	return name
}

// Definition looks up display metadata for an event name.
func (c *ProjectConfig) Definition(name string) (EventDefinition, bool) {
	if c == nil {
		return EventDefinition{}, false
	}
	def, ok := c.EventDefinitions[name]
	return def, ok
}
