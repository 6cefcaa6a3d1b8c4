// Package uiactions turns agent tool calls into actions on the interactive
// surface.
//
// The remote agent describes what it wants to do through the perform_action
// tool. Every request becomes a UIAction that is reported to the host before
// anything runs, so the host can inspect or veto it. When auto-execution is
// enabled the action's script is run against the surface right away.
package uiactions

import (
	"slices"
	"time"
)

// Kind is the closed set of action categories the agent can declare.
type Kind string

const (
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindScroll   Kind = "scroll"
	KindFocus    Kind = "focus"
	KindHover    Kind = "hover"
	KindSelect   Kind = "select"
	KindNavigate Kind = "navigate"
	KindRead     Kind = "read"
	KindOther    Kind = "other"
)

// Kinds returns every valid action kind.
func Kinds() []Kind {
	return []Kind{KindClick, KindType, KindScroll, KindFocus, KindHover, KindSelect, KindNavigate, KindRead, KindOther}
}

func (k Kind) Valid() bool {
	return slices.Contains(Kinds(), k)
}

// UIAction is a single request from the agent. It is immutable once created.
type UIAction struct {
	ID string
	// Text is the explanation the agent speaks to the user.
	Text string
	// Code is the script to run against the surface, empty when the action
	// only explains.
	Code        string
	Description string
	// Target locates the element the action is about, usually an [#eN]
	// identifier from the snapshot.
	Target    string
	Kind      Kind
	CreatedAt time.Time
}

// Result reports the outcome of running an action.
type Result struct {
	Success bool
	Value   any
	Error   string
}
