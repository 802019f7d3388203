// Package lifecycle decides when persona content is emitted into a host
// session.
//
// Every load path funnels through the session's delivery history so a
// persona is injected at most once per session. Lifecycle events carry that
// history across resume, reset and compaction, and fold in the project's
// auto-load configuration.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/persona"
)

// ErrNoSession is returned when an operation needs a session id and none
// was given.
var ErrNoSession = errors.New("lifecycle: no session id")

// Source is the lifecycle tag of a session start.
type Source string

const (
	SourceStartup Source = "startup"
	SourceResume  Source = "resume"
	SourceClear   Source = "clear"
	SourceCompact Source = "compact"
)

// ParseSource converts a host tag into a Source. An empty tag is a startup.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case "":
		return SourceStartup, nil
	case SourceStartup, SourceResume, SourceClear, SourceCompact:
		return src, nil
	default:
		return "", fmt.Errorf("lifecycle: unknown source %q", s)
	}
}

// EndReasonClear is the session-end reason that hands loaded personas over
// to the next session.
const EndReasonClear = "clear"

// Reason tells why a persona was loaded at session start.
type Reason string

const (
	ReasonAuto     Reason = "auto"
	ReasonRestored Reason = "restored"
)

// LoadStatus is the outcome of a load request.
type LoadStatus string

const (
	StatusLoaded        LoadStatus = "loaded"
	StatusAlreadyLoaded LoadStatus = "already-loaded"
	StatusNotFound      LoadStatus = "not-found"
	StatusFailed        LoadStatus = "failed"
)

// Entry is a persona delivered at session start or re-injected on
// compaction.
type Entry struct {
	Archetype string        `json:"archetype"`
	Reason    Reason        `json:"reason,omitempty"`
	Scope     persona.Scope `json:"scope"`
	Path      string        `json:"path"`
	Content   string        `json:"content,omitempty"`
}

// StartOptions controls Start.
type StartOptions struct {
	// RestoredContent reads the content of personas restored from a
	// handoff. Without it they are only marked loaded.
	RestoredContent bool
}

// StartResult reports what a session start did.
type StartResult struct {
	SessionID string         `json:"sessionId"`
	Source    Source         `json:"source"`
	Entries   []Entry        `json:"entries"`
	Missing   []string       `json:"missing,omitempty"`
	Pruned    []string       `json:"pruned,omitempty"`
	Compact   *CompactResult `json:"compact,omitempty"`
}

// Archetypes returns the archetypes of entries with the given reason.
func (r *StartResult) Archetypes(reason Reason) []string {
	var out []string
	for _, e := range r.Entries {
		if e.Reason == reason {
			out = append(out, e.Archetype)
		}
	}
	return out
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Validate attaches a validation report of the loaded document.
	Validate bool
}

// LoadResult is the outcome of one load request.
type LoadResult struct {
	Archetype  string              `json:"archetype"`
	Status     LoadStatus          `json:"status"`
	Descriptor *persona.Descriptor `json:"-"`
	Scope      persona.Scope       `json:"scope,omitempty"`
	Content    string              `json:"content,omitempty"`
	Tokens     int                 `json:"tokens,omitempty"`
	Validation *audit.Validation   `json:"validation,omitempty"`
	Err        string              `json:"error,omitempty"`
}

// CompactResult carries the content that must survive a compaction.
type CompactResult struct {
	SessionID string   `json:"sessionId"`
	Personas  []Entry  `json:"personas"`
	Missing   []string `json:"missing,omitempty"`
	Tokens    int      `json:"tokens,omitempty"`
}

// EndResult reports what a session end did.
type EndResult struct {
	SessionID string   `json:"sessionId"`
	Reason    string   `json:"reason"`
	Handoff   []string `json:"handoff,omitempty"`
	Removed   bool     `json:"removed"`
}

// ClearResult reports a clear request. All is set when every persona was
// cleared; Cleared then lists what was loaded.
type ClearResult struct {
	All       bool     `json:"all"`
	Cleared   []string `json:"cleared"`
	Remaining []string `json:"remaining"`
}

// ShowResult is a persona previewed without loading it.
type ShowResult struct {
	Persona *persona.Persona `json:"persona"`
	Content string           `json:"content"`
	Loaded  bool             `json:"loaded"`
	Tokens  int              `json:"tokens,omitempty"`
}

// ListItem is one persona in a listing.
type ListItem struct {
	*persona.Persona
	Loaded   bool `json:"loaded"`
	AutoLoad bool `json:"autoLoad"`
}

// ListSummary counts a listing.
type ListSummary struct {
	Total    int `json:"total"`
	Local    int `json:"local"`
	User     int `json:"user"`
	Loaded   int `json:"loaded"`
	AutoLoad int `json:"autoLoad"`
}

// ListResult is the output of List.
type ListResult struct {
	Personas []ListItem  `json:"personas"`
	Summary  ListSummary `json:"summary"`
}

// LoadedPersona is a loaded archetype in a status report.
type LoadedPersona struct {
	Archetype string `json:"archetype"`
	Auto      bool   `json:"auto"`
}

// SessionStatus describes one session and the project configuration.
type SessionStatus struct {
	SessionID       string          `json:"sessionId"`
	Loaded          []LoadedPersona `json:"loaded"`
	AutoLoad        []string        `json:"autoLoad"`
	MissingAutoLoad []string        `json:"missingAutoLoad"`
	ConfigPath      string          `json:"configPath"`
}

// DeleteResult reports a deleted persona.
type DeleteResult struct {
	Archetype string        `json:"archetype"`
	Scope     persona.Scope `json:"scope"`
	Dir       string        `json:"deleted"`
	Sessions  []string      `json:"sessions,omitempty"`
}
