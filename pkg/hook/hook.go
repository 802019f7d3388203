// Package hook turns host hook payloads into lifecycle events.
//
// Hosts deliver events as JSON on stdin, and each host uses its own shape.
// Claude Code sends a flat object with session_id, source and reason.
// OpenCode sends a typed event with the session nested under properties.
// Parse accepts either and falls back to the environment, then to a
// generated id, so a hook always has a session to work with.
package hook

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/entrhq/persona/pkg/lifecycle"
	"github.com/entrhq/persona/pkg/persona"
)

// EnvSessionID is consulted when the payload carries no session id.
const EnvSessionID = "CLAUDE_SESSION_ID"

// ErrInvalidPayload is returned when stdin is not JSON.
var ErrInvalidPayload = errors.New("hook: payload is not valid JSON")

// maxPayload bounds how much of stdin is read.
const maxPayload = 1 << 20

var (
	sessionIDPaths = []string{"session_id", "sessionID", "properties.info.id", "properties.id", "properties.sessionId", "properties.sessionID", "id"}
	sourcePaths    = []string{"source", "properties.source"}
	reasonPaths    = []string{"reason", "properties.reason"}
	eventPaths     = []string{"hook_event_name", "type"}
	cwdPaths       = []string{"cwd", "properties.info.directory", "directory"}
	toolPaths      = []string{"tool_name", "tool"}
	skillPaths     = []string{"tool_input.skill", "tool_input.name", "args.name", "input.args.name"}
)

// IDOrigin records where the session id came from.
type IDOrigin string

const (
	OriginPayload   IDOrigin = "payload"
	OriginEnv       IDOrigin = "env"
	OriginGenerated IDOrigin = "generated"
)

// Event is a normalized host event.
type Event struct {
	SessionID string   `json:"sessionId"`
	Origin    IDOrigin `json:"origin"`

	// Source is the lifecycle tag of a start event. Unknown tags become
	// startup and are kept in RawSource.
	Source    lifecycle.Source `json:"source"`
	RawSource string           `json:"rawSource,omitempty"`

	Reason string `json:"reason,omitempty"`
	Name   string `json:"event,omitempty"`
	Cwd    string `json:"cwd,omitempty"`

	// Tool and Skill are set for tool-use events.
	Tool  string `json:"tool,omitempty"`
	Skill string `json:"skill,omitempty"`
}

// Getenv looks up environment variables. os.Getenv satisfies it.
type Getenv func(string) string

// Read parses a payload from r. Empty input is not an error.
func Read(r io.Reader, getenv Getenv) (Event, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayload))
	if err != nil {
		ev, _ := Parse(nil, getenv)
		return ev, fmt.Errorf("hook: read payload: %w", err)
	}
	return Parse(data, getenv)
}

// Parse normalizes a payload. Invalid JSON still yields a usable event
// from the fallbacks, together with an error the caller may log.
func Parse(data []byte, getenv Getenv) (Event, error) {
	var (
		ev     Event
		errOut error
	)
	payload := strings.TrimSpace(string(data))
	if payload != "" && !gjson.Valid(payload) {
		errOut = ErrInvalidPayload
		payload = ""
	}

	if payload != "" {
		ev.SessionID = first(payload, sessionIDPaths)
		ev.RawSource = first(payload, sourcePaths)
		ev.Reason = first(payload, reasonPaths)
		ev.Name = first(payload, eventPaths)
		ev.Cwd = first(payload, cwdPaths)
		ev.Tool = first(payload, toolPaths)
		ev.Skill = first(payload, skillPaths)
	}

	switch {
	case ev.SessionID != "":
		ev.Origin = OriginPayload
	case getenv != nil && getenv(EnvSessionID) != "":
		ev.SessionID = getenv(EnvSessionID)
		ev.Origin = OriginEnv
	default:
		ev.SessionID = "session-" + uuid.NewString()
		ev.Origin = OriginGenerated
	}

	src, err := lifecycle.ParseSource(ev.RawSource)
	if err != nil {
		src = lifecycle.SourceStartup
	} else {
		ev.RawSource = ""
	}
	ev.Source = src
	return ev, errOut
}

// PersonaSkill returns the archetype when the event is a persona skill
// being invoked by the host.
func (e Event) PersonaSkill() (string, bool) {
	if e.Tool != "" && !strings.EqualFold(e.Tool, "skill") {
		return "", false
	}
	return persona.ConventionCurrent.Archetype(e.Skill)
}

func first(payload string, paths []string) string {
	for _, p := range paths {
		r := gjson.Get(payload, p)
		if r.Exists() && r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
