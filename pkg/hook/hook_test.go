package hook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/persona/pkg/lifecycle"
)

func env(vars map[string]string) Getenv {
	return func(k string) string { return vars[k] }
}

func TestParseClaudeStart(t *testing.T) {
	ev, err := Parse([]byte(`{"session_id":"abc-123","source":"clear","hook_event_name":"SessionStart","cwd":"/work/app"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", ev.SessionID)
	assert.Equal(t, OriginPayload, ev.Origin)
	assert.Equal(t, lifecycle.SourceClear, ev.Source)
	assert.Empty(t, ev.RawSource)
	assert.Equal(t, "SessionStart", ev.Name)
	assert.Equal(t, "/work/app", ev.Cwd)
}

func TestParseClaudeEnd(t *testing.T) {
	ev, err := Parse([]byte(`{"session_id":"abc","reason":"clear","hook_event_name":"SessionEnd"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "clear", ev.Reason)
	assert.Equal(t, lifecycle.SourceStartup, ev.Source)
}

func TestParseOpenCode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"info id", `{"type":"session.created","properties":{"info":{"id":"ses_1"}}}`, "ses_1"},
		{"properties id", `{"type":"session.created","properties":{"id":"ses_2"}}`, "ses_2"},
		{"properties sessionId", `{"type":"session.created","properties":{"sessionId":"ses_3"}}`, "ses_3"},
		{"top-level id", `{"type":"session.created","id":"ses_4"}`, "ses_4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.payload), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.SessionID)
			assert.Equal(t, "session.created", ev.Name)
		})
	}
}

func TestParseFallbacks(t *testing.T) {
	ev, err := Parse(nil, env(map[string]string{EnvSessionID: "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", ev.SessionID)
	assert.Equal(t, OriginEnv, ev.Origin)

	ev, err = Parse([]byte(`{"source":"resume"}`), env(nil))
	require.NoError(t, err)
	assert.Equal(t, OriginGenerated, ev.Origin)
	assert.True(t, strings.HasPrefix(ev.SessionID, "session-"))
	assert.Equal(t, lifecycle.SourceResume, ev.Source)

	other, err := Parse(nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ev.SessionID, other.SessionID)
}

func TestParseNonStringID(t *testing.T) {
	ev, err := Parse([]byte(`{"session_id":42}`), env(map[string]string{EnvSessionID: "env-id"}))
	require.NoError(t, err)
	assert.Equal(t, "env-id", ev.SessionID)
}

func TestParseInvalidJSON(t *testing.T) {
	ev, err := Parse([]byte(`{not json`), env(map[string]string{EnvSessionID: "env-id"}))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, "env-id", ev.SessionID)
	assert.Equal(t, lifecycle.SourceStartup, ev.Source)
}

func TestParseUnknownSource(t *testing.T) {
	ev, err := Parse([]byte(`{"session_id":"s","source":"reboot"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.SourceStartup, ev.Source)
	assert.Equal(t, "reboot", ev.RawSource)
}

func TestRead(t *testing.T) {
	ev, err := Read(strings.NewReader(`  {"session_id":"s1","source":"compact"}  `), nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, lifecycle.SourceCompact, ev.Source)

	ev, err = Read(strings.NewReader(""), env(map[string]string{EnvSessionID: "e"}))
	require.NoError(t, err)
	assert.Equal(t, "e", ev.SessionID)
}

func TestPersonaSkill(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{"claude skill", `{"session_id":"s","tool_name":"Skill","tool_input":{"skill":"assume-persona--qa-engineer"}}`, "qa-engineer", true},
		{"opencode skill", `{"tool":"skill","args":{"name":"assume-persona--go-dev"}}`, "go-dev", true},
		{"other skill", `{"tool_name":"Skill","tool_input":{"skill":"pdf"}}`, "", false},
		{"other tool", `{"tool_name":"Bash","tool_input":{"name":"assume-persona--x"}}`, "", false},
		{"no tool", `{"session_id":"s"}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.payload), nil)
			require.NoError(t, err)
			got, ok := ev.PersonaSkill()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
