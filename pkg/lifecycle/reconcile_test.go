package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/persona/pkg/persona"
)

func resolveOnly(known ...string) ResolveFunc {
	set := toSet(known)
	return func(a string) (*persona.Descriptor, error) {
		if !set[a] {
			return nil, persona.ErrNotFound
		}
		return &persona.Descriptor{Archetype: a, Scope: persona.ScopeLocal}, nil
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		autoLoad    []string
		handoff     []string
		known       []string
		wantLoad    []string
		wantReasons map[string]Reason
		wantMissing []string
	}{
		{
			name:        "empty",
			wantReasons: map[string]Reason{},
		},
		{
			name:        "auto only",
			autoLoad:    []string{"a", "b"},
			known:       []string{"a", "b"},
			wantLoad:    []string{"a", "b"},
			wantReasons: map[string]Reason{"a": ReasonAuto, "b": ReasonAuto},
		},
		{
			name:        "overlap is labeled auto",
			autoLoad:    []string{"a", "b"},
			handoff:     []string{"b", "c"},
			known:       []string{"a", "b", "c"},
			wantLoad:    []string{"a", "b", "c"},
			wantReasons: map[string]Reason{"a": ReasonAuto, "b": ReasonAuto, "c": ReasonRestored},
		},
		{
			name:        "duplicates collapse",
			autoLoad:    []string{"a", "a", ""},
			handoff:     []string{"c", "c"},
			known:       []string{"a", "c"},
			wantLoad:    []string{"a", "c"},
			wantReasons: map[string]Reason{"a": ReasonAuto, "c": ReasonRestored},
		},
		{
			name:        "missing does not stop others",
			autoLoad:    []string{"ghost", "a"},
			handoff:     []string{"gone", "c"},
			known:       []string{"a", "c"},
			wantLoad:    []string{"a", "c"},
			wantReasons: map[string]Reason{"ghost": ReasonAuto, "a": ReasonAuto, "gone": ReasonRestored, "c": ReasonRestored},
			wantMissing: []string{"ghost", "gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(tt.autoLoad, tt.handoff, resolveOnly(tt.known...))
			assert.Equal(t, tt.wantLoad, plan.ToLoad)
			assert.Equal(t, tt.wantReasons, plan.Reasons)
			assert.Equal(t, tt.wantMissing, plan.Missing)
			for _, a := range plan.ToLoad {
				require.NotNil(t, plan.Resolved[a])
			}
		})
	}
}

func TestPlanMissingFor(t *testing.T) {
	plan := Reconcile([]string{"ghost"}, []string{"gone"}, resolveOnly())
	assert.Equal(t, []string{"ghost"}, plan.MissingFor(ReasonAuto))
	assert.Equal(t, []string{"gone"}, plan.MissingFor(ReasonRestored))
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{
		"":        SourceStartup,
		"startup": SourceStartup,
		"Resume":  SourceResume,
		" clear ": SourceClear,
		"compact": SourceCompact,
	} {
		got, err := ParseSource(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSource("reboot")
	assert.Error(t, err)
}

func TestArchetypeFromSkill(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"assume-persona--qa-engineer", "qa-engineer", true},
		{"qa-engineer", "qa-engineer", true},
		{"persona-x", "persona-x", true},
		{"assume-persona--Bad", "", false},
		{"Not Valid", "", false},
	}
	for _, tt := range tests {
		got, ok := ArchetypeFromSkill(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
