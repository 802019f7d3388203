package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = 24 * time.Hour

func TestUpsertDeduplicates(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	table := NewTable()

	table.Upsert("s1", now, func(s *Session) { s.Add("qa", "go-dev", "qa") })
	s := table.Upsert("s1", now, func(s *Session) {
		s.LoadedPersonas = append(s.LoadedPersonas, "go-dev", "architect")
	})

	assert.Equal(t, []string{"qa", "go-dev", "architect"}, s.LoadedPersonas)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", s.LastAccess)
}

func TestSessionReturnsCopy(t *testing.T) {
	table := NewTable()
	table.Upsert("s1", time.Now(), func(s *Session) { s.Add("qa") })

	s := table.Session("s1")
	s.Add("other")

	assert.Equal(t, []string{"qa"}, table.Session("s1").LoadedPersonas)
	assert.Nil(t, table.Session("missing"))
}

func TestSessionRemove(t *testing.T) {
	s := &Session{LoadedPersonas: []string{"a", "b", "c"}}
	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, s.LoadedPersonas)
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	table := NewTable()
	table.Upsert("stale", now.Add(-8*day), func(s *Session) { s.Add("qa") })
	table.Upsert("recent", now.Add(-6*day), func(s *Session) { s.Add("qa") })
	table.sessions["no-access"] = &Session{LoadedPersonas: []string{"qa"}}
	table.sessions["bad-access"] = &Session{LoadedPersonas: []string{"qa"}, LastAccess: "yesterday"}
	table.SetHandoff([]string{"qa"}, now.Add(-day))

	removed := table.Prune(now, Retention)

	assert.Equal(t, []string{"stale"}, removed)
	assert.Nil(t, table.Session("stale"))
	assert.NotNil(t, table.Session("recent"))
	assert.NotNil(t, table.Session("no-access"))
	assert.NotNil(t, table.Session("bad-access"))
	assert.NotNil(t, table.Handoff(), "handoff is not a session")
}

func TestPruneDropsOrphanedHandoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	table := NewTable()
	table.SetHandoff([]string{"qa"}, now.Add(-8*day))

	assert.Empty(t, table.Prune(now, Retention))
	assert.Nil(t, table.Handoff())
	assert.True(t, table.Empty())
}

func TestHandoffLifecycle(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	table := NewTable()

	assert.Nil(t, table.TakeHandoff())

	table.SetHandoff([]string{"qa", "qa", "go-dev"}, now)
	h := table.TakeHandoff()
	require.NotNil(t, h)
	assert.Equal(t, []string{"qa", "go-dev"}, h.Personas)
	assert.Equal(t, now.UnixMilli(), h.Timestamp)
	assert.Nil(t, table.TakeHandoff(), "handoff is read once")

	table.SetHandoff([]string{"qa"}, now)
	assert.True(t, table.ClearHandoff())
	assert.False(t, table.ClearHandoff())

	table.SetHandoff(nil, now)
	assert.Nil(t, table.Handoff())
}

func TestSessionIDsExcludeHandoff(t *testing.T) {
	now := time.Now()
	table := NewTable()
	table.Upsert("b", now, nil)
	table.Upsert("a", now, nil)
	table.SetHandoff([]string{"qa"}, now)

	assert.Equal(t, []string{"a", "b"}, table.SessionIDs())
	assert.Equal(t, 2, table.Len())
}

func TestRemoveArchetype(t *testing.T) {
	now := time.Now()
	table := NewTable()
	table.Upsert("s1", now, func(s *Session) { s.Add("qa") })
	table.Upsert("s2", now, func(s *Session) { s.Add("qa", "go-dev") })
	table.Upsert("s3", now, func(s *Session) { s.Add("go-dev") })

	assert.True(t, table.LoadedAnywhere("qa"))
	assert.Equal(t, []string{"s1", "s2"}, table.RemoveArchetype("qa"))
	assert.False(t, table.LoadedAnywhere("qa"))
	assert.Nil(t, table.Session("s1"))
	assert.Equal(t, []string{"go-dev"}, table.Session("s2").LoadedPersonas)
}

func TestTableJSONFormat(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	table := NewTable()
	table.Upsert("s1", now, func(s *Session) {
		s.Add("qa")
		s.MissingAutoLoad = []string{"ghost"}
	})
	table.SetHandoff([]string{"go-dev"}, now)

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"s1": {"loadedPersonas": ["qa"], "lastAccess": "2025-03-10T08:30:00.000Z", "missingAutoLoad": ["ghost"]},
		"session-clear-handoff": {"personas": ["go-dev"], "timestamp": 1741595400000}
	}`, string(data))

	decoded := NewTable()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, table.Session("s1"), decoded.Session("s1"))
	assert.Equal(t, table.Handoff(), decoded.Handoff())
}

func TestUnmarshalSkipsBadEntries(t *testing.T) {
	raw := `{
		"good": {"loadedPersonas": ["qa", "qa"]},
		"bad": {"loadedPersonas": "qa"},
		"session-clear-handoff": "nope"
	}`

	table := NewTable()
	require.NoError(t, json.Unmarshal([]byte(raw), table))
	assert.Equal(t, []string{"good"}, table.SessionIDs())
	assert.Equal(t, []string{"qa"}, table.Session("good").LoadedPersonas)
	assert.Nil(t, table.Handoff())
	assert.Equal(t, []string{"bad", HandoffKey}, table.Dropped())
}
