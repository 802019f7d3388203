// Package session persists which personas each host session has received.
//
// All state lives in one JSON document keyed by session id. A reserved key
// holds the handoff record that carries loaded personas across an explicit
// session reset. The document is always read and written whole.
package session

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// HandoffKey is the reserved document key for the handoff record. It is
	// never a session id.
	HandoffKey = "session-clear-handoff"

	// Retention is how long a session survives without access.
	Retention = 7 * 24 * time.Hour

	// timeLayout matches the ISO-8601 form the host tooling writes
	// (millisecond precision, UTC).
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Session is the delivery history of one host session.
type Session struct {
	LoadedPersonas  []string `json:"loadedPersonas"`
	LastAccess      string   `json:"lastAccess,omitempty"`
	MissingAutoLoad []string `json:"missingAutoLoad,omitempty"`
}

// Has reports whether archetype has been delivered.
func (s *Session) Has(archetype string) bool {
	return indexOf(s.LoadedPersonas, archetype) >= 0
}

// Add records archetypes as loaded and returns those that were new.
func (s *Session) Add(archetypes ...string) []string {
	var added []string
	for _, a := range archetypes {
		if a == "" || s.Has(a) {
			continue
		}
		s.LoadedPersonas = append(s.LoadedPersonas, a)
		added = append(added, a)
	}
	return added
}

// Remove drops archetype and reports whether it was loaded.
func (s *Session) Remove(archetype string) bool {
	i := indexOf(s.LoadedPersonas, archetype)
	if i < 0 {
		return false
	}
	s.LoadedPersonas = append(s.LoadedPersonas[:i:i], s.LoadedPersonas[i+1:]...)
	return true
}

// LastAccessTime parses LastAccess. ok is false when it is unset or
// unparsable.
func (s *Session) LastAccessTime() (time.Time, bool) {
	if s.LastAccess == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.LastAccess)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Touch sets LastAccess to now.
func (s *Session) Touch(now time.Time) {
	s.LastAccess = FormatTime(now)
}

func (s *Session) clone() *Session {
	return &Session{
		LoadedPersonas:  append([]string(nil), s.LoadedPersonas...),
		LastAccess:      s.LastAccess,
		MissingAutoLoad: append([]string(nil), s.MissingAutoLoad...),
	}
}

// Handoff carries the personas of a reset session to the next one.
type Handoff struct {
	Personas  []string `json:"personas"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}

// Time returns the moment the handoff was written.
func (h *Handoff) Time() time.Time {
	return time.UnixMilli(h.Timestamp)
}

// FormatTime renders t the way LastAccess is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Table is the decoded state document.
type Table struct {
	sessions map[string]*Session
	handoff  *Handoff

	// dropped lists keys whose values could not be decoded.
	dropped []string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Session returns a copy of the session, or nil when there is none.
func (t *Table) Session(id string) *Session {
	s, ok := t.sessions[id]
	if !ok {
		return nil
	}
	return s.clone()
}

// Upsert applies fn to the session, creating it first if needed, and
// stamps LastAccess with now. It returns a copy of the result.
func (t *Table) Upsert(id string, now time.Time, fn func(*Session)) *Session {
	s, ok := t.sessions[id]
	if !ok {
		s = &Session{LoadedPersonas: []string{}}
		t.sessions[id] = s
	}
	if fn != nil {
		fn(s)
	}
	s.LoadedPersonas = dedupe(s.LoadedPersonas)
	s.Touch(now)
	return s.clone()
}

// Delete removes a session and reports whether it existed.
func (t *Table) Delete(id string) bool {
	if _, ok := t.sessions[id]; !ok {
		return false
	}
	delete(t.sessions, id)
	return true
}

// SessionIDs returns every session id in sorted order. The handoff record
// is not a session and never appears.
func (t *Table) SessionIDs() []string {
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}

// Empty reports whether the table holds neither sessions nor a handoff.
func (t *Table) Empty() bool {
	return len(t.sessions) == 0 && t.handoff == nil
}

// Dropped returns the keys skipped while decoding.
func (t *Table) Dropped() []string {
	return append([]string(nil), t.dropped...)
}

// Prune removes sessions whose LastAccess is older than retention and a
// handoff that was never consumed within the same window. Sessions without
// a usable LastAccess are kept. It returns the removed session ids.
func (t *Table) Prune(now time.Time, retention time.Duration) []string {
	cutoff := now.Add(-retention)
	var removed []string
	for _, id := range t.SessionIDs() {
		last, ok := t.sessions[id].LastAccessTime()
		if ok && last.Before(cutoff) {
			delete(t.sessions, id)
			removed = append(removed, id)
		}
	}
	if t.handoff != nil && t.handoff.Time().Before(cutoff) {
		t.handoff = nil
	}
	return removed
}

// RemoveArchetype drops archetype from every session. Sessions left empty
// are deleted. It returns the ids of affected sessions.
func (t *Table) RemoveArchetype(archetype string) []string {
	var affected []string
	for _, id := range t.SessionIDs() {
		s := t.sessions[id]
		if !s.Remove(archetype) {
			continue
		}
		affected = append(affected, id)
		if len(s.LoadedPersonas) == 0 {
			delete(t.sessions, id)
		}
	}
	return affected
}

// LoadedAnywhere reports whether any session has archetype loaded.
func (t *Table) LoadedAnywhere(archetype string) bool {
	for _, s := range t.sessions {
		if s.Has(archetype) {
			return true
		}
	}
	return false
}

// Handoff returns a copy of the pending handoff, or nil.
func (t *Table) Handoff() *Handoff {
	if t.handoff == nil {
		return nil
	}
	return &Handoff{Personas: append([]string(nil), t.handoff.Personas...), Timestamp: t.handoff.Timestamp}
}

// SetHandoff replaces the handoff record. An empty list clears it.
func (t *Table) SetHandoff(personas []string, now time.Time) {
	if len(personas) == 0 {
		t.handoff = nil
		return
	}
	t.handoff = &Handoff{Personas: dedupe(personas), Timestamp: now.UnixMilli()}
}

// TakeHandoff returns the pending handoff and removes it.
func (t *Table) TakeHandoff() *Handoff {
	h := t.Handoff()
	t.handoff = nil
	return h
}

// ClearHandoff removes the pending handoff and reports whether one existed.
func (t *Table) ClearHandoff() bool {
	had := t.handoff != nil
	t.handoff = nil
	return had
}

// MarshalJSON encodes the table as the flat state document.
func (t *Table) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(t.sessions)+1)
	for id, s := range t.sessions {
		doc[id] = s
	}
	if t.handoff != nil {
		doc[HandoffKey] = t.handoff
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the flat state document. Entries that do not
// decode are skipped and reported by Dropped.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Table{sessions: make(map[string]*Session, len(raw))}
	for key, value := range raw {
		if key == HandoffKey {
			var h Handoff
			if err := json.Unmarshal(value, &h); err != nil {
				t.dropped = append(t.dropped, key)
				continue
			}
			t.handoff = &h
			continue
		}
		var s Session
		if err := json.Unmarshal(value, &s); err != nil {
			t.dropped = append(t.dropped, key)
			continue
		}
		s.LoadedPersonas = dedupe(s.LoadedPersonas)
		if s.LoadedPersonas == nil {
			s.LoadedPersonas = []string{}
		}
		t.sessions[key] = &s
	}
	sort.Strings(t.dropped)
	return nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" && indexOf(out, v) < 0 {
			out = append(out, v)
		}
	}
	return out
}
