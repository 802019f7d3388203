package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/persona"
	"github.com/entrhq/persona/pkg/session"
)

// Load delivers a persona into a session unless the session already has
// it. It is the single dedup checkpoint: every other load path goes through
// the same session history.
func (c *Controller) Load(ctx context.Context, sessionID, archetype string, opts LoadOptions) (*LoadResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	now := c.now()
	res := &LoadResult{Archetype: archetype}

	err := c.store.Update(ctx, func(t *session.Table) error {
		if s := t.Session(sessionID); s != nil && s.Has(archetype) {
			res.Status = StatusAlreadyLoaded
			return nil
		}

		d, err := c.resolver.Resolve(ctx, archetype)
		if errors.Is(err, persona.ErrNotFound) {
			res.Status = StatusNotFound
			return nil
		}
		if err != nil {
			return err
		}
		content, err := c.resolver.Content(d)
		if err != nil {
			return err
		}

		res.Status = StatusLoaded
		res.Descriptor = d
		res.Scope = d.Scope
		res.Content = content
		t.Upsert(sessionID, now, func(s *session.Session) { s.Add(archetype) })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load %s: %w", archetype, err)
	}

	if res.Status == StatusLoaded {
		res.Tokens = c.countTokens(res.Content)
		if opts.Validate {
			v := audit.Validate(res.Content)
			res.Validation = &v
		}
	}
	c.log.Infof("load %s in %s: %s", archetype, sessionID, res.Status)
	return res, nil
}

// LoadMany loads each archetype independently. A failure for one archetype
// is recorded in its result and does not stop the rest. Only a canceled
// context aborts the batch.
func (c *Controller) LoadMany(ctx context.Context, sessionID string, archetypes []string, opts LoadOptions) ([]*LoadResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	results := make([]*LoadResult, 0, len(archetypes))
	for _, a := range archetypes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := c.Load(ctx, sessionID, a, opts)
		if err != nil {
			c.log.Errorf("load %s failed: %v", a, err)
			res = &LoadResult{Archetype: a, Status: StatusFailed, Err: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}

// MarkLoaded records personas the host delivered by other means, such as a
// skill the host invoked on its own. Skill directory names are accepted in
// place of archetypes. It returns the archetypes that were newly recorded.
func (c *Controller) MarkLoaded(ctx context.Context, sessionID string, names ...string) ([]string, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	var archetypes []string
	for _, n := range names {
		if a, ok := ArchetypeFromSkill(n); ok {
			archetypes = append(archetypes, a)
		}
	}
	if len(archetypes) == 0 {
		return nil, nil
	}

	now := c.now()
	var added []string
	err := c.store.Update(ctx, func(t *session.Table) error {
		added = nil
		if s := t.Session(sessionID); s != nil && len(notLoaded(s, archetypes)) == 0 {
			return nil
		}
		t.Upsert(sessionID, now, func(s *session.Session) { added = s.Add(archetypes...) })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: mark loaded: %w", err)
	}
	return added, nil
}

// ArchetypeFromSkill extracts an archetype from a persona skill name, or
// accepts a bare archetype. Legacy names are not stripped because a bare
// archetype may itself start with the legacy prefix.
func ArchetypeFromSkill(name string) (string, bool) {
	if a, ok := persona.ConventionCurrent.Archetype(name); ok {
		return a, true
	}
	if persona.ValidArchetype(name) {
		return name, true
	}
	return "", false
}

// Clear removes one archetype, or all when archetype is empty, from the
// session history so it can be loaded again. Persona documents are not
// touched. Removing the last archetype deletes the session entry.
func (c *Controller) Clear(ctx context.Context, sessionID, archetype string) (*ClearResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	now := c.now()
	res := &ClearResult{}

	err := c.store.Update(ctx, func(t *session.Table) error {
		*res = ClearResult{Cleared: []string{}, Remaining: []string{}}
		s := t.Session(sessionID)
		if s == nil || len(s.LoadedPersonas) == 0 {
			return nil
		}

		if archetype == "" {
			res.All = true
			res.Cleared = s.LoadedPersonas
			t.Delete(sessionID)
			return nil
		}

		if !s.Has(archetype) {
			res.Remaining = s.LoadedPersonas
			return nil
		}

		res.Cleared = []string{archetype}
		updated := t.Upsert(sessionID, now, func(s *session.Session) { s.Remove(archetype) })
		if len(updated.LoadedPersonas) == 0 {
			t.Delete(sessionID)
		}
		res.Remaining = append([]string{}, updated.LoadedPersonas...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: clear %s: %w", sessionID, err)
	}
	c.log.Infof("clear %q in %s: cleared=%v remaining=%v", archetype, sessionID, res.Cleared, res.Remaining)
	return res, nil
}
