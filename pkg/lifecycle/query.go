package lifecycle

import (
	"context"
	"fmt"

	"github.com/entrhq/persona/pkg/persona"
	"github.com/entrhq/persona/pkg/session"
)

// Show returns a persona's content without loading it. Loaded tells
// whether the session already has it.
func (c *Controller) Show(ctx context.Context, sessionID, archetype string) (*ShowResult, error) {
	d, err := c.resolver.Resolve(ctx, archetype)
	if err != nil {
		return nil, err
	}
	content, err := c.resolver.Content(d)
	if err != nil {
		return nil, err
	}
	p, err := c.resolver.Summarize(d)
	if err != nil {
		return nil, err
	}

	res := &ShowResult{Persona: p, Content: content, Tokens: c.countTokens(content)}
	if sessionID != "" {
		t, err := c.store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: show %s: %w", archetype, err)
		}
		if s := t.Session(sessionID); s != nil {
			res.Loaded = s.Has(archetype)
		}
	}
	return res, nil
}

// List enumerates available personas. Loaded refers to sessionID, or to
// any session when sessionID is empty.
func (c *Controller) List(ctx context.Context, sessionID string, opts persona.ListOptions) (*ListResult, error) {
	personas, err := c.resolver.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	t, err := c.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list: %w", err)
	}
	auto := toSet(c.autoLoad())

	var s *session.Session
	if sessionID != "" {
		s = t.Session(sessionID)
	}
	loaded := func(a string) bool {
		if sessionID == "" {
			return t.LoadedAnywhere(a)
		}
		return s != nil && s.Has(a)
	}

	res := &ListResult{Personas: make([]ListItem, 0, len(personas))}
	for _, p := range personas {
		item := ListItem{Persona: p, Loaded: loaded(p.Archetype), AutoLoad: auto[p.Archetype]}
		res.Personas = append(res.Personas, item)

		res.Summary.Total++
		switch p.Scope {
		case persona.ScopeLocal:
			res.Summary.Local++
		case persona.ScopeUser:
			res.Summary.User++
		}
		if item.Loaded {
			res.Summary.Loaded++
		}
		if item.AutoLoad {
			res.Summary.AutoLoad++
		}
	}
	return res, nil
}

// Status reports the session's loaded personas and the auto-load
// configuration, including configured personas that could not be found.
func (c *Controller) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	t, err := c.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: status %s: %w", sessionID, err)
	}

	autoLoad := c.autoLoad()
	auto := toSet(autoLoad)
	res := &SessionStatus{
		SessionID:       sessionID,
		Loaded:          []LoadedPersona{},
		AutoLoad:        append([]string{}, autoLoad...),
		MissingAutoLoad: []string{},
		ConfigPath:      c.configPath(),
	}
	if s := t.Session(sessionID); s != nil {
		for _, a := range s.LoadedPersonas {
			res.Loaded = append(res.Loaded, LoadedPersona{Archetype: a, Auto: auto[a]})
		}
		res.MissingAutoLoad = append(res.MissingAutoLoad, s.MissingAutoLoad...)
	}
	return res, nil
}

// Exists resolves archetype and reports where it lives.
func (c *Controller) Exists(ctx context.Context, archetype string) (*persona.Descriptor, bool) {
	d, err := c.resolver.Resolve(ctx, archetype)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Delete removes a persona document from one scope and drops the
// archetype from every session history.
func (c *Controller) Delete(ctx context.Context, archetype string, scope persona.Scope) (*DeleteResult, error) {
	d, err := c.resolver.ResolveIn(ctx, scope, archetype)
	if err != nil {
		return nil, err
	}
	if err := c.resolver.Store().Remove(d.Dir); err != nil {
		return nil, err
	}

	res := &DeleteResult{Archetype: archetype, Scope: scope, Dir: d.Dir}
	err = c.store.Update(ctx, func(t *session.Table) error {
		res.Sessions = t.RemoveArchetype(archetype)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: delete %s: %w", archetype, err)
	}
	c.log.Infof("deleted %s from %s scope (%s), sessions updated: %v", archetype, scope, d.Dir, res.Sessions)
	return res, nil
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, a := range list {
		set[a] = true
	}
	return set
}
