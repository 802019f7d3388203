package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/logging"
	"github.com/entrhq/persona/pkg/persona"
	"github.com/entrhq/persona/pkg/session"
)

// timeNow is the default clock, replaceable in tests.
var timeNow = time.Now

// ConfigSource provides the project's auto-load configuration.
// *config.ProjectStore satisfies it.
type ConfigSource interface {
	AutoLoad() ([]string, error)
	Path() string
}

// Controller runs lifecycle events and load requests against the session
// state store. It keeps no state of its own between calls.
type Controller struct {
	resolver  *persona.Resolver
	store     session.Store
	config    ConfigSource
	log       *logging.Logger
	tokens    audit.TokenCounter
	now       func() time.Time
	retention time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithTokenCounter enables token counts in results.
func WithTokenCounter(t audit.TokenCounter) Option {
	return func(c *Controller) { c.tokens = t }
}

// WithClock replaces the clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRetention replaces the session retention window.
func WithRetention(d time.Duration) Option {
	return func(c *Controller) { c.retention = d }
}

// New creates a controller. cfg may be nil when there is no project
// configuration.
func New(resolver *persona.Resolver, store session.Store, cfg ConfigSource, opts ...Option) *Controller {
	c := &Controller{
		resolver:  resolver,
		store:     store,
		config:    cfg,
		log:       logging.Discard(),
		now:       timeNow,
		retention: session.Retention,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// autoLoad reads the configured archetypes. Read errors are logged and
// treated as an empty configuration.
func (c *Controller) autoLoad() []string {
	if c.config == nil {
		return nil
	}
	list, err := c.config.AutoLoad()
	if err != nil {
		c.log.Warnf("ignoring project config %s: %v", c.config.Path(), err)
		return nil
	}
	return list
}

func (c *Controller) configPath() string {
	if c.config == nil {
		return ""
	}
	return c.config.Path()
}

func (c *Controller) resolveFunc(ctx context.Context) ResolveFunc {
	return func(archetype string) (*persona.Descriptor, error) {
		d, err := c.resolver.Resolve(ctx, archetype)
		if err != nil && !errors.Is(err, persona.ErrNotFound) {
			c.log.Warnf("resolving %s: %v", archetype, err)
		}
		return d, err
	}
}

func (c *Controller) countTokens(text string) int {
	if c.tokens == nil {
		return 0
	}
	return c.tokens.CountTokens(text)
}

func requireSession(id string) error {
	if id == "" {
		return ErrNoSession
	}
	return nil
}

// Start handles a session start event.
//
// Stale sessions are pruned first. A clear start consumes the handoff
// record and a startup start discards it; resume and compact leave it in
// place. A compact start only re-injects loaded content. Otherwise the
// auto-load configuration and handoff are reconciled and every resolvable
// archetype is recorded as loaded. On resume, archetypes already in the
// session history are skipped.
func (c *Controller) Start(ctx context.Context, sessionID string, source Source, opts StartOptions) (*StartResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	now := c.now()
	res := &StartResult{SessionID: sessionID, Source: source, Entries: []Entry{}}
	autoLoad := c.autoLoad()
	resolve := c.resolveFunc(ctx)

	if source == SourceCompact {
		err := c.store.Update(ctx, func(t *session.Table) error {
			res.Pruned = t.Prune(now, c.retention)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("lifecycle: prune: %w", err)
		}
		compact, err := c.Compact(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		res.Compact = compact
		return res, nil
	}

	err := c.store.Update(ctx, func(t *session.Table) error {
		res.Entries = res.Entries[:0]
		res.Missing = nil
		res.Pruned = t.Prune(now, c.retention)

		var handoff []string
		switch source {
		case SourceClear:
			if h := t.TakeHandoff(); h != nil {
				handoff = h.Personas
			}
		case SourceStartup:
			t.ClearHandoff()
		}

		existing := t.Session(sessionID)
		auto := autoLoad
		if source == SourceResume && existing != nil {
			auto = notLoaded(existing, autoLoad)
			handoff = notLoaded(existing, handoff)
		}

		plan := Reconcile(auto, handoff, resolve)
		var loaded []string
		for _, a := range plan.ToLoad {
			d := plan.Resolved[a]
			entry := Entry{Archetype: a, Reason: plan.Reasons[a], Scope: d.Scope, Path: d.Path}
			if entry.Reason == ReasonAuto || opts.RestoredContent {
				content, err := c.resolver.Content(d)
				if err != nil {
					c.log.Warnf("skipping %s: %v", a, err)
					plan.Missing = append(plan.Missing, a)
					continue
				}
				entry.Content = content
			}
			res.Entries = append(res.Entries, entry)
			loaded = append(loaded, a)
		}
		res.Missing = plan.Missing
		missingAuto := plan.MissingFor(ReasonAuto)

		if len(loaded) == 0 && len(missingAuto) == 0 {
			if existing != nil && len(existing.MissingAutoLoad) > 0 {
				t.Upsert(sessionID, now, func(s *session.Session) { s.MissingAutoLoad = nil })
			}
			return nil
		}
		t.Upsert(sessionID, now, func(s *session.Session) {
			s.Add(loaded...)
			s.MissingAutoLoad = missingAuto
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: start %s: %w", sessionID, err)
	}

	c.log.Infof("session %s started (%s): auto=%v restored=%v missing=%v pruned=%d",
		sessionID, source, res.Archetypes(ReasonAuto), res.Archetypes(ReasonRestored), res.Missing, len(res.Pruned))
	return res, nil
}

func notLoaded(s *session.Session, list []string) []string {
	var out []string
	for _, a := range list {
		if !s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// End handles a session end event. With reason clear the loaded personas
// are written to the handoff record for the next session. The session entry
// is removed in every case.
func (c *Controller) End(ctx context.Context, sessionID, reason string) (*EndResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	now := c.now()
	res := &EndResult{SessionID: sessionID, Reason: reason}

	err := c.store.Update(ctx, func(t *session.Table) error {
		res.Handoff = nil
		if s := t.Session(sessionID); s != nil && reason == EndReasonClear && len(s.LoadedPersonas) > 0 {
			t.SetHandoff(s.LoadedPersonas, now)
			res.Handoff = s.LoadedPersonas
		}
		res.Removed = t.Delete(sessionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: end %s: %w", sessionID, err)
	}
	c.log.Infof("session %s ended (%s): handoff=%v", sessionID, reason, res.Handoff)
	return res, nil
}

// Compact returns the full content of every persona loaded in the session
// so it can be preserved across a context compaction. State is not
// modified, so repeated calls return the same result.
func (c *Controller) Compact(ctx context.Context, sessionID string) (*CompactResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	t, err := c.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: compact %s: %w", sessionID, err)
	}

	res := &CompactResult{SessionID: sessionID, Personas: []Entry{}}
	s := t.Session(sessionID)
	if s == nil {
		return res, nil
	}
	for _, a := range s.LoadedPersonas {
		d, err := c.resolver.Resolve(ctx, a)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			res.Missing = append(res.Missing, a)
			continue
		}
		content, err := c.resolver.Content(d)
		if err != nil {
			c.log.Warnf("compact: reading %s: %v", a, err)
			res.Missing = append(res.Missing, a)
			continue
		}
		res.Personas = append(res.Personas, Entry{Archetype: a, Scope: d.Scope, Path: d.Path, Content: content})
		res.Tokens += c.countTokens(content)
	}
	return res, nil
}
