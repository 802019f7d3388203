package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/config"
	"github.com/entrhq/persona/pkg/hook"
	"github.com/entrhq/persona/pkg/lifecycle"
	"github.com/entrhq/persona/pkg/logging"
	"github.com/entrhq/persona/pkg/persona"
	"github.com/entrhq/persona/pkg/session"
	"github.com/entrhq/persona/pkg/tokenizer"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// environment is everything the commands take from the process.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// newLogger opens the log for an invocation.
	newLogger func(paths config.Paths, debug bool) *logging.Logger

	// tokens returns a token counter. Loading the encoding can hit the
	// network, so it only happens with --tokens.
	tokens func() audit.TokenCounter
}

func defaultEnvironment() *environment {
	return &environment{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		getenv:    os.Getenv,
		newLogger: openLogger,
		tokens:    loadTokenizer,
	}
}

func openLogger(paths config.Paths, debug bool) *logging.Logger {
	logging.SetLogDirectory(paths.LogDir)
	if debug {
		logging.SetMirror(os.Stderr)
	}
	// A failed open returns a stderr logger, which is still usable.
	l, _ := logging.NewLogger("cli")
	return l
}

func loadTokenizer() audit.TokenCounter {
	t, err := tokenizer.New()
	if err != nil {
		// A nil *Tokenizer estimates.
		return (*tokenizer.Tokenizer)(nil)
	}
	return t
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	env *environment

	project string
	state   string
	home    string
	format  string
	session string
	noLock  bool
	debug   bool
	tokens  bool
}

// app is one invocation's wiring.
type app struct {
	opts     *rootOptions
	paths    config.Paths
	log      *logging.Logger
	config   *config.ProjectStore
	store    *session.FileStore
	resolver *persona.Resolver
	ctrl     *lifecycle.Controller

	// tokens is nil unless --tokens was given.
	tokens audit.TokenCounter
}

func newRootCmd(env *environment) *cobra.Command {
	opts := &rootOptions{env: env}

	cmd := &cobra.Command{
		Use:           "persona",
		Short:         "Session-aware expert persona loading",
		Long:          "persona resolves persona documents across project and user scopes and makes sure each one is injected at most once per host session.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatText, formatJSON:
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
		},
	}
	cmd.SetIn(env.stdin)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.project, "project", "", "Project root for local personas and auto-load config (default: current directory)")
	flags.StringVar(&opts.state, "state", "", "Session state document (or set "+config.EnvStateFile+")")
	flags.StringVar(&opts.home, "home", "", "Root of the user scope (or set "+config.EnvHome+")")
	flags.StringVar(&opts.format, "format", formatText, "Output format: text or json")
	flags.StringVar(&opts.session, "session", "", "Host session id (default: $"+hook.EnvSessionID+")")
	flags.BoolVar(&opts.noLock, "no-lock", false, "Do not lock the state document (last writer wins)")
	flags.BoolVar(&opts.debug, "debug", false, "Mirror log entries to stderr")
	flags.BoolVar(&opts.tokens, "tokens", false, "Report token counts (loads a BPE encoding)")

	cmd.AddCommand(
		newHookCmd(opts),
		newLoadCmd(opts),
		newShowCmd(opts),
		newListCmd(opts),
		newStatusCmd(opts),
		newClearCmd(opts),
		newExistsCmd(opts),
		newCompactCmd(opts),
		newDeleteCmd(opts),
		newAuditCmd(opts),
		newValidateCmd(opts),
		newAutoloadCmd(opts),
	)
	return cmd
}

// resolvePaths applies flags over the environment defaults. projectRoot,
// when set, replaces --project (hooks pass the host's cwd).
func (o *rootOptions) resolvePaths(projectRoot string) (config.Paths, error) {
	if o.project != "" || projectRoot == "" {
		projectRoot = o.project
	}
	paths, err := config.ResolvePaths(projectRoot)
	if err != nil {
		return config.Paths{}, err
	}
	if o.home != "" {
		paths = config.NewPaths(o.home, paths.ProjectRoot)
		if state := o.env.getenv(config.EnvStateFile); state != "" {
			paths.StateFile = state
		}
	}
	if o.state != "" {
		paths.StateFile = o.state
	}
	return paths, nil
}

// open wires the stores and controller for one invocation.
func (o *rootOptions) open(projectRoot string) (*app, error) {
	paths, err := o.resolvePaths(projectRoot)
	if err != nil {
		return nil, err
	}
	log := o.env.newLogger(paths, o.debug)

	var storeOpts []session.FileStoreOption
	storeOpts = append(storeOpts, session.WithLogger(log.With("session")))
	if o.noLock {
		storeOpts = append(storeOpts, session.WithoutLock())
	}

	a := &app{
		opts:   o,
		paths:  paths,
		log:    log,
		config: config.NewProjectStore(paths.ProjectConfigFile()),
		store:  session.NewFileStore(paths.StateFile, storeOpts...),
	}
	resolver := persona.NewResolver(
		persona.NewStore(paths.ProjectRoot, paths.Home),
		persona.WithLogger(log.With("resolver")),
	)
	a.resolver = resolver

	ctrlOpts := []lifecycle.Option{lifecycle.WithLogger(log.With("lifecycle"))}
	if o.tokens {
		a.tokens = o.env.tokens()
		ctrlOpts = append(ctrlOpts, lifecycle.WithTokenCounter(a.tokens))
	}
	a.ctrl = lifecycle.New(resolver, a.store, a.config, ctrlOpts...)
	log.Debugf("project=%s home=%s state=%s", paths.ProjectRoot, paths.Home, paths.StateFile)
	return a, nil
}

func (a *app) close() {
	a.log.Close()
}

// sessionID returns --session, falling back to the host environment.
func (o *rootOptions) sessionID() string {
	if o.session != "" {
		return o.session
	}
	return o.env.getenv(hook.EnvSessionID)
}

func (o *rootOptions) requireSession() (string, error) {
	id := o.sessionID()
	if id == "" {
		return "", fmt.Errorf("no session id: pass --session or set %s", hook.EnvSessionID)
	}
	return id, nil
}

// emit writes v as JSON, or calls text for the text format.
func (o *rootOptions) emit(cmd *cobra.Command, v interface{}, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if o.format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func writeString(w io.Writer, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}
