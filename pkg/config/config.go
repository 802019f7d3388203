// Package config resolves where the persona engine keeps its files and
// manages the per-project configuration document that lists personas to
// load automatically at session start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvHome overrides the user home directory used for user-scope
	// personas and the state document.
	EnvHome = "ASSUME_PERSONA_HOME"

	// EnvStateFile overrides the location of the session state document.
	EnvStateFile = "ASSUME_PERSONA_STATE"

	pluginName = "assume-persona"
)

// Paths holds every location the engine reads or writes.
type Paths struct {
	// Home is the root of the user scope (normally the user's home directory).
	Home string

	// ProjectRoot is the root of the local scope (normally the working directory).
	ProjectRoot string

	// StateFile is the session state document shared by all projects.
	StateFile string

	// LogDir receives persona.log.
	LogDir string
}

// ResolvePaths builds Paths for the given project root. An empty
// projectRoot means the current working directory. Environment overrides
// are applied after the defaults.
func ResolvePaths(projectRoot string) (Paths, error) {
	if projectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Paths{}, fmt.Errorf("config: get working directory: %w", err)
		}
		projectRoot = cwd
	}
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return Paths{}, fmt.Errorf("config: abs project root: %w", err)
	}

	home := os.Getenv(EnvHome)
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("config: get user home directory: %w", err)
		}
	}

	p := NewPaths(home, root)
	if state := os.Getenv(EnvStateFile); state != "" {
		p.StateFile = state
	}
	return p, nil
}

// NewPaths lays out the default locations under home and projectRoot.
func NewPaths(home, projectRoot string) Paths {
	data := DataDir(home)
	return Paths{
		Home:        home,
		ProjectRoot: projectRoot,
		StateFile:   filepath.Join(data, "state.json"),
		LogDir:      filepath.Join(data, "logs"),
	}
}

// DataDir is the plugin's private directory under a scope root.
func DataDir(root string) string {
	return filepath.Join(root, ".claude", "plugin-data", pluginName)
}

// ProjectConfigFile is the project-level configuration document.
func (p Paths) ProjectConfigFile() string {
	return filepath.Join(DataDir(p.ProjectRoot), "config.json")
}
