// Package driverconfig implements the ambient TOML configuration
// SPEC_FULL.md's AMBIENT STACK section describes, grounded on the
// teacher's internal/config.Load/LoadWithRoot two-tier merge (a global
// ~/.lci.kdl base overridden by a per-project file) — here a global
// ~/.b2go.toml base merged with a per-project .b2go.toml, read with
// github.com/pelletier/go-toml/v2 rather than the teacher's hand-rolled
// KDL walk, since a driver-wide settings file is exactly the flat,
// typed-struct shape go-toml's Unmarshal targets.
package driverconfig

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// fileName is the config file's name at both the home-directory and
// project-directory search locations.
const fileName = ".b2go.toml"

// Config is the driver-wide configuration cmd/b2go reads before applying
// command-line flags (spec.md §6/§7's jobs/keep-going/verbosity knobs),
// on top of whatever a buildfile's own config.* variables declare.
type Config struct {
	Jobs        int      `toml:"jobs"`
	ProcessJobs int      `toml:"process_jobs"`
	KeepGoing   bool     `toml:"keep_going"`
	Verbose     bool     `toml:"verbose"`
	CC          string   `toml:"cc"`
	CXX         string   `toml:"cxx"`
	Linker      string   `toml:"linker"`
	ImportPath  []string `toml:"import_path"`
}

// Load reads the global config from the user's home directory and the
// project config from dir, merging project over global the way the
// teacher's mergeConfigs does (project scalar fields win unless they are
// zero-valued, in which case base's Jobs/ProcessJobs/CC/CXX/Linker are
// kept; ImportPath is unioned since an import search path is additive,
// the same reasoning the teacher applies to its Exclude glob list).
func Load(dir string) (*Config, error) {
	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if c, err := readFile(filepath.Join(home, fileName)); err == nil && c != nil {
			base = c
		}
	}

	project, err := readFile(filepath.Join(dir, fileName))
	if err != nil {
		return nil, err
	}

	switch {
	case base != nil && project != nil:
		return merge(base, project), nil
	case project != nil:
		return project, nil
	case base != nil:
		return base, nil
	default:
		return &Config{}, nil
	}
}

// readFile returns (nil, nil) when path does not exist, distinguishing
// "no config here" from a genuine read/parse error.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// merge starts from a copy of project, unions base's ImportPath into it
// (deduplicating), and takes base's Jobs, ProcessJobs, CC, CXX and Linker
// wherever project leaves them zero or empty. The bools KeepGoing and
// Verbose always come from project.
func merge(base, project *Config) *Config {
	merged := *project

	seen := make(map[string]bool, len(project.ImportPath))
	for _, p := range project.ImportPath {
		seen[p] = true
	}
	merged.ImportPath = append([]string(nil), project.ImportPath...)
	for _, p := range base.ImportPath {
		if !seen[p] {
			seen[p] = true
			merged.ImportPath = append(merged.ImportPath, p)
		}
	}

	if project.Jobs == 0 {
		merged.Jobs = base.Jobs
	}
	if project.ProcessJobs == 0 {
		merged.ProcessJobs = base.ProcessJobs
	}
	if project.CC == "" {
		merged.CC = base.CC
	}
	if project.CXX == "" {
		merged.CXX = base.CXX
	}
	if project.Linker == "" {
		merged.Linker = base.Linker
	}
	return &merged
}
