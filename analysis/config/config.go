// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxPathLength is the number of field selectors kept in access paths when the config does not set it
	DefaultMaxPathLength = 5

	// CallgraphStatic selects the static call graph: only statically dispatched calls have callees
	CallgraphStatic = "static"
	// CallgraphCha selects the class hierarchy analysis call graph
	CallgraphCha = "cha"
	// CallgraphVta selects the variable type analysis call graph, seeded with the class hierarchy one
	CallgraphVta = "vta"
)

// Config contains the options of the analyses and the taint problems to solve.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options" toml:"options"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// TaintTrackingProblems lists the taint tracking specifications
	TaintTrackingProblems []TaintSpec `yaml:"taint-tracking-problems" toml:"taint-tracking-problems"`

	// EntryPoints lists additional functions from which the analyses start, besides main functions
	EntryPoints []CodeIdentifier `yaml:"entrypoints" toml:"entrypoints"`
}

// TaintSpec contains code identifiers that identify a specific taint tracking problem
type TaintSpec struct {
	// Name is used in reports to distinguish problems
	Name string `yaml:"name" toml:"name"`

	// Sanitizers is the list of sanitizers for the taint analysis
	Sanitizers []CodeIdentifier `yaml:"sanitizers" toml:"sanitizers"`

	// Sinks is the list of sinks for the taint analysis
	Sinks []CodeIdentifier `yaml:"sinks" toml:"sinks"`

	// Sources is the list of sources for the taint analysis
	Sources []CodeIdentifier `yaml:"sources" toml:"sources"`
}

// Options are the global options of the analyses
type Options struct {
	// ReportsDir is the directory where the reports will be stored. If empty, reports are not written to disk.
	ReportsDir string `yaml:"reports-dir" toml:"reports-dir"`

	// PkgFilter restricts the functions the SSA analyses enter to the ones whose package matches the filter
	PkgFilter string `yaml:"pkg-filter" toml:"pkg-filter"`

	// MaxAlarms sets a limit for the number of alarms reported by an analysis.  If MaxAlarms > 0, then at most
	// MaxAlarms will be reported. Otherwise, if MaxAlarms <= 0, it is ignored.
	MaxAlarms int `yaml:"max-alarms" toml:"max-alarms"`

	// MaxPathLength is the maximum number of field selectors of the access paths in the dataflow facts.
	// Values <= 0 are replaced by DefaultMaxPathLength.
	MaxPathLength int `yaml:"max-path-length" toml:"max-path-length"`

	// Bidirectional makes the heap-aware analyses run a backward solver next to the forward one, to discover the
	// aliases of heap facts
	Bidirectional bool `yaml:"bidirectional" toml:"bidirectional"`

	// CallgraphAlgo is one of "static", "cha" or "vta" (the default)
	CallgraphAlgo string `yaml:"callgraph-algo" toml:"callgraph-algo"`

	// UseDevirtualizer refines the callees of dynamic calls with a variable type analysis, on top of the call graph
	UseDevirtualizer bool `yaml:"use-devirtualizer" toml:"use-devirtualizer"`

	// Exclude lists files and directories, relative to the config file, whose functions the SSA analyses do not
	// enter. Paths ending in .go are files.
	Exclude []string `yaml:"exclude" toml:"exclude"`

	// NumRoutines is the number of taint problems solved in parallel. Values <= 0 mean one.
	NumRoutines int `yaml:"num-routines" toml:"num-routines"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level" toml:"log-level"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:            "",
		TaintTrackingProblems: nil,
		EntryPoints:           nil,
		Options: Options{
			ReportsDir:       "",
			PkgFilter:        "",
			MaxAlarms:        0,
			MaxPathLength:    DefaultMaxPathLength,
			Bidirectional:    false,
			CallgraphAlgo:    CallgraphVta,
			UseDevirtualizer: false,
			Exclude:          nil,
			NumRoutines:      1,
			LogLevel:         int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file. Files with the .toml extension are read as TOML, all others as YAML.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes parses the configuration in b. The filename determines the format, and the directory relative paths are
// resolved against.
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return nil, fmt.Errorf("could not unmarshal config file %s as toml: %w", filename, err)
		}
	} else if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s as yaml: %w", filename, err)
	}

	cfg.sourceFile = filename

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.MaxPathLength <= 0 {
		cfg.MaxPathLength = DefaultMaxPathLength
	}

	if cfg.CallgraphAlgo == "" {
		cfg.CallgraphAlgo = CallgraphVta
	}

	if cfg.NumRoutines <= 0 {
		cfg.NumRoutines = 1
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	for i := range cfg.TaintTrackingProblems {
		ts := &cfg.TaintTrackingProblems[i]
		compileAll(ts.Sanitizers)
		compileAll(ts.Sinks)
		compileAll(ts.Sources)
		if ts.Name == "" {
			ts.Name = fmt.Sprintf("taint-%d", i)
		}
	}
	compileAll(cfg.EntryPoints)

	if cfg.ReportsDir != "" {
		if err := os.MkdirAll(cfg.RelPath(cfg.ReportsDir), 0750); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", cfg.ReportsDir, err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CallgraphAlgo {
	case "", CallgraphStatic, CallgraphCha, CallgraphVta:
	default:
		return fmt.Errorf("unknown callgraph-algo %q, expected one of %s, %s or %s", c.CallgraphAlgo,
			CallgraphStatic, CallgraphCha, CallgraphVta)
	}
	if c.LogLevel < 0 || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level %d out of range [0, %d]", c.LogLevel, TraceLevel)
	}
	for i, ts := range c.TaintTrackingProblems {
		if len(ts.Sinks) == 0 || len(ts.Sources) == 0 {
			return fmt.Errorf("taint problem %d must have at least one source and one sink", i)
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	if path.IsAbs(filename) {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	}
	return true
}

// IsEntryPoint returns true if the code identifier matches an entrypoint of the config
func (c Config) IsEntryPoint(cid CodeIdentifier) bool {
	return ExistsCid(c.EntryPoints, cid.equalOnNonEmptyFields)
}

// IsSomeSource returns true if the code identifier matches any source in the config
func (c Config) IsSomeSource(cid CodeIdentifier) bool {
	for _, x := range c.TaintTrackingProblems {
		if x.IsSource(cid) {
			return true
		}
	}
	return false
}

// IsSource returns true if the code identifier matches a source specification in the config file
func (ts TaintSpec) IsSource(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sources, cid.equalOnNonEmptyFields)
}

// IsSink returns true if the code identifier matches a sink specification in the config file
func (ts TaintSpec) IsSink(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sinks, cid.equalOnNonEmptyFields)
}

// IsSanitizer returns true if the code identifier matches a sanitizer specification in the config file
func (ts TaintSpec) IsSanitizer(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sanitizers, cid.equalOnNonEmptyFields)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxAlarms returns true if n alarms are more than the configuration allows
func (c Config) ExceedsMaxAlarms(n int) bool {
	return c.MaxAlarms > 0 && n > c.MaxAlarms
}
