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

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

const (
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"
	// DefaultMaxPaths is the default number of flows of a finding written as code flows
	DefaultMaxPaths = 3
)

// SarifOptions control the SARIF output of a report
type SarifOptions struct {
	// Tool is the name of the driver of the run
	Tool string
	// MaxPaths is the maximum number of code flows per result. Zero means DefaultMaxPaths.
	MaxPaths int
	// BaseDir, when set, makes the file names below it relative
	BaseDir string
	// Level is the level of the results, "warning" when empty
	Level string
}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID string `json:"id"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
	CodeFlows []sarifCodeFlow `json:"codeFlows,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
	Message          *sarifMessage          `json:"message,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

type sarifCodeFlow struct {
	ThreadFlows []sarifThreadFlow `json:"threadFlows"`
}

type sarifThreadFlow struct {
	Locations []sarifThreadFlowLocation `json:"locations"`
}

type sarifThreadFlowLocation struct {
	Location sarifLocation           `json:"location"`
	State    map[string]sarifMessage `json:"state,omitempty"`
}

// WriteSarif writes the report to w as a SARIF 2.1.0 log with one run. Every finding is a result whose rule is the
// kind of the finding, and whose code flows are the first flows of the finding.
func (r *Report) WriteSarif(w io.Writer, opts SarifOptions) error {
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = DefaultMaxPaths
	}
	if opts.Level == "" {
		opts.Level = "warning"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: opts.Tool}},
		Results: []sarifResult{},
	}
	var kinds []string
	for _, f := range r.Findings {
		if !slices.Contains(kinds, f.Kind) {
			kinds = append(kinds, f.Kind)
		}
		run.Results = append(run.Results, opts.result(f))
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{ID: kind})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}}); err != nil {
		return fmt.Errorf("could not write sarif report: %w", err)
	}
	return nil
}

func (opts SarifOptions) result(f Finding) sarifResult {
	text := f.Statement
	if f.Path != "" {
		text = fmt.Sprintf("%s reaches %s", f.Path, f.Statement)
	}
	res := sarifResult{
		RuleID:    f.Kind,
		Level:     opts.Level,
		Message:   sarifMessage{Text: text},
		Locations: []sarifLocation{opts.location(f.Location)},
	}
	for i, flow := range f.Flows {
		if i == opts.MaxPaths {
			break
		}
		thread := sarifThreadFlow{Locations: []sarifThreadFlowLocation{}}
		for _, step := range flow {
			loc := sarifThreadFlowLocation{Location: opts.location(step.Location)}
			loc.Location.Message = &sarifMessage{Text: step.Statement}
			if step.Fact != "" {
				loc.State = map[string]sarifMessage{"domainFact": {Text: step.Fact}}
			}
			thread.Locations = append(thread.Locations, loc)
		}
		res.CodeFlows = append(res.CodeFlows, sarifCodeFlow{ThreadFlows: []sarifThreadFlow{thread}})
	}
	return res
}

func (opts SarifOptions) location(l Location) sarifLocation {
	var res sarifLocation
	if l.File != "" {
		res.PhysicalLocation = &sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: opts.uri(l.File)}}
		if l.Line > 0 {
			res.PhysicalLocation.Region = &sarifRegion{StartLine: l.Line, StartColumn: l.Column}
		}
	}
	if l.Function != "" {
		res.LogicalLocations = []sarifLogicalLocation{{FullyQualifiedName: l.Function}}
	}
	return res
}

func (opts SarifOptions) uri(file string) string {
	if opts.BaseDir != "" {
		if rel, err := filepath.Rel(opts.BaseDir, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return filepath.ToSlash(file)
}
