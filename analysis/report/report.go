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

// Package report contains the findings of the analyses, and the functions to print them and to store them on disk.
package report

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/argot-ifds/internal/formatutil"
	"github.com/klauspost/compress/s2"
)

// A Finding is an issue reported by an analysis at some statement.
type Finding struct {
	// Kind is the name of the analysis or of the problem that reported the finding
	Kind string
	// Position is the position of the statement in the source, when it is known
	Position string
	// Statement is the statement where the issue happens
	Statement string
	// Path is the access path of the value involved in the issue
	Path string
	// Trace is a possible stack trace leading to the statement, outermost call first
	Trace []string
	// Location is the location of the statement
	Location Location
	// Flows are possible traces leading to the statement, each step with the fact holding at its statement
	Flows [][]Step
}

// A Location is the position of a statement in a source file, and the function it belongs to. The position is
// missing for programs without sources.
type Location struct {
	File     string
	Line     int
	Column   int
	Function string
}

// A Step is a statement of a trace
type Step struct {
	Location  Location
	Statement string
	// Fact is the fact holding at the statement, if any
	Fact string
}

// A Report is a list of findings
type Report struct {
	Findings []Finding
}

// Add adds f to the report
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Len returns the number of findings in the report
func (r *Report) Len() int {
	return len(r.Findings)
}

// Merge adds the findings of other to r
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.Findings = append(r.Findings, other.Findings...)
	}
}

var labels = []string{"statement", "position", "path", "trace"}

// Print writes a human-readable description of the findings to w.
func (r *Report) Print(w io.Writer) error {
	width := formatutil.MaxWidth(labels) + 1
	line := func(label string, value string) string {
		return fmt.Sprintf("\t%s %s\n", formatutil.Faint(formatutil.PadRight(label+":", width)), value)
	}
	var b strings.Builder
	for i, f := range r.Findings {
		fmt.Fprintf(&b, "%s %s\n", formatutil.Red(fmt.Sprintf("[%s]", f.Kind)), formatutil.Bold(fmt.Sprintf("#%d", i+1)))
		b.WriteString(line("statement", formatutil.Sanitize(f.Statement)))
		if f.Position != "" {
			b.WriteString(line("position", f.Position))
		}
		if f.Path != "" {
			b.WriteString(line("path", formatutil.Yellow(f.Path)))
		}
		for j, t := range f.Trace {
			label := ""
			if j == 0 {
				label = "trace"
			}
			b.WriteString(line(label, formatutil.Sanitize(t)))
		}
	}
	fmt.Fprintf(&b, "%d finding(s)\n", len(r.Findings))
	_, err := io.WriteString(w, b.String())
	return err
}

// Encode writes the report to w, gob-encoded in an s2 stream.
func (r *Report) Encode(w io.Writer) (err error) {
	writer := s2.NewWriter(w)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if err := gob.NewEncoder(writer).Encode(r); err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}
	return nil
}

// Decode reads a report written by Encode
func Decode(rd io.Reader) (*Report, error) {
	r := &Report{}
	if err := gob.NewDecoder(s2.NewReader(rd)).Decode(r); err != nil {
		return nil, fmt.Errorf("could not decode report: %w", err)
	}
	return r, nil
}

// WriteFile writes the encoded report in a new file of dir and returns the name of the file.
func (r *Report) WriteFile(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "findings-*.s2")
	if err != nil {
		return "", fmt.Errorf("could not create report file: %w", err)
	}
	defer f.Close()
	if err := r.Encode(f); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// ReadFile reads a report written by WriteFile
func ReadFile(filename string) (*Report, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
