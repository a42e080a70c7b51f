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

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/awslabs/argot-ifds/analysis/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	r := &report.Report{}
	r.Add(report.Finding{Kind: "taint/test", Statement: "sink(t0)", Path: "t0"})

	var text bytes.Buffer
	require.NoError(t, writeReport(&text, r, "text"))
	assert.Contains(t, text.String(), "sink(t0)")
	assert.Contains(t, text.String(), "1 finding(s)")

	var sarif bytes.Buffer
	require.NoError(t, writeReport(&sarif, r, "sarif"))
	var log struct {
		Version string
		Runs    []struct {
			Results []struct {
				RuleID string
			}
		}
	}
	require.NoError(t, json.Unmarshal(sarif.Bytes(), &log))
	assert.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	require.Len(t, log.Runs[0].Results, 1)
	assert.Equal(t, "taint/test", log.Runs[0].Results[0].RuleID)
}
