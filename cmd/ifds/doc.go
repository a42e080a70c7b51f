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

/*
Ifds runs the IFDS taint analysis on the packages given as arguments and prints the flows it finds.

Usage:

	ifds [flags] package...
	ifds -show report-file

The flags are:

	-config path      a path to the configuration file containing the taint problems, in YAML or TOML

	-out dir          the directory where the compressed report is written, overrides reports-dir of the config

	-show file        prints the findings of a report written by a previous run, and exits

	-verbose=false    setting verbose mode, overrides config file options if set

	-build mode       the SSA builder mode
*/
package main
