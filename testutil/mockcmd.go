// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2026 The openzfsboot authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package testutil

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"
)

// MockCmd replaces a named external command with a script for the
// duration of a test, and records every invocation it receives.
type MockCmd struct {
	path           string
	logPath        string
	restorePathEnv func()
}

// MockCommand installs cmdName as a shell script on PATH (or writes it
// directly to cmdName if it's already an absolute path) that runs script
// and appends its own argv to a log file the test can inspect via Calls().
func MockCommand(c *C, cmdName, script string) *MockCmd {
	var path string
	var restore func()
	if filepath.IsAbs(cmdName) {
		path = cmdName
		c.Assert(os.MkdirAll(filepath.Dir(path), 0755), IsNil)
		restore = func() {}
	} else {
		bindir := c.MkDir()
		path = filepath.Join(bindir, cmdName)
		oldPath := os.Getenv("PATH")
		c.Assert(os.Setenv("PATH", bindir+":"+oldPath), IsNil)
		restore = func() { os.Setenv("PATH", oldPath) }
	}

	logPath := path + ".calls.log"
	contents := fmt.Sprintf("#!/bin/sh\necho \"$0 $@\" >> %q\n%s\n", logPath, script)
	c.Assert(ioutil.WriteFile(path, []byte(contents), 0755), IsNil)

	return &MockCmd{path: path, logPath: logPath, restorePathEnv: restore}
}

// Restore removes the mock's effect on PATH (a no-op for absolute-path
// mocks, which overwrite a fixed location the caller created themselves).
func (m *MockCmd) Restore() {
	m.restorePathEnv()
}

// Calls returns the argv of every invocation recorded so far, oldest first.
func (m *MockCmd) Calls() [][]string {
	data, err := ioutil.ReadFile(m.logPath)
	if err != nil {
		return nil
	}
	var calls [][]string
	for _, line := range splitLines(string(data)) {
		if line == "" {
			continue
		}
		fields, err := shellFields(line)
		if err != nil {
			continue
		}
		calls = append(calls, fields)
	}
	return calls
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func shellFields(line string) ([]string, error) {
	var fields []string
	start := -1
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields, nil
}

// String renders the call log as JSON, for tests that want to Commentf
// it when debugging failures.
func (m *MockCmd) String() string {
	b, _ := json.Marshal(m.Calls())
	return string(b)
}
