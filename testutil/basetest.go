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

// Package testutil collects the small pieces of test scaffolding every
// suite in this module leans on: a BaseTest embeddable that runs
// accumulated cleanups, and MockCommand for stubbing external helper
// binaries (pcscd, systemd-run) the way the teacher's own test suites do.
package testutil

import (
	. "gopkg.in/check.v1"
)

// BaseTest provides an AddCleanup/TearDownTest pair so suites can register
// restore functions as they go instead of hand-rolling defer chains across
// SetUpTest/TearDownTest.
type BaseTest struct {
	cleanups []func()
}

// SetUpTest resets any cleanups left over from a previous test.
func (b *BaseTest) SetUpTest(c *C) {
	b.cleanups = nil
}

// TearDownTest runs every registered cleanup in reverse registration order.
func (b *BaseTest) TearDownTest(c *C) {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}

// AddCleanup registers f to run when the current test tears down.
func (b *BaseTest) AddCleanup(f func()) {
	b.cleanups = append(b.cleanups, f)
}
