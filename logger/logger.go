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

// Package logger is the only diagnostic channel the import engine uses:
// syslog facility LOG_DAEMON, at levels LOG_ERR, LOG_WARNING and LOG_INFO.
// There is nothing to configure at runtime — no log file, no verbosity
// flag reaches this package — matching the fixed external-interface
// contract the engine exposes to whatever invokes it at boot.
package logger

import (
	"fmt"
	"log/syslog"
	"sync"
)

// Writer is the minimal surface logger needs from a syslog connection,
// small enough that tests substitute an in-memory fake via MockLogger.
type Writer interface {
	Err(string) error
	Warning(string) error
	Info(string) error
}

var (
	mu sync.Mutex
	w  Writer
)

func ensure() Writer {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		sw, err := syslog.New(syslog.LOG_DAEMON, "zfsboot")
		if err != nil {
			// No syslog socket (common in a minimal initramfs during
			// development): fall back to a no-op so callers never panic
			// on the one channel they're guaranteed to have.
			w = nopWriter{}
		} else {
			w = sw
		}
	}
	return w
}

type nopWriter struct{}

func (nopWriter) Err(string) error     { return nil }
func (nopWriter) Warning(string) error { return nil }
func (nopWriter) Info(string) error    { return nil }

// Errorf logs at LOG_ERR.
func Errorf(format string, args ...interface{}) {
	ensure().Err(fmt.Sprintf(format, args...))
}

// Warningf logs at LOG_WARNING.
func Warningf(format string, args ...interface{}) {
	ensure().Warning(fmt.Sprintf(format, args...))
}

// Noticef logs at LOG_INFO (there is no distinct "notice" level in the
// Go syslog package; LOG_INFO is the closest fit and matches what the
// engine's informational progress lines need).
func Noticef(format string, args ...interface{}) {
	ensure().Info(fmt.Sprintf(format, args...))
}

// MockLogger swaps the package-level writer for rec, returning a restore
// func, in the teacher's Mock-returns-restore idiom.
func MockLogger(rec Writer) (restore func()) {
	mu.Lock()
	old := w
	w = rec
	mu.Unlock()
	return func() {
		mu.Lock()
		w = old
		mu.Unlock()
	}
}
