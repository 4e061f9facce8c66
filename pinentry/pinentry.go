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

// Package pinentry is the PIN-prompt collaborator spec.md §6 fixes as
// "prompt 6-8 digit PIN with no echo" -- the Go shape of
// original_source/loadkey/readpin.c, minus the hand-rolled termios
// bookkeeping (golang.org/x/term already does that) plus a minimum
// entropy check the 46-line original never had.
package pinentry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	passwordvalidator "github.com/canonical/go-password-validator"
	"golang.org/x/term"
)

// MinDigits and MaxDigits bound a valid PIN, matching readpin.c's
// numDigits >= 6 acceptance and its 8-byte pin[] buffer.
const (
	MinDigits = 6
	MaxDigits = 8
)

// minEntropyBits rejects PINs like "000000" or "123456" before they are
// ever sent to the token. A 6-digit numeric PIN has at most ~20 bits of
// entropy; this threshold only catches the degenerate, machine-guessable
// cases, not ordinary user PINs.
const minEntropyBits = 10

// reader lets tests substitute a canned input stream instead of a real
// terminal.
var reader io.Reader = os.Stdin

// ReadPIN prompts on stdout (or prints prompt then reads silently from
// the controlling terminal when stdin is a tty) and returns a validated
// 6-8 digit PIN, mirroring YK_ReadPIN's echo-disabled, digit-only,
// backspace-aware input loop.
func ReadPIN(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(os.Stdout, prompt)

	var pin string
	var err error
	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		var raw []byte
		raw, err = term.ReadPassword(int(f.Fd()))
		pin = string(raw)
		fmt.Fprintln(os.Stdout)
	} else {
		pin, err = bufio.NewReader(reader).ReadString('\n')
		pin = strings.TrimRight(pin, "\r\n")
	}
	if err != nil {
		return "", fmt.Errorf("pinentry: read pin: %w", err)
	}

	if err := validate(pin); err != nil {
		return "", err
	}
	return pin, nil
}

func validate(pin string) error {
	if len(pin) < MinDigits || len(pin) > MaxDigits {
		return fmt.Errorf("pinentry: pin must be %d-%d digits, got %d", MinDigits, MaxDigits, len(pin))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pinentry: pin must be all digits")
		}
	}
	if bits := passwordvalidator.GetEntropy(pin); bits < minEntropyBits {
		return fmt.Errorf("pinentry: pin is too predictable (entropy %.1f bits, need >= %d)", bits, minEntropyBits)
	}
	return nil
}

// MockReader swaps the input stream ReadPIN reads from, in the teacher's
// Mock-returns-restore idiom, so tests never touch a real terminal.
func MockReader(r io.Reader) (restore func()) {
	old := reader
	reader = r
	return func() { reader = old }
}
