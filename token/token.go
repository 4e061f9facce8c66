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

// Package token is the KEK-acquisition collaborator spec.md §6 treats as
// opaque: "start PC/SC daemon, locate smartcard, prompt PIN, PKCS#11
// ECDH1 derive against the embedded public point". The core only ever
// consumes the resulting 32-byte KEK; it has no opinion on how it was
// produced, so this package offers two interchangeable backends.
package token

import "context"

// KEKSize is the width of a key-encryption-key, in bytes.
const KEKSize = 32

// Backend acquires a key-encryption-key from a hardware root of trust.
// PKCS11Backend is the smartcard path ground-truthed against
// original_source/loadkey/loadkey.c; TPMBackend is a second, equally
// valid opaque source for a boot-time KEK release.
type Backend interface {
	AcquireKEK(ctx context.Context) ([KEKSize]byte, error)
}
