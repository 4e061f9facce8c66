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

// Package kernelfs implements the two-phase import handshake, the key
// loader and the raw dataset-iterator/mount primitives that talk to the
// kernel filesystem driver's ioctl-class interface (spec.md §4.3–§4.5).
// Device abstracts that interface so every call site — and every test —
// goes through the same five operations instead of an untyped ioctl
// dispatcher.
package kernelfs

import "context"

// ErrENOMEM is returned by a Device method when the kernel reports the
// caller's output buffer was too small. RequiredSize is the length the
// next call must allocate; callers retry through withGrowingBuffer
// (retry.go), never by hand.
type ErrENOMEM struct {
	RequiredSize uint64
}

func (e *ErrENOMEM) Error() string { return "ENOMEM: kernel requires a larger output buffer" }

// Device is the kernel filesystem driver's ioctl-class surface, narrowed
// to the five calls this engine makes. A real device issues these over
// /dev/zfs; tests substitute an in-memory fake that never touches the
// operating system.
type Device interface {
	// PoolTryImport validates in (a packed pool descriptor) without
	// committing, returning the kernel's enriched descriptor. outCap
	// bounds the output allocation; on *ErrENOMEM the caller must retry
	// with a buffer of at least RequiredSize.
	PoolTryImport(ctx context.Context, in []byte, outCap uint64) (out []byte, err error)

	// PoolImport commits the import described by in under the given
	// name/guid.
	PoolImport(ctx context.Context, name string, guid uint64, in []byte, outCap uint64) (out []byte, err error)

	// DatasetListNext returns the next child of parent after cookie, or
	// ErrNoMoreChildren when there is none.
	DatasetListNext(ctx context.Context, parent string, cookie uint64, outCap uint64) (child string, nextCookie uint64, props []byte, err error)

	// ObjsetStats returns the named dataset's property envelope.
	ObjsetStats(ctx context.Context, name string, outCap uint64) (props []byte, err error)

	// LoadKey hands key to the kernel for root's encryption root.
	LoadKey(ctx context.Context, root string, key []byte) error

	// Close releases the device handle.
	Close() error
}
