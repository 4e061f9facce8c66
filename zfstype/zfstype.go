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

// Package zfstype holds the small constant vocabularies shared by every
// component of the import engine: pool and vdev state codes, vdev-tree
// node types, MMP states and dataset property sources. Naming follows
// the Go conventions kelleyk-zfstools' libzfs bindings use for the same
// native enums (PoolState, VDevType, …).
package zfstype

// PoolState mirrors the kernel's pool_state_t.
type PoolState uint64

const (
	PoolStateActive PoolState = iota
	PoolStateExported
	PoolStateDestroyed
	PoolStateSpare
	PoolStateL2Cache
	PoolStateUninitialized
	PoolStateUnavail
	PoolStatePotentiallyActive
)

func (s PoolState) String() string {
	switch s {
	case PoolStateActive:
		return "ACTIVE"
	case PoolStateExported:
		return "EXPORTED"
	case PoolStateDestroyed:
		return "DESTROYED"
	case PoolStateSpare:
		return "SPARE"
	case PoolStateL2Cache:
		return "L2CACHE"
	case PoolStateUninitialized:
		return "UNINITIALIZED"
	case PoolStateUnavail:
		return "UNAVAIL"
	case PoolStatePotentiallyActive:
		return "POTENTIALLY_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// VDevType identifies the kind of a vdev-tree node.
type VDevType string

const (
	VDevTypeRoot    VDevType = "root"
	VDevTypeHole    VDevType = "hole"
	VDevTypeMissing VDevType = "missing"
	VDevTypeMirror  VDevType = "mirror"
	VDevTypeRaidz   VDevType = "raidz"
	VDevTypeDisk    VDevType = "disk"
	VDevTypeFile    VDevType = "file"
)

// MMPState mirrors the kernel's mmp_state_t.
type MMPState uint64

const (
	MMPStateActive MMPState = iota
	MMPStateInactive
	MMPStateNoLongerActive
)

func (s MMPState) String() string {
	switch s {
	case MMPStateActive:
		return "ACTIVE"
	case MMPStateInactive:
		return "INACTIVE"
	case MMPStateNoLongerActive:
		return "NO_LONGER_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// PropSource mirrors the kernel's zprop_source_t, identifying where a
// dataset property's effective value came from.
type PropSource uint64

const (
	PropSourceNone PropSource = iota
	PropSourceDefault
	PropSourceLocal
	PropSourceInherited
	PropSourceReceived
)

func (s PropSource) String() string {
	switch s {
	case PropSourceNone:
		return "NONE"
	case PropSourceDefault:
		return "DEFAULT"
	case PropSourceLocal:
		return "LOCAL"
	case PropSourceInherited:
		return "INHERITED"
	case PropSourceReceived:
		return "RECEIVED"
	default:
		return "UNKNOWN"
	}
}

// KeyStatus mirrors the kernel's dataset keystatus property values.
type KeyStatus uint64

const (
	KeyStatusNone KeyStatus = iota
	KeyStatusUnavailable
	KeyStatusAvailable
)

// MaxSupportedVersion is the highest on-disk format version this engine
// understands; kernelfs.ValidateEnriched rejects anything newer.
const MaxSupportedVersion = 5000

// MinSupportedVersion is the oldest format this engine still imports.
const MinSupportedVersion = 1

// SupportsVersion reports whether v falls within the supported range.
func SupportsVersion(v uint64) bool {
	return v >= MinSupportedVersion && v <= MaxSupportedVersion
}
