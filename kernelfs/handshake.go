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

package kernelfs

import (
	"context"
	"fmt"

	"github.com/openzfsboot/zfsboot/nvlist"
	"github.com/openzfsboot/zfsboot/zfserr"
	"github.com/openzfsboot/zfsboot/zfstype"
)

// TryImport implements spec.md §4.3 Phase A: pack descriptor, call
// POOL_TRYIMPORT through the shared grow-and-retry helper, and unpack
// the kernel's enriched reply (which carries load_info).
func TryImport(ctx context.Context, dev Device, descriptor *nvlist.List) (*nvlist.List, error) {
	in, err := descriptor.PackNative()
	if err != nil {
		return nil, zfserr.New(zfserr.FormatError, "", fmt.Errorf("pack descriptor: %w", err))
	}

	out, err := withGrowingBuffer(uint64(len(in))*32, func(outCap uint64) ([]byte, error) {
		return dev.PoolTryImport(ctx, in, outCap)
	})
	if err != nil {
		return nil, zfserr.New(zfserr.IoError, "", fmt.Errorf("POOL_TRYIMPORT: %w", err))
	}

	enriched, err := nvlist.Unpack(out)
	if err != nil {
		return nil, zfserr.New(zfserr.FormatError, "", fmt.Errorf("unpack enriched descriptor: %w", err))
	}
	return enriched, nil
}

// ValidateEnriched implements the local validation spec.md §4.3 runs
// between TryImport and Import: version support, presence of load_info,
// a foreign-hostid check when the pool reports EXPORTED, and MMP state.
func ValidateEnriched(enriched *nvlist.List, localHostID uint64) error {
	version, ok := enriched.GetU64("version")
	if !ok {
		return zfserr.New(zfserr.FormatError, "", fmt.Errorf("enriched descriptor missing version"))
	}
	if !zfstype.SupportsVersion(version) {
		return zfserr.New(zfserr.PolicyError, "", fmt.Errorf("unsupported pool version %d", version))
	}

	loadInfo, ok := enriched.GetChild("load_info")
	if !ok {
		return zfserr.New(zfserr.PolicyError, "", fmt.Errorf("enriched descriptor missing load_info"))
	}

	state, _ := enriched.GetU64("state")
	if zfstype.PoolState(state) == zfstype.PoolStateExported {
		hostid, ok := loadInfo.GetU64("hostid")
		if !ok {
			hostid, ok = enriched.GetU64("hostid")
		}
		if ok && hostid != localHostID {
			return zfserr.New(zfserr.PolicyError, "", fmt.Errorf("pool hostid %#x does not match this host's hostid %#x", hostid, localHostID))
		}
	}

	if mmp, ok := loadInfo.GetU64("mmp_state"); ok {
		if zfstype.MMPState(mmp) != zfstype.MMPStateInactive {
			return zfserr.New(zfserr.PolicyError, "", fmt.Errorf("pool has active multi-modifier protection (mmp_state=%s)", zfstype.MMPState(mmp)))
		}
	}

	return nil
}

// Import implements spec.md §4.3 Phase B: re-pack the enriched
// descriptor, set name/guid in the envelope, and commit through
// POOL_IMPORT with the same grow-and-retry rule.
func Import(ctx context.Context, dev Device, enriched *nvlist.List, name string, guid uint64) error {
	in, err := enriched.PackNative()
	if err != nil {
		return zfserr.New(zfserr.FormatError, name, fmt.Errorf("pack enriched descriptor: %w", err))
	}

	_, err = withGrowingBuffer(uint64(len(in))*32, func(outCap uint64) ([]byte, error) {
		return dev.PoolImport(ctx, name, guid, in, outCap)
	})
	if err != nil {
		return zfserr.New(zfserr.IoError, name, fmt.Errorf("POOL_IMPORT: %w", err))
	}
	return nil
}
