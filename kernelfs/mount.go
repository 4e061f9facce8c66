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

	"github.com/openzfsboot/zfsboot/zfserr"
)

// datasetMinOutBuf is the starting output buffer size for both
// DATASET_LIST_NEXT and OBJSET_STATS before any ENOMEM-driven growth.
const datasetMinOutBuf = 64 << 10

// ListNextDataset wraps Device.DatasetListNext in the same grow-and-retry
// rule TryImport and Import apply to POOL_TRYIMPORT/POOL_IMPORT, the
// third call site spec.md §9 names. Per spec.md §4.5, the cookie used to
// resume sibling iteration on a retry is the one the caller already
// holds, never one left behind by a deeper call; passing a fixed
// (parent, cookie) pair into the retried closure keeps that true without
// any explicit save/restore.
func ListNextDataset(ctx context.Context, dev Device, parent string, cookie uint64) (string, uint64, []byte, error) {
	var childName string
	var nextCookie uint64

	out, err := withGrowingBuffer(datasetMinOutBuf, func(outCap uint64) ([]byte, error) {
		name, next, buf, err := dev.DatasetListNext(ctx, parent, cookie, outCap)
		if err != nil {
			return nil, err
		}
		childName, nextCookie = name, next
		return buf, nil
	})
	if err != nil {
		return "", 0, nil, err
	}
	return childName, nextCookie, out, nil
}

// FetchObjsetStats wraps Device.ObjsetStats in the same grow-and-retry
// rule, so a dataset with an unusually large property set never fails
// the mount walk just because the first guessed buffer was too small.
func FetchObjsetStats(ctx context.Context, dev Device, name string) ([]byte, error) {
	out, err := withGrowingBuffer(datasetMinOutBuf, func(outCap uint64) ([]byte, error) {
		return dev.ObjsetStats(ctx, name, outCap)
	})
	if err != nil {
		return nil, zfserr.New(zfserr.IoError, name, fmt.Errorf("objset stats: %w", err))
	}
	return out, nil
}
