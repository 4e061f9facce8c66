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
	"errors"
	"fmt"
	"time"

	"gopkg.in/retry.v1"

	"github.com/openzfsboot/zfsboot/zfserr"
)

// maxGrowAttempts bounds the call -> if-ENOMEM-grow-and-retry loop
// shared by POOL_TRYIMPORT, POOL_IMPORT and DATASET_LIST_NEXT
// (spec.md §9: "factor once and reuse in three call sites").
// Exhausting it surfaces as a ResourceError.
const maxGrowAttempts = 6

// minOutputBuf is the smallest output buffer a growing call ever starts
// from, mirroring spec.md §4.3's `max(min_config_buf, input_size*32)`.
const minOutputBuf = 256 << 10

// growStrategy bounds the retry loop purely by attempt count; there is
// no useful backoff delay for a buffer-size renegotiation, so Delay is
// effectively zero and the strategy exists only to reuse the teacher's
// own bounded-retry primitive instead of a hand-rolled for loop.
var growStrategy = retry.LimitCount(maxGrowAttempts, retry.Regular{
	Delay: time.Microsecond,
})

// withGrowingBuffer calls fn with successively larger output-buffer
// capacities until it succeeds, returns a non-ENOMEM error, or the
// attempt budget is exhausted. fn must not mutate its inputs between
// attempts other than the growing outCap it's handed.
func withGrowingBuffer(initialCap uint64, fn func(outCap uint64) ([]byte, error)) ([]byte, error) {
	if initialCap < minOutputBuf {
		initialCap = minOutputBuf
	}
	cap := initialCap
	var lastErr error
	for a := retry.Start(growStrategy, nil); a.Next(); {
		out, err := fn(cap)
		if err == nil {
			return out, nil
		}
		var enomem *ErrENOMEM
		if errors.As(err, &enomem) {
			if enomem.RequiredSize > cap {
				cap = enomem.RequiredSize
			} else {
				cap *= 2
			}
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, zfserr.New(zfserr.ResourceError, "", fmt.Errorf("exhausted %d grow-and-retry attempts: %w", maxGrowAttempts, lastErr))
}
