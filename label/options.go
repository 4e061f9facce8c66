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

package label

import "github.com/juju/ratelimit"

type options struct {
	verifyChecksum bool
	bucket         *ratelimit.Bucket
}

// Option configures a single ReadLabels call.
type Option func(*options)

// WithChecksumVerification enables the trailer's 256-bit checksum check
// (SPEC_FULL.md §8's restored extension point). It is off unless enabled:
// cmd/zfsboot-mount passes true only when a dev-config override sets
// verify_checksum, so a launcher as built does not check the trailer.
func WithChecksumVerification(enabled bool) Option {
	return func(o *options) { o.verifyChecksum = enabled }
}

// WithRateLimiter throttles concurrent ReadLabels calls through a shared
// token bucket, so a pool with hundreds of top-level vdevs doesn't open
// hundreds of file descriptors in the same instant. Package importer
// constructs one bucket per import and passes it to every device.
func WithRateLimiter(b *ratelimit.Bucket) Option {
	return func(o *options) { o.bucket = b }
}
