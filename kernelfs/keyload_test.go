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

package kernelfs_test

import (
	"context"
	"errors"

	. "gopkg.in/check.v1"
	"golang.org/x/sys/unix"

	"github.com/openzfsboot/zfsboot/kernelfs"
)

type KeyloadSuite struct{}

var _ = Suite(&KeyloadSuite{})

// erroringKeyDevice returns a fixed errno from LoadKey, letting
// TestLoadKeyErrorsFormABijection drive every §4.4 code through the
// real classification path.
type erroringKeyDevice struct{ errno unix.Errno }

func (d *erroringKeyDevice) PoolTryImport(ctx context.Context, in []byte, outCap uint64) ([]byte, error) {
	return nil, errors.New("unused")
}
func (d *erroringKeyDevice) PoolImport(ctx context.Context, name string, guid uint64, in []byte, outCap uint64) ([]byte, error) {
	return nil, errors.New("unused")
}
func (d *erroringKeyDevice) DatasetListNext(ctx context.Context, parent string, cookie uint64, outCap uint64) (string, uint64, []byte, error) {
	return "", 0, nil, kernelfs.ErrNoMoreChildren
}
func (d *erroringKeyDevice) ObjsetStats(ctx context.Context, name string, outCap uint64) ([]byte, error) {
	return nil, errors.New("unused")
}
func (d *erroringKeyDevice) LoadKey(ctx context.Context, root string, key []byte) error {
	if d.errno == 0 {
		return nil
	}
	return d.errno
}
func (d *erroringKeyDevice) Close() error { return nil }

// TestLoadKeyErrorsFormABijection exercises spec.md §4.4/§8.8: each
// kernel errno maps to exactly one distinct, user-visible reason, and
// no two codes collapse onto the same sentinel.
func (s *KeyloadSuite) TestLoadKeyErrorsFormABijection(c *C) {
	cases := []struct {
		errno unix.Errno
		want  error
	}{
		{unix.EPERM, kernelfs.ErrKeyPermissionDenied},
		{unix.EINVAL, kernelfs.ErrKeyInvalidParameters},
		{unix.EEXIST, kernelfs.ErrKeyAlreadyLoaded},
		{unix.EBUSY, kernelfs.ErrKeyDatasetBusy},
		{unix.EACCES, kernelfs.ErrKeyIncorrect},
		{unix.ENOTSUP, kernelfs.ErrKeyCryptoNotSupported},
	}

	seenMessages := map[string]unix.Errno{}
	for _, tc := range cases {
		dev := &erroringKeyDevice{errno: tc.errno}
		err := kernelfs.LoadKey(context.Background(), dev, "tank", make([]byte, 32))
		c.Assert(err, NotNil)
		c.Assert(errors.Is(err, tc.want), Equals, true)

		msg := tc.want.Error()
		if prior, ok := seenMessages[msg]; ok {
			c.Fatalf("errno %v and %v collapse onto the same reason %q", prior, tc.errno, msg)
		}
		seenMessages[msg] = tc.errno
	}
}

func (s *KeyloadSuite) TestLoadKeyUnknownErrnoReportsNumerically(c *C) {
	dev := &erroringKeyDevice{errno: unix.ENOSPC}
	err := kernelfs.LoadKey(context.Background(), dev, "tank", make([]byte, 32))
	c.Assert(err, ErrorMatches, `.*unknown error loading key \(errno 28\).*`)
}

func (s *KeyloadSuite) TestLoadKeyRejectsWrongKeyLength(c *C) {
	dev := &erroringKeyDevice{}
	err := kernelfs.LoadKey(context.Background(), dev, "tank", make([]byte, 16))
	c.Assert(err, ErrorMatches, ".*key must be 32 bytes.*")
}
