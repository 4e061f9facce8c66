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

package zfserr_test

import (
	"errors"
	"fmt"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/openzfsboot/zfsboot/zfserr"
)

func Test(t *testing.T) { TestingT(t) }

type ZfserrSuite struct{}

var _ = Suite(&ZfserrSuite{})

func (s *ZfserrSuite) TestKindString(c *C) {
	cases := []struct {
		kind zfserr.Kind
		want string
	}{
		{zfserr.IoError, "io"},
		{zfserr.FormatError, "format"},
		{zfserr.PolicyError, "policy"},
		{zfserr.ResourceError, "resource"},
		{zfserr.KeyError, "key"},
		{zfserr.Kind(99), "unknown"},
	}
	for _, tc := range cases {
		c.Assert(tc.kind.String(), Equals, tc.want)
	}
}

func (s *ZfserrSuite) TestErrorFormatsWithSubject(c *C) {
	err := zfserr.New(zfserr.IoError, "/dev/sda1", errors.New("boom"))
	c.Assert(err.Error(), Equals, `io "/dev/sda1": boom`)
}

func (s *ZfserrSuite) TestErrorFormatsWithoutSubject(c *C) {
	err := zfserr.New(zfserr.PolicyError, "", errors.New("mmp active"))
	c.Assert(err.Error(), Equals, "policy: mmp active")
}

func (s *ZfserrSuite) TestUnwrapReturnsCause(c *C) {
	cause := errors.New("underlying")
	err := zfserr.New(zfserr.FormatError, "tank", cause)
	c.Assert(errors.Unwrap(err), Equals, cause)
}

func (s *ZfserrSuite) TestIsMatchesOwnKind(c *C) {
	err := zfserr.New(zfserr.ResourceError, "tank", errors.New("enomem"))
	c.Assert(zfserr.Is(err, zfserr.ResourceError), Equals, true)
	c.Assert(zfserr.Is(err, zfserr.KeyError), Equals, false)
}

func (s *ZfserrSuite) TestIsUnwrapsThroughWrappingErrors(c *C) {
	inner := zfserr.New(zfserr.KeyError, "tank/a", errors.New("EACCES"))
	wrapped := fmt.Errorf("loading key: %w", inner)
	c.Assert(zfserr.Is(wrapped, zfserr.KeyError), Equals, true)
	c.Assert(zfserr.Is(wrapped, zfserr.IoError), Equals, false)
}

func (s *ZfserrSuite) TestIsReturnsFalseForPlainError(c *C) {
	c.Assert(zfserr.Is(errors.New("plain"), zfserr.IoError), Equals, false)
}

func (s *ZfserrSuite) TestIsReturnsFalseForNil(c *C) {
	c.Assert(zfserr.Is(nil, zfserr.IoError), Equals, false)
}
