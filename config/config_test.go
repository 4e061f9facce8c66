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

package config

import (
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type configSuite struct{}

var _ = Suite(&configSuite{})

func (s *configSuite) TestLoadWithoutEnvVarIsNoop(c *C) {
	os.Unsetenv(DevConfigEnvVar)
	o, err := Load(filepath.Join(c.MkDir(), "nonexistent.yaml"))
	c.Assert(err, IsNil)
	c.Assert(o, IsNil)
}

func (s *configSuite) TestLoadParsesOverride(c *C) {
	os.Setenv(DevConfigEnvVar, "1")
	defer os.Unsetenv(DevConfigEnvVar)

	path := filepath.Join(c.MkDir(), "dev-config.yaml")
	c.Assert(os.WriteFile(path, []byte("pool_name: scratch\nvdevs:\n  - /dev/loop0\n  - /dev/loop1\n"), 0644), IsNil)

	o, err := Load(path)
	c.Assert(err, IsNil)
	c.Assert(o.PoolName, Equals, "scratch")
	c.Assert(o.Vdevs, DeepEquals, []string{"/dev/loop0", "/dev/loop1"})
}

func (s *configSuite) TestApplyOverlaysOnlyNonZero(c *C) {
	o := &Override{PoolName: "scratch"}
	name, guid, vdevs, root, alt, chk := o.Apply("prod", 42, []string{"/dev/sda"}, "prod/root", "/mnt", true)
	c.Assert(name, Equals, "scratch")
	c.Assert(guid, Equals, uint64(42))
	c.Assert(vdevs, DeepEquals, []string{"/dev/sda"})
	c.Assert(root, Equals, "prod/root")
	c.Assert(alt, Equals, "/mnt")
	c.Assert(chk, Equals, true)
}
