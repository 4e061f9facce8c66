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

// Package dirs centralizes every filesystem path the import engine reads
// or writes, all relative to a single overridable root. Production code
// always runs with an empty root (the real "/"); tests set an alternate
// root so the whole engine can be exercised against a throwaway directory
// tree instead of the machine it runs on.
package dirs

import (
	"fmt"
	"path/filepath"
	"strings"
)

var rootDir string

// GlobalRootDir returns the current root directory override, or "" when
// none is set.
func GlobalRootDir() string {
	return rootDir
}

// SetRootDir overrides the root directory every path in this package is
// computed relative to. Passing "" (or "/") restores the real root.
func SetRootDir(root string) {
	if root == "" {
		root = "/"
	}
	rootDir = filepath.Clean(root)
	if rootDir == "/" {
		rootDir = ""
	}
}

// StripRootDir removes the current root override prefix from an absolute
// path, panicking if path is not absolute or not beneath the root — the
// same contract the teacher's own dirs package exposes.
func StripRootDir(path string) string {
	if !filepath.IsAbs(path) {
		panic(fmt.Sprintf("supplied path is not absolute %q", path))
	}
	if rootDir == "" {
		return path
	}
	if !strings.HasPrefix(path, rootDir) {
		panic(fmt.Sprintf("supplied path is not related to global root %q", path))
	}
	stripped := strings.TrimPrefix(path, rootDir)
	if stripped == "" {
		return "/"
	}
	return stripped
}

// HostIDPath is where the running kernel module publishes its configured
// hostid, consulted by the Kernel Handshake when a candidate pool reports
// state EXPORTED.
func HostIDPath() string {
	return filepath.Join(rootDir, "/proc/sys/kernel/spl/hostid")
}

// SysfsBlockDev returns the sysfs directory for a block device identified
// by its major:minor pair, used to name a raw device in the error
// reported when its size cannot be queried.
func SysfsBlockDev(majMin string) string {
	return filepath.Join(rootDir, "/sys/dev/block", majMin)
}

// DevConfigPath is where a development build looks for the optional YAML
// override described in SPEC_FULL.md §7. Production builds never read it.
func DevConfigPath() string {
	return filepath.Join(rootDir, "/etc/zfsboot/dev-config.yaml")
}

// KernelDevicePath is the simulated ZFS control device the Kernel
// Handshake issues ioctls against.
func KernelDevicePath() string {
	return filepath.Join(rootDir, "/dev/zfs")
}
