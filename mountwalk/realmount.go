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

package mountwalk

import "golang.org/x/sys/unix"

// RealMounter issues actual mount(2) syscalls against the host's
// filesystem namespace.
type RealMounter struct{}

// Mount mounts the named dataset at target using the zfs filesystem
// type, matching what the kernel module itself expects to see on the
// other end of the mount(2) call.
func (RealMounter) Mount(source, target string) error {
	return unix.Mount(source, target, "zfs", 0, "")
}
