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
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/openzfsboot/zfsboot/dirs"
)

// ErrNoMoreChildren is returned by DatasetListNext when the kernel
// reports ESRCH, the normal (non-error) end of a parent's child list.
var ErrNoMoreChildren = errors.New("no more children")

// ioctl request numbers, assigned in the same relative order the real
// driver's zfs_ioc_t enum defines them; this engine never forks that
// interface (spec.md §6), it only needs stable numbers to address it.
const (
	ioctlBase          = 0x5a00
	ioctlPoolTryImport = ioctlBase + 1
	ioctlPoolImport    = ioctlBase + 2
	ioctlDatasetNext   = ioctlBase + 3
	ioctlObjsetStats   = ioctlBase + 4
	ioctlLoadKey       = ioctlBase + 5
)

// wireCmd is the fixed-layout command envelope from spec.md §3,
// addressed directly by the ioctl call.
type wireCmd struct {
	name    [256]byte
	guid    uint64
	cookie  uint64
	inPtr   uintptr
	inLen   uint64
	outPtr  uintptr
	outLen  uint64
	errCode int64
}

type realDevice struct {
	fd int
}

// OpenRealDevice opens the kernel filesystem control device.
func OpenRealDevice() (Device, error) {
	fd, err := unix.Open(dirs.KernelDevicePath(), unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dirs.KernelDevicePath(), err)
	}
	return &realDevice{fd: fd}, nil
}

func (d *realDevice) call(req uintptr, name string, guid, cookie uint64, in []byte, outCap uint64) (out []byte, outName string, newCookie uint64, err error) {
	var cmd wireCmd
	if len(name) >= len(cmd.name) {
		return nil, "", 0, fmt.Errorf("name too long")
	}
	copy(cmd.name[:], name)
	cmd.guid = guid
	cmd.cookie = cookie
	if len(in) > 0 {
		cmd.inPtr = uintptr(unsafe.Pointer(&in[0]))
		cmd.inLen = uint64(len(in))
	}
	outBuf := make([]byte, outCap)
	if outCap > 0 {
		cmd.outPtr = uintptr(unsafe.Pointer(&outBuf[0]))
	}
	cmd.outLen = outCap

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(unsafe.Pointer(&cmd)))
	if errno == unix.ENOMEM {
		return nil, "", 0, &ErrENOMEM{RequiredSize: cmd.outLen}
	}
	if errno == unix.ESRCH {
		return nil, "", 0, ErrNoMoreChildren
	}
	if errno != 0 {
		return nil, "", 0, errno
	}
	// The kernel overwrites name with the child's name for
	// DATASET_LIST_NEXT; for other ioctls it is left untouched.
	nameLen := 0
	for nameLen < len(cmd.name) && cmd.name[nameLen] != 0 {
		nameLen++
	}
	return outBuf[:cmd.outLen], string(cmd.name[:nameLen]), cmd.cookie, nil
}

func (d *realDevice) PoolTryImport(ctx context.Context, in []byte, outCap uint64) ([]byte, error) {
	out, _, _, err := d.call(ioctlPoolTryImport, "", 0, 0, in, outCap)
	return out, err
}

func (d *realDevice) PoolImport(ctx context.Context, name string, guid uint64, in []byte, outCap uint64) ([]byte, error) {
	out, _, _, err := d.call(ioctlPoolImport, name, guid, 0, in, outCap)
	return out, err
}

// DatasetListNext implements the cookie-driven DATASET_LIST_NEXT ioctl.
// The kernel overwrites the envelope's name field with the child's
// name; callers must not assume it stays equal to parent.
func (d *realDevice) DatasetListNext(ctx context.Context, parent string, cookie uint64, outCap uint64) (string, uint64, []byte, error) {
	out, childName, newCookie, err := d.call(ioctlDatasetNext, parent, 0, cookie, nil, outCap)
	if err != nil {
		return "", 0, nil, err
	}
	return childName, newCookie, out, nil
}

func (d *realDevice) ObjsetStats(ctx context.Context, name string, outCap uint64) ([]byte, error) {
	out, _, _, err := d.call(ioctlObjsetStats, name, 0, 0, nil, outCap)
	return out, err
}

func (d *realDevice) LoadKey(ctx context.Context, root string, key []byte) error {
	_, _, _, err := d.call(ioctlLoadKey, root, 0, 0, key, 0)
	return err
}

func (d *realDevice) Close() error {
	return unix.Close(d.fd)
}
