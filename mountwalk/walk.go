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

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/openzfsboot/zfsboot/kernelfs"
	"github.com/openzfsboot/zfsboot/logger"
	"github.com/openzfsboot/zfsboot/nvlist"
	"github.com/openzfsboot/zfsboot/zfserr"
	"github.com/openzfsboot/zfsboot/zfstype"
)

// mounter abstracts the mount(2) syscall so tests can substitute a
// recording fake instead of touching the real mount namespace.
type mounter interface {
	Mount(source, target string) error
}

// Walk descends the dataset tree rooted at root, mounting each dataset
// whose properties permit it under altRoot, in the exact order spec.md
// §4.5 fixes. It returns the first fatal error encountered; skip
// decisions never abort the walk.
func Walk(ctx context.Context, dev kernelfs.Device, m mounter, root, altRoot string) error {
	return walkDataset(ctx, dev, m, root, altRoot)
}

func walkDataset(ctx context.Context, dev kernelfs.Device, m mounter, name, altRoot string) error {
	props, err := fetchProps(ctx, dev, name)
	if err != nil {
		return err
	}

	if err := mountOne(m, name, props, altRoot); err != nil {
		return err
	}

	return walkChildren(ctx, dev, m, name, altRoot)
}

func fetchProps(ctx context.Context, dev kernelfs.Device, name string) (*nvlist.List, error) {
	buf, err := kernelfs.FetchObjsetStats(ctx, dev, name)
	if err != nil {
		return nil, err
	}
	props, err := nvlist.Unpack(buf)
	if err != nil {
		return nil, zfserr.New(zfserr.FormatError, name, fmt.Errorf("unpack dataset properties: %w", err))
	}
	return props, nil
}

// mountOne applies the ordered property checks of spec.md §4.5 and, if
// the dataset should be mounted, prepares the mountpoint directory and
// mounts it. A skip decision is not an error; only a genuine policy
// violation is.
func mountOne(m mounter, name string, props *nvlist.List, altRoot string) error {
	if keystatus, ok := propU64Value(props, "keystatus"); ok && zfstype.KeyStatus(keystatus) == zfstype.KeyStatusUnavailable {
		return zfserr.New(zfserr.PolicyError, name, fmt.Errorf("encryption key unavailable"))
	}

	if canmount, ok := propU64Value(props, "canmount"); ok && canmount == canmountOff {
		logger.Noticef("mountwalk: %s: canmount=off, skipping", name)
		return nil
	}

	if props.Has("redacted") {
		return zfserr.New(zfserr.PolicyError, name, fmt.Errorf("dataset is a redacted send stream, cannot be mounted"))
	}

	if zoned, ok := propU64Value(props, "zoned"); ok && zoned != 0 {
		return zfserr.New(zfserr.PolicyError, name, fmt.Errorf("dataset is zoned, cannot be mounted here"))
	}

	mpValue, ok := propStringValue(props, "mountpoint")
	if !ok || mpValue == "none" {
		return nil
	}
	if mpValue == "legacy" {
		return zfserr.New(zfserr.PolicyError, name, fmt.Errorf("mountpoint=legacy is not supported"))
	}

	source, _ := propSource(props, "mountpoint")
	if zfstype.PropSource(source) == zfstype.PropSourceReceived {
		return zfserr.New(zfserr.PolicyError, name, fmt.Errorf("mountpoint property source is received, refusing to mount"))
	}

	relSuffix := ""
	if zfstype.PropSource(source) == zfstype.PropSourceInherited {
		if ancestor, ok := propSourceDataset(props, "mountpoint"); ok {
			relSuffix = strings.TrimPrefix(name, ancestor)
		}
	}

	effective := path.Join(altRoot, mpValue, relSuffix)

	if err := prepareMountpoint(effective); err != nil {
		return zfserr.New(zfserr.IoError, name, err)
	}
	if err := m.Mount(name, effective); err != nil {
		return zfserr.New(zfserr.IoError, name, fmt.Errorf("mount: %w", err))
	}
	return nil
}

const canmountOff = 0

// prepareMountpoint makes the target directory (creating parents as
// needed) and refuses to mount over a directory that already has
// content, mirroring the original tool's precondition.
func prepareMountpoint(target string) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", target, err)
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", target, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("mountpoint %s is not empty", target)
	}
	return nil
}

// walkChildren drives the cookie-based DATASET_LIST_NEXT iterator over
// name's immediate children, descending into each one depth-first
// before asking for the next sibling. Because each call takes an
// explicit (parent, cookie) pair rather than mutating a shared
// envelope, the "snapshot and restore" discipline spec.md §4.5
// describes for the underlying ioctl is satisfied by construction: the
// cookie used to resume sibling iteration is the one this function
// saved itself, never one left behind by a recursive descent.
func walkChildren(ctx context.Context, dev kernelfs.Device, m mounter, parent string, altRoot string) error {
	cookie := uint64(0)
	for {
		child, nextCookie, _, err := kernelfs.ListNextDataset(ctx, dev, parent, cookie)
		if errors.Is(err, kernelfs.ErrNoMoreChildren) {
			return nil
		}
		if err != nil {
			return zfserr.New(zfserr.IoError, parent, fmt.Errorf("dataset list next: %w", err))
		}

		if err := walkDataset(ctx, dev, m, child, altRoot); err != nil {
			return err
		}

		cookie = nextCookie
	}
}
