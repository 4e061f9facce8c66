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

	"golang.org/x/sys/unix"

	"github.com/openzfsboot/zfsboot/zfserr"
)

// Sentinel causes for LoadKey, forming the bijection spec.md §4.4/§8.8
// requires: every kernel code maps to exactly one of these.
var (
	ErrKeyPermissionDenied   = errors.New("permission denied")
	ErrKeyInvalidParameters  = errors.New("invalid parameters")
	ErrKeyAlreadyLoaded      = errors.New("key already loaded")
	ErrKeyDatasetBusy        = errors.New("dataset busy")
	ErrKeyIncorrect          = errors.New("incorrect key")
	ErrKeyCryptoNotSupported = errors.New("unsupported encryption suite")
)

// LoadKey hands the unwrapped 32-byte dataset key to the kernel for
// root's encryption root, translating the kernel's raw error code into
// one of the sentinels above (or a KeyError carrying the raw numeric
// code, for anything unrecognized).
func LoadKey(ctx context.Context, dev Device, root string, key32 []byte) error {
	if len(key32) != 32 {
		return zfserr.New(zfserr.KeyError, root, fmt.Errorf("key must be 32 bytes, got %d", len(key32)))
	}
	err := dev.LoadKey(ctx, root, key32)
	if err == nil {
		return nil
	}
	return zfserr.New(zfserr.KeyError, root, classifyKeyError(err))
}

func classifyKeyError(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("unknown error loading key: %v", err)
	}
	switch errno {
	case unix.EPERM:
		return ErrKeyPermissionDenied
	case unix.EINVAL:
		return ErrKeyInvalidParameters
	case unix.EEXIST:
		return ErrKeyAlreadyLoaded
	case unix.EBUSY:
		return ErrKeyDatasetBusy
	case unix.EACCES:
		return ErrKeyIncorrect
	case unix.ENOTSUP:
		return ErrKeyCryptoNotSupported
	default:
		return fmt.Errorf("unknown error loading key (errno %d)", int(errno))
	}
}
