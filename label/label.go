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

// Package label reads and decodes the four redundant vdev labels carried
// on every pool member device: two at the start, two at the end. It
// performs the only concurrency the import engine has — a single
// submit-all/wait-all barrier over the per-device label reads — and
// hands decoded configuration descriptors to package poolconfig.
package label

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/openzfsboot/zfsboot/dirs"
	"github.com/openzfsboot/zfsboot/logger"
	"github.com/openzfsboot/zfsboot/nvlist"
	"github.com/openzfsboot/zfsboot/zfserr"
)

const (
	// LabelSize is the fixed on-disk size of one vdev label.
	LabelSize = 256 << 10
	// PadSize is the unused leading region of a label.
	PadSize = 8 << 10
	// BootEnvSize is the versioned, trailer-checksummed boot environment region.
	BootEnvSize = 8 << 10
	// PhysSize is the region holding the packed configuration descriptor and its trailer.
	PhysSize = 112 << 10
	// UberRingSize is the uberblock ring; not consumed by this engine.
	UberRingSize = 128 << 10

	// TrailerSize is the 8-byte magic plus 256-bit checksum at the end of PhysSize.
	TrailerSize = 40
	// ZecMagic is the trailer's fixed magic number.
	ZecMagic = 0x0210da7ab10c7a11

	// labelsPerDisk is the number of redundant copies per device (two at
	// the start, two at the end).
	labelsPerDisk = 4

	// MinVDevSize rejects devices too small to hold two full labels at
	// each end without overlapping.
	MinVDevSize = 64 << 20
)

// Compile-time assertion that the label's four regions sum to exactly
// LabelSize, mirroring the original source's static_assert.
var _ [0]struct{} = [PadSize + BootEnvSize + PhysSize + UberRingSize - LabelSize]struct{}{}

// Candidate is one decoded, valid label copy: its self-reported
// transaction group and the configuration descriptor it carried.
type Candidate struct {
	Txg  uint64
	Tree *nvlist.List
}

// blockDevice abstracts the open handle so tests can substitute a plain
// file without going near a real block device or O_DIRECT.
type blockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Close() error
}

type fileDevice struct{ f *os.File }

func (d *fileDevice) ReadAt(p []byte, off int64) (int, error) { return d.f.ReadAt(p, off) }
func (d *fileDevice) Close() error                             { return d.f.Close() }

func (d *fileDevice) Size() (int64, error) {
	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	if st.Mode()&os.ModeDevice == 0 {
		return st.Size(), nil
	}
	return blockDeviceSize(d.f)
}

const blkGetSize64 = 0x80081272

func blockDeviceSize(f *os.File) (int64, error) {
	sz, err := unix.IoctlGetUint64(int(f.Fd()), blkGetSize64)
	if err != nil {
		return 0, fmt.Errorf("BLKGETSIZE64 on %s: %w", sysfsBlockDevPath(f), err)
	}
	return int64(sz), nil
}

// sysfsBlockDevPath names f by its major:minor sysfs directory the way the
// original idiom identifies a raw block device in diagnostics, falling back
// to the open path itself when the device's major:minor pair can't be read.
func sysfsBlockDevPath(f *os.File) string {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return f.Name()
	}
	majMin := fmt.Sprintf("%d:%d", unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
	return dirs.SysfsBlockDev(majMin)
}

func openDevice(path string) (blockDevice, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECT|unix.O_CLOEXEC, 0)
	if err == unix.EINVAL {
		fd, err = unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	}
	if err != nil {
		return nil, zfserr.New(zfserr.IoError, path, fmt.Errorf("open: %w", err))
	}
	return &fileDevice{f: os.NewFile(uintptr(fd), path)}, nil
}

// ReadLabels opens path, reads its four label copies in a single
// submit-all/wait-all barrier, validates each and decodes its
// configuration descriptor. The result may have fewer than four entries
// if some copies are invalid (bad magic, or checksum when enabled); it
// is never an error for a copy to be invalid, only for the device itself
// to be unreadable.
func ReadLabels(ctx context.Context, path string, opts ...Option) ([]Candidate, error) {
	cfg := options{}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.bucket != nil {
		cfg.bucket.Wait(1)
	}

	dev, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	size, err := dev.Size()
	if err != nil {
		return nil, zfserr.New(zfserr.IoError, path, fmt.Errorf("size: %w", err))
	}
	size -= size % LabelSize
	if size < MinVDevSize {
		return nil, zfserr.New(zfserr.FormatError, path, fmt.Errorf("device too small (%d bytes)", size))
	}

	headBuf := make([]byte, 2*LabelSize)
	tailBuf := make([]byte, 2*LabelSize)
	tailOff := size - 2*LabelSize

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := dev.ReadAt(headBuf, 0)
		if err != nil {
			return zfserr.New(zfserr.IoError, path, fmt.Errorf("read head labels: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		_, err := dev.ReadAt(tailBuf, tailOff)
		if err != nil {
			return zfserr.New(zfserr.IoError, path, fmt.Errorf("read tail labels: %w", err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	for i, raw := range [][]byte{
		headBuf[0:LabelSize],
		headBuf[LabelSize : 2*LabelSize],
		tailBuf[0:LabelSize],
		tailBuf[LabelSize : 2*LabelSize],
	} {
		cand, ok, err := decodeLabel(raw, cfg.verifyChecksum)
		if err != nil {
			logger.Warningf("label %d of %s: %v", i, path, err)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func decodeLabel(raw []byte, verifyChecksum bool) (Candidate, bool, error) {
	if len(raw) != LabelSize {
		return Candidate{}, false, fmt.Errorf("short label buffer")
	}
	phys := raw[PadSize+BootEnvSize : PadSize+BootEnvSize+PhysSize]
	trailer := phys[len(phys)-TrailerSize:]
	magic := binary.LittleEndian.Uint64(trailer[0:8])
	if magic != ZecMagic {
		return Candidate{}, false, nil
	}
	if verifyChecksum {
		sum := fletcher4(phys[:len(phys)-TrailerSize])
		if !checksumEqual(sum, trailer[8:40]) {
			return Candidate{}, false, fmt.Errorf("checksum mismatch")
		}
	}
	tree, err := nvlist.Unpack(phys[:len(phys)-TrailerSize])
	if err != nil {
		return Candidate{}, false, fmt.Errorf("unpack: %w", err)
	}
	txg, _ := tree.GetU64("pool_txg")
	return Candidate{Txg: txg, Tree: tree}, true, nil
}

// ComputeChecksum computes the trailer's running-accumulator checksum
// over the bytes preceding it, the same incremental-sum family real ZFS
// trailers use (four cascaded running sums: a sums the 64-bit words, b
// sums a, c sums b, d sums c). Exported so
// fixture-building tests and any future label-writing tool can produce a
// trailer this package's own verification will accept.
func ComputeChecksum(data []byte) [32]byte {
	return fletcher4(data)
}

func fletcher4(data []byte) [32]byte {
	var a, b, cAcc, d uint64
	for i := 0; i+8 <= len(data); i += 8 {
		w := binary.LittleEndian.Uint64(data[i : i+8])
		a += w
		b += a
		cAcc += b
		d += cAcc
	}
	var out [32]byte
	binary.LittleEndian.PutUint64(out[0:8], a)
	binary.LittleEndian.PutUint64(out[8:16], b)
	binary.LittleEndian.PutUint64(out[16:24], cAcc)
	binary.LittleEndian.PutUint64(out[24:32], d)
	return out
}

func checksumEqual(a [32]byte, b []byte) bool {
	if len(b) != 32 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
