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

package importer_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/openzfsboot/zfsboot/dirs"
	"github.com/openzfsboot/zfsboot/importer"
	"github.com/openzfsboot/zfsboot/kernelfs"
	"github.com/openzfsboot/zfsboot/label"
	"github.com/openzfsboot/zfsboot/nvlist"
)

func Test(t *testing.T) { TestingT(t) }

type ImporterSuite struct{}

var _ = Suite(&ImporterSuite{})

func buildLabel(c *C, tree *nvlist.List) []byte {
	buf := make([]byte, label.LabelSize)
	packed, err := tree.PackNative()
	c.Assert(err, IsNil)
	physOff := label.PadSize + label.BootEnvSize
	c.Assert(len(packed) <= label.PhysSize-label.TrailerSize, Equals, true)
	copy(buf[physOff:], packed)

	trailerOff := physOff + label.PhysSize - label.TrailerSize
	binary.LittleEndian.PutUint64(buf[trailerOff:trailerOff+8], label.ZecMagic)
	sum := label.ComputeChecksum(buf[physOff:trailerOff])
	copy(buf[trailerOff+8:trailerOff+40], sum[:])
	return buf
}

func buildDevice(c *C, name string, tree *nvlist.List) string {
	path := filepath.Join(c.MkDir(), name)
	raw := buildLabel(c, tree)
	size := int64(label.MinVDevSize)
	data := make([]byte, size)
	for _, off := range []int64{0, label.LabelSize, size - 2*label.LabelSize, size - label.LabelSize} {
		copy(data[off:off+label.LabelSize], raw)
	}
	c.Assert(os.WriteFile(path, data, 0644), IsNil)
	return path
}

func vdevTree(txg, id, guid uint64) *nvlist.List {
	l := nvlist.New()
	l.SetU64("pool_txg", txg)
	l.SetString("name", "tank")
	l.SetU64("pool_guid", 0xabc)
	l.SetU64("version", 5000)
	l.SetU64("state", 0)
	l.SetU64("vdev_children", 1)
	vt := nvlist.New()
	vt.SetU64("id", id)
	vt.SetU64("guid", guid)
	vt.SetString("type", "disk")
	l.SetChild("vdev_tree", vt)
	return l
}

type fakeDevice struct {
	triedImport     bool
	committedImport bool
	loadedKeyRoot   string
	props           map[string]*nvlist.List
	children        map[string][]string
}

func (f *fakeDevice) PoolTryImport(ctx context.Context, in []byte, outCap uint64) ([]byte, error) {
	f.triedImport = true
	descriptor, err := nvlist.Unpack(in)
	if err != nil {
		return nil, err
	}
	loadInfo := nvlist.New()
	loadInfo.SetU64("mmp_state", 1) // INACTIVE
	descriptor.SetChild("load_info", loadInfo)
	return descriptor.PackNative()
}

func (f *fakeDevice) PoolImport(ctx context.Context, name string, guid uint64, in []byte, outCap uint64) ([]byte, error) {
	f.committedImport = true
	return in, nil
}

func (f *fakeDevice) DatasetListNext(ctx context.Context, parent string, cookie uint64, outCap uint64) (string, uint64, []byte, error) {
	kids := f.children[parent]
	if cookie >= uint64(len(kids)) {
		return "", 0, nil, kernelfs.ErrNoMoreChildren
	}
	return kids[cookie], cookie + 1, nil, nil
}

func (f *fakeDevice) ObjsetStats(ctx context.Context, name string, outCap uint64) ([]byte, error) {
	props, ok := f.props[name]
	if !ok {
		props = nvlist.New()
	}
	return props.PackNative()
}

func (f *fakeDevice) LoadKey(ctx context.Context, root string, key []byte) error {
	f.loadedKeyRoot = root
	return nil
}

func (f *fakeDevice) Close() error { return nil }

type fakeMounter struct{ mounted []string }

func (m *fakeMounter) Mount(source, target string) error {
	m.mounted = append(m.mounted, source+"->"+target)
	return nil
}

func (s *ImporterSuite) SetUpTest(c *C) {
	dirs.SetRootDir(c.MkDir())
	hostIDPath := dirs.HostIDPath()
	c.Assert(os.MkdirAll(filepath.Dir(hostIDPath), 0755), IsNil)
	c.Assert(os.WriteFile(hostIDPath, []byte("deadbeef\n"), 0644), IsNil)
}

func (s *ImporterSuite) TearDownTest(c *C) {
	dirs.SetRootDir("/")
}

func (s *ImporterSuite) TestRunImportsAndMountsTree(c *C) {
	vdevPath := buildDevice(c, "vdev0", vdevTree(100, 0, 1))

	mpRoot := nvlist.New()
	mpVal := nvlist.New()
	mpVal.SetString("value", "/mnt/tank")
	mpVal.SetU64("source", 2) // LOCAL
	mpRoot.SetChild("mountpoint", mpVal)

	dev := &fakeDevice{
		props:    map[string]*nvlist.List{"tank": mpRoot},
		children: map[string][]string{"tank": nil},
	}
	mnt := &fakeMounter{}
	altRoot := c.MkDir()

	p := importer.Params{
		PoolName:       "tank",
		PoolGUID:       0xabc,
		Vdevs:          []string{vdevPath},
		EncryptionRoot: "tank",
		DatasetKey:     [32]byte{1, 2, 3},
		AltRoot:        altRoot,
	}

	err := importer.Run(context.Background(), dev, mnt, p)
	c.Assert(err, IsNil)
	c.Assert(dev.triedImport, Equals, true)
	c.Assert(dev.committedImport, Equals, true)
	c.Assert(dev.loadedKeyRoot, Equals, "tank")
	c.Assert(mnt.mounted, DeepEquals, []string{"tank->" + filepath.Join(altRoot, "/mnt/tank")})
}

func (s *ImporterSuite) TestRunFailsWithNoVdevs(c *C) {
	err := importer.Run(context.Background(), &fakeDevice{}, &fakeMounter{}, importer.Params{PoolName: "tank"})
	c.Assert(err, ErrorMatches, ".*no vdevs given.*")
}

func (s *ImporterSuite) TestRunFailsOnHostIDMismatch(c *C) {
	vdevPath := buildDevice(c, "vdev0", vdevTree(100, 0, 1))

	dev := &fakeStaleHostIDDevice{fakeDevice: fakeDevice{props: map[string]*nvlist.List{}, children: map[string][]string{}}}

	p := importer.Params{
		PoolName: "tank",
		PoolGUID: 0xabc,
		Vdevs:    []string{vdevPath},
	}
	err := importer.Run(context.Background(), dev, &fakeMounter{}, p)
	c.Assert(err, ErrorMatches, ".*hostid.*")
	c.Assert(dev.committedImport, Equals, false)
}

// fakeStaleHostIDDevice reports state=EXPORTED with a load_info hostid
// that never matches the fixture's /proc hostid, exercising S3.
type fakeStaleHostIDDevice struct{ fakeDevice }

func (f *fakeStaleHostIDDevice) PoolTryImport(ctx context.Context, in []byte, outCap uint64) ([]byte, error) {
	descriptor, err := nvlist.Unpack(in)
	if err != nil {
		return nil, err
	}
	descriptor.SetU64("state", 1) // EXPORTED
	loadInfo := nvlist.New()
	loadInfo.SetU64("hostid", 0x1) // never matches the fixture's local hostid (deadbeef)
	loadInfo.SetU64("mmp_state", 1)
	descriptor.SetChild("load_info", loadInfo)
	return descriptor.PackNative()
}
