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

package token_test

import (
	"context"
	"io/ioutil"
	"path/filepath"

	"github.com/canonical/go-tpm2"
	tcglog "github.com/canonical/tcglog-parser"
	"github.com/snapcore/secboot"
	. "gopkg.in/check.v1"

	"github.com/openzfsboot/zfsboot/testutil"
	"github.com/openzfsboot/zfsboot/token"
)

// TPMSuite exercises TPMBackend.Provision/Seal/AcquireKEK against the
// mockable secboot indirections, the same shape as the teacher's
// cmd/snap-bootstrap/bootstrap TestProvision/TestSeal.
type TPMSuite struct {
	testutil.BaseTest
}

var _ = Suite(&TPMSuite{})

func (s *TPMSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	s.AddCleanup(token.MockSecureBootEnabled(func() (bool, error) { return true, nil }))
	s.AddCleanup(token.MockEventLog(func() (*tcglog.Log, error) { return &tcglog.Log{}, nil }))
}

func (s *TPMSuite) TestProvision(c *C) {
	n := 0
	restoreConnect := token.MockSecbootConnectToDefaultTPM(func() (*secboot.TPMConnection, error) {
		return &secboot.TPMConnection{}, nil
	})
	defer restoreConnect()

	restore := token.MockSecbootProvisionTPM(func(tpm *secboot.TPMConnection, mode secboot.ProvisionMode, newLockoutAuth []byte) error {
		c.Assert(mode, Equals, secboot.ProvisionModeFull)
		n++
		return nil
	})
	defer restore()

	b := &token.TPMBackend{}
	c.Assert(b.Provision(), IsNil)
	c.Assert(n, Equals, 1)
}

func (s *TPMSuite) TestProvisionRefusesWithoutSecureBoot(c *C) {
	restore := token.MockSecureBootEnabled(func() (bool, error) { return false, nil })
	defer restore()

	b := &token.TPMBackend{}
	err := b.Provision()
	c.Assert(err, ErrorMatches, ".*secure boot is disabled.*")
}

func (s *TPMSuite) TestSeal(c *C) {
	n := 0
	myKey := []byte("0123456789abcdef0123456789abcdef")
	myKeyPath := "keyFilename"
	myPolicyUpdatePath := "policyUpdateFilename"

	dir := c.MkDir()
	shimFile := filepath.Join(dir, "shim")
	c.Assert(ioutil.WriteFile(shimFile, nil, 0644), IsNil)
	grubFile := filepath.Join(dir, "grub")
	c.Assert(ioutil.WriteFile(grubFile, nil, 0644), IsNil)
	kernelFile := filepath.Join(dir, "kernel")
	c.Assert(ioutil.WriteFile(kernelFile, nil, 0644), IsNil)

	b := &token.TPMBackend{}
	c.Assert(b.SetShimFile(shimFile), IsNil)
	c.Assert(b.SetBootloaderFile(grubFile), IsNil)
	c.Assert(b.SetKernelFile(kernelFile), IsNil)

	restoreConnect := token.MockSecbootConnectToDefaultTPM(func() (*secboot.TPMConnection, error) {
		return &secboot.TPMConnection{}, nil
	})
	defer restoreConnect()

	restoreSB := token.MockSecbootAddEFISecureBootPolicyProfile(func(profile *secboot.PCRProtectionProfile, params *secboot.EFISecureBootPolicyProfileParams) error {
		c.Assert(len(params.LoadSequences), Equals, 1)
		c.Assert(params.LoadSequences[0].Image, Equals, secboot.FileEFIImage(shimFile))
		return nil
	})
	defer restoreSB()

	restoreStub := token.MockSecbootAddSystemdEFIStubProfile(func(profile *secboot.PCRProtectionProfile, params *secboot.SystemdEFIStubProfileParams) error {
		c.Assert(params.KernelCmdlines, DeepEquals, token.KernelCmdlines)
		return nil
	})
	defer restoreStub()

	restoreSeal := token.MockSecbootSealKeyToTPM(func(tpm *secboot.TPMConnection, key []byte, keyPath, policyUpdatePath string, params *secboot.KeyCreationParams) error {
		c.Assert(key, DeepEquals, myKey)
		c.Assert(keyPath, Equals, myKeyPath)
		c.Assert(policyUpdatePath, Equals, myPolicyUpdatePath)
		c.Assert(params.PINHandle, Equals, tpm2.Handle(0x01800000))
		n++
		return nil
	})
	defer restoreSeal()

	c.Assert(b.Seal(myKey, myKeyPath, myPolicyUpdatePath), IsNil)
	c.Assert(n, Equals, 1)
}

func (s *TPMSuite) TestAcquireKEKUnsealsStoredKey(c *C) {
	wantKey := make([]byte, token.KEKSize)
	for i := range wantKey {
		wantKey[i] = byte(i)
	}

	restoreConnect := token.MockSecbootConnectToDefaultTPM(func() (*secboot.TPMConnection, error) {
		return &secboot.TPMConnection{}, nil
	})
	defer restoreConnect()

	restoreUnseal := token.MockSecbootUnsealKeyFromTPM(func(tpm *secboot.TPMConnection, keyPath, pin string) ([]byte, error) {
		c.Assert(keyPath, Equals, "sealed-key-path")
		return wantKey, nil
	})
	defer restoreUnseal()

	b := &token.TPMBackend{KeyPath: "sealed-key-path"}
	kek, err := b.AcquireKEK(context.Background())
	c.Assert(err, IsNil)
	c.Assert(kek[:], DeepEquals, wantKey)
}

func (s *TPMSuite) TestAcquireKEKRejectsWrongLength(c *C) {
	restoreConnect := token.MockSecbootConnectToDefaultTPM(func() (*secboot.TPMConnection, error) {
		return &secboot.TPMConnection{}, nil
	})
	defer restoreConnect()

	restoreUnseal := token.MockSecbootUnsealKeyFromTPM(func(tpm *secboot.TPMConnection, keyPath, pin string) ([]byte, error) {
		return []byte("too short"), nil
	})
	defer restoreUnseal()

	b := &token.TPMBackend{KeyPath: "sealed-key-path"}
	_, err := b.AcquireKEK(context.Background())
	c.Assert(err, ErrorMatches, ".*unexpected length.*")
}
