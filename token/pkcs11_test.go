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
	"strings"
	"testing"

	"github.com/miekg/pkcs11"
	. "gopkg.in/check.v1"

	"github.com/openzfsboot/zfsboot/pinentry"
	"github.com/openzfsboot/zfsboot/testutil"
	"github.com/openzfsboot/zfsboot/token"
)

func Test(t *testing.T) { TestingT(t) }

// fakePKCS11Ctx is a fake token session standing in for a real dlopen'd
// PKCS#11 module: enough of *pkcs11.Ctx's method set to drive
// PKCS11Backend.AcquireKEK's slot/login/find/derive sequence.
type fakePKCS11Ctx struct {
	slots    []uint
	kek      []byte
	loggedIn string
}

func (f *fakePKCS11Ctx) Initialize() error { return nil }
func (f *fakePKCS11Ctx) Destroy()          {}
func (f *fakePKCS11Ctx) Finalize() error   { return nil }

func (f *fakePKCS11Ctx) GetSlotList(tokenPresent bool) ([]uint, error) { return f.slots, nil }

func (f *fakePKCS11Ctx) OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error) {
	return pkcs11.SessionHandle(1), nil
}
func (f *fakePKCS11Ctx) CloseSession(sh pkcs11.SessionHandle) error { return nil }

func (f *fakePKCS11Ctx) Login(sh pkcs11.SessionHandle, userType uint, pin string) error {
	f.loggedIn = pin
	return nil
}
func (f *fakePKCS11Ctx) Logout(sh pkcs11.SessionHandle) error { return nil }

func (f *fakePKCS11Ctx) FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error {
	return nil
}
func (f *fakePKCS11Ctx) FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error) {
	return []pkcs11.ObjectHandle{1}, false, nil
}
func (f *fakePKCS11Ctx) FindObjectsFinal(sh pkcs11.SessionHandle) error { return nil }

func (f *fakePKCS11Ctx) DeriveKey(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle, t []*pkcs11.Attribute) (pkcs11.ObjectHandle, error) {
	return pkcs11.ObjectHandle(2), nil
}

func (f *fakePKCS11Ctx) GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	return []*pkcs11.Attribute{pkcs11.NewAttribute(pkcs11.CKA_VALUE, f.kek)}, nil
}

type PKCS11Suite struct {
	testutil.BaseTest
}

var _ = Suite(&PKCS11Suite{})

func (s *PKCS11Suite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
}

func wantKEK() []byte {
	kek := make([]byte, token.KEKSize)
	for i := range kek {
		kek[i] = byte(i + 1)
	}
	return kek
}

func (s *PKCS11Suite) TestAcquireKEKWithExplicitPIN(c *C) {
	fake := &fakePKCS11Ctx{slots: []uint{7}, kek: wantKEK()}
	s.AddCleanup(token.MockNewPKCS11Ctx(func(path string) token.PKCS11Ctx {
		c.Assert(path, Equals, "/usr/lib/mod.so")
		return fake
	}))

	b := &token.PKCS11Backend{ModulePath: "/usr/lib/mod.so", KeyID: 1, PIN: "839201"}
	kek, err := b.AcquireKEK(context.Background())
	c.Assert(err, IsNil)
	c.Assert(kek[:], DeepEquals, wantKEK())
	c.Assert(fake.loggedIn, Equals, "839201")
}

func (s *PKCS11Suite) TestAcquireKEKFallsBackToPinentry(c *C) {
	fake := &fakePKCS11Ctx{slots: []uint{7}, kek: wantKEK()}
	s.AddCleanup(token.MockNewPKCS11Ctx(func(path string) token.PKCS11Ctx { return fake }))
	s.AddCleanup(pinentry.MockReader(strings.NewReader("839201\n")))

	b := &token.PKCS11Backend{ModulePath: "/usr/lib/mod.so", KeyID: 1}
	kek, err := b.AcquireKEK(context.Background())
	c.Assert(err, IsNil)
	c.Assert(kek[:], DeepEquals, wantKEK())
	c.Assert(fake.loggedIn, Equals, "839201")
}

func (s *PKCS11Suite) TestAcquireKEKRejectsMissingModule(c *C) {
	s.AddCleanup(token.MockNewPKCS11Ctx(func(path string) token.PKCS11Ctx { return nil }))

	b := &token.PKCS11Backend{ModulePath: "/nonexistent.so", KeyID: 1, PIN: "839201"}
	_, err := b.AcquireKEK(context.Background())
	c.Assert(err, ErrorMatches, ".*failed to load pkcs11 module.*")
}

func (s *PKCS11Suite) TestAcquireKEKRejectsWrongSlotCount(c *C) {
	fake := &fakePKCS11Ctx{slots: []uint{1, 2}, kek: wantKEK()}
	s.AddCleanup(token.MockNewPKCS11Ctx(func(path string) token.PKCS11Ctx { return fake }))

	b := &token.PKCS11Backend{ModulePath: "/usr/lib/mod.so", KeyID: 1, PIN: "839201"}
	_, err := b.AcquireKEK(context.Background())
	c.Assert(err, ErrorMatches, ".*expected exactly one token-present slot.*")
}

func (s *PKCS11Suite) TestAcquireKEKRejectsNoSlots(c *C) {
	fake := &fakePKCS11Ctx{slots: nil, kek: wantKEK()}
	s.AddCleanup(token.MockNewPKCS11Ctx(func(path string) token.PKCS11Ctx { return fake }))

	b := &token.PKCS11Backend{ModulePath: "/usr/lib/mod.so", KeyID: 1, PIN: "839201"}
	_, err := b.AcquireKEK(context.Background())
	c.Assert(err, ErrorMatches, ".*expected exactly one token-present slot.*")
}
