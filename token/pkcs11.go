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

package token

import (
	"context"
	"fmt"

	"github.com/miekg/pkcs11"

	"github.com/openzfsboot/zfsboot/logger"
	"github.com/openzfsboot/zfsboot/pinentry"
)

// pkcs11Ctx is the slice of *pkcs11.Ctx's method set AcquireKEK drives;
// *pkcs11.Ctx satisfies it without any wrapping. Factored out, in the
// teacher's Mock*-returns-restore idiom, so tests can swap in a fake
// token session instead of dlopen-ing a real PKCS#11 module.
type pkcs11Ctx interface {
	Initialize() error
	Destroy()
	Finalize() error
	GetSlotList(tokenPresent bool) ([]uint, error)
	OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error)
	CloseSession(sh pkcs11.SessionHandle) error
	Login(sh pkcs11.SessionHandle, userType uint, pin string) error
	Logout(sh pkcs11.SessionHandle) error
	FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error
	FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error)
	FindObjectsFinal(sh pkcs11.SessionHandle) error
	DeriveKey(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle, t []*pkcs11.Attribute) (pkcs11.ObjectHandle, error)
	GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error)
}

// newPKCS11Ctx opens the PKCS#11 module at path, returning nil if the
// module can't be loaded -- the same failure mode pkcs11.New itself
// reports. A mockable var so tests can substitute a fake session without
// a real token or module file present.
var newPKCS11Ctx = func(path string) pkcs11Ctx {
	p := pkcs11.New(path)
	if p == nil {
		return nil
	}
	return p
}

// PKCS11Backend logs into a single PKCS#11 slot, locates the EC keypair
// identified by KeyID and performs an ECDH1 derive against the
// compiled-in public point to recover the KEK -- the Go shape of
// YK_Login/YK_LoadPEM/YK_LoadKEK in loadkey.c.
type PKCS11Backend struct {
	// ModulePath is the PKCS#11 module (e.g. a YubiKey's ykcs11.so)
	// to load.
	ModulePath string
	// KeyID is the CKA_ID byte identifying the EC keypair on the token.
	KeyID byte
	// PublicPoint is the 65-byte uncompressed EC point compiled into
	// the launcher binary (spec.md §6's "PEM").
	PublicPoint []byte

	// PIN supplies the PIN directly, bypassing pinentry -- used by
	// tests and by the launcher's --pin flag. Production builds
	// leave this empty so AcquireKEK prompts interactively.
	PIN string
}

// AcquireKEK implements Backend.
func (b *PKCS11Backend) AcquireKEK(ctx context.Context) ([KEKSize]byte, error) {
	var kek [KEKSize]byte

	p := newPKCS11Ctx(b.ModulePath)
	if p == nil {
		return kek, fmt.Errorf("token: failed to load pkcs11 module %s", b.ModulePath)
	}
	if err := p.Initialize(); err != nil {
		return kek, fmt.Errorf("token: initialize: %w", err)
	}
	defer p.Destroy()
	defer p.Finalize()

	slots, err := p.GetSlotList(true)
	if err != nil {
		return kek, fmt.Errorf("token: get slot list: %w", err)
	}
	if len(slots) != 1 {
		return kek, fmt.Errorf("token: expected exactly one token-present slot, found %d", len(slots))
	}

	session, err := p.OpenSession(slots[0], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return kek, fmt.Errorf("token: open session: %w", err)
	}
	defer p.CloseSession(session)

	pin := b.PIN
	if pin == "" {
		pin, err = pinentry.ReadPIN(ctx, "Enter smartcard PIN (6-8 digits): ")
		if err != nil {
			return kek, fmt.Errorf("token: read pin: %w", err)
		}
	}
	if err := p.Login(session, pkcs11.CKU_USER, pin); err != nil {
		return kek, fmt.Errorf("token: login: %w", err)
	}
	defer p.Logout(session)

	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte{b.KeyID}),
	}
	if err := p.FindObjectsInit(session, privTemplate); err != nil {
		return kek, fmt.Errorf("token: find private key init: %w", err)
	}
	handles, _, err := p.FindObjects(session, 1)
	p.FindObjectsFinal(session)
	if err != nil {
		return kek, fmt.Errorf("token: find private key: %w", err)
	}
	if len(handles) != 1 {
		return kek, fmt.Errorf("token: private key for id %d not found", b.KeyID)
	}
	privHandle := handles[0]

	mech := []*pkcs11.Mechanism{
		pkcs11.NewMechanism(pkcs11.CKM_ECDH1_DERIVE, &pkcs11.ECDH1DeriveParams{
			KDF:      pkcs11.CKD_NULL,
			PublicKeyData: b.PublicPoint,
		}),
	}
	derivedTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_GENERIC_SECRET),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE_LEN, KEKSize),
	}
	derived, err := p.DeriveKey(session, mech, privHandle, derivedTemplate)
	if err != nil {
		return kek, fmt.Errorf("token: derive kek: %w", err)
	}

	attrs, err := p.GetAttributeValue(session, derived, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
	})
	if err != nil {
		return kek, fmt.Errorf("token: extract kek: %w", err)
	}
	if len(attrs) != 1 || len(attrs[0].Value) != KEKSize {
		return kek, fmt.Errorf("token: derived kek has unexpected length")
	}
	copy(kek[:], attrs[0].Value)

	logger.Noticef("token: kek derived from pkcs11 key slot %d", b.KeyID)
	return kek, nil
}
