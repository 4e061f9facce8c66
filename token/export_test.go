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
	tcglog "github.com/canonical/tcglog-parser"
	"github.com/snapcore/secboot"
)

// Exported for tests, mirroring the teacher's own
// cmd/snap-bootstrap/bootstrap/export_test.go Mock*/restore idiom for the
// same secboot call set.

func MockSecbootConnectToDefaultTPM(f func() (*secboot.TPMConnection, error)) (restore func()) {
	old := secbootConnectToDefaultTPM
	secbootConnectToDefaultTPM = f
	return func() { secbootConnectToDefaultTPM = old }
}

func MockSecbootProvisionTPM(f func(tpm *secboot.TPMConnection, mode secboot.ProvisionMode, newLockoutAuth []byte) error) (restore func()) {
	old := secbootProvisionTPM
	secbootProvisionTPM = f
	return func() { secbootProvisionTPM = old }
}

func MockSecbootAddEFISecureBootPolicyProfile(f func(profile *secboot.PCRProtectionProfile, params *secboot.EFISecureBootPolicyProfileParams) error) (restore func()) {
	old := secbootAddEFISecureBootPolicyProfile
	secbootAddEFISecureBootPolicyProfile = f
	return func() { secbootAddEFISecureBootPolicyProfile = old }
}

func MockSecbootAddSystemdEFIStubProfile(f func(profile *secboot.PCRProtectionProfile, params *secboot.SystemdEFIStubProfileParams) error) (restore func()) {
	old := secbootAddSystemdEFIStubProfile
	secbootAddSystemdEFIStubProfile = f
	return func() { secbootAddSystemdEFIStubProfile = old }
}

func MockSecbootSealKeyToTPM(f func(tpm *secboot.TPMConnection, key []byte, keyPath, policyUpdatePath string, params *secboot.KeyCreationParams) error) (restore func()) {
	old := secbootSealKeyToTPM
	secbootSealKeyToTPM = f
	return func() { secbootSealKeyToTPM = old }
}

func MockSecbootUnsealKeyFromTPM(f func(tpm *secboot.TPMConnection, keyPath, pin string) ([]byte, error)) (restore func()) {
	old := secbootUnsealKeyFromTPM
	secbootUnsealKeyFromTPM = f
	return func() { secbootUnsealKeyFromTPM = old }
}

// MockEventLog substitutes the TPM event log reader Provision consults
// diagnostically, so tests never touch /sys/kernel/security/tpm0.
func MockEventLog(f func() (*tcglog.Log, error)) (restore func()) {
	old := eventLogFn
	eventLogFn = f
	return func() { eventLogFn = old }
}

// MockSecureBootEnabled substitutes the EFI SecureBoot variable read
// Provision gates on.
func MockSecureBootEnabled(f func() (bool, error)) (restore func()) {
	old := secureBootEnabledFn
	secureBootEnabledFn = f
	return func() { secureBootEnabledFn = old }
}

// PKCS11Ctx is exported so a fake token session built in tests can be
// passed through MockNewPKCS11Ctx without depending on a real module.
type PKCS11Ctx = pkcs11Ctx

// MockNewPKCS11Ctx substitutes the PKCS#11 module opener AcquireKEK calls,
// letting tests drive the slot/login/derive sequence against a fake
// session instead of dlopen-ing a real module.
func MockNewPKCS11Ctx(f func(path string) PKCS11Ctx) (restore func()) {
	old := newPKCS11Ctx
	newPKCS11Ctx = f
	return func() { newPKCS11Ctx = old }
}
