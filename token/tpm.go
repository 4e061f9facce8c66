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
	"os"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
	"github.com/snapcore/secboot"

	"github.com/openzfsboot/zfsboot/logger"
)

// KernelCmdlines is the set of kernel command lines the systemd-stub PCR
// profile is measured against, mirroring how the teacher's own
// bootstrap.TPMSupport pins PCR 12 to the exact cmdlines a verified boot
// is allowed to have used.
var KernelCmdlines = []string{}

// mockable indirections, in the teacher's Mock*-returns-restore idiom
// (bootstrap.MockSecbootProvisionTPM and friends).
var (
	secbootConnectToDefaultTPM           = secboot.ConnectToDefaultTPM
	secbootProvisionTPM                  = secboot.ProvisionTPM
	secbootAddEFISecureBootPolicyProfile = secboot.AddEFISecureBootPolicyProfile
	secbootAddSystemdEFIStubProfile      = secboot.AddSystemdEFIStubProfile
	secbootSealKeyToTPM                  = secboot.SealKeyToTPM
	secbootUnsealKeyFromTPM              = secboot.UnsealKeyFromTPM
	eventLogFn                           = eventLog
	secureBootEnabledFn                  = secureBootEnabled
)

// TPMBackend releases a KEK from a TPM-sealed object instead of a
// smartcard ECDH derive: provision the TPM once, seal a PCR-bound key at
// keysetup time, and unseal it at boot after checking the current EFI
// secure-boot and systemd-stub measurements match.
type TPMBackend struct {
	ShimFile, BootloaderFile, KernelFile string
	KeyPath, PolicyUpdatePath            string
}

// SetShimFile records the shim binary the EFI secure-boot PCR profile
// measures, failing fast if it does not exist -- same precondition the
// teacher's TPMSupport.SetShimFile enforces.
func (t *TPMBackend) SetShimFile(path string) error { return setExistingFile(&t.ShimFile, path) }

// SetBootloaderFile records the bootloader (grub/shim-chained) binary.
func (t *TPMBackend) SetBootloaderFile(path string) error {
	return setExistingFile(&t.BootloaderFile, path)
}

// SetKernelFile records the kernel/kernel.efi image.
func (t *TPMBackend) SetKernelFile(path string) error { return setExistingFile(&t.KernelFile, path) }

func setExistingFile(dst *string, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist", path)
	}
	*dst = path
	return nil
}

// Provision connects to the TPM and performs a full provision, the same
// single call TPMSupport.Provision makes.
func (t *TPMBackend) Provision() error {
	enabled, err := secureBootEnabledFn()
	if err != nil {
		logger.Warningf("token: could not determine secure boot state: %v", err)
	} else if !enabled {
		return fmt.Errorf("token: refusing to provision tpm: secure boot is disabled")
	}

	if log, err := eventLogFn(); err != nil {
		logger.Warningf("token: could not read tpm event log before provisioning: %v", err)
	} else {
		logger.Noticef("token: tpm event log has %d events prior to provisioning", len(log.Events))
	}

	tpm, err := secbootConnectToDefaultTPM()
	if err != nil {
		return fmt.Errorf("token: connect to tpm: %w", err)
	}
	defer tpm.Close()
	return secbootProvisionTPM(tpm, secboot.ProvisionModeFull, nil)
}

func (t *TPMBackend) pcrProfile() (*secboot.PCRProtectionProfile, error) {
	profile := secboot.NewPCRProtectionProfile()
	if err := secbootAddEFISecureBootPolicyProfile(profile, &secboot.EFISecureBootPolicyProfileParams{
		PCRAlgorithm: tpm2.HashAlgorithmSHA256,
		LoadSequences: []*secboot.EFIImageLoadEvent{
			{
				Source: secboot.Firmware,
				Image:  secboot.FileEFIImage(t.ShimFile),
				Next: []*secboot.EFIImageLoadEvent{
					{
						Source: secboot.Shim,
						Image:  secboot.FileEFIImage(t.BootloaderFile),
						Next: []*secboot.EFIImageLoadEvent{
							{
								Source: secboot.Shim,
								Image:  secboot.FileEFIImage(t.KernelFile),
							},
						},
					},
				},
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("token: efi secure boot profile: %w", err)
	}

	if err := secbootAddSystemdEFIStubProfile(profile, &secboot.SystemdEFIStubProfileParams{
		PCRAlgorithm:   tpm2.HashAlgorithmSHA256,
		PCRIndex:       12,
		KernelCmdlines: KernelCmdlines,
	}); err != nil {
		return nil, fmt.Errorf("token: systemd stub profile: %w", err)
	}
	return profile, nil
}

// Seal wraps key under the PCR profile computed from the shim/bootloader
// /kernel files set via Set*File, writing the sealed key object and its
// policy-update data to KeyPath/PolicyUpdatePath.
func (t *TPMBackend) Seal(key []byte, keyPath, policyUpdatePath string) error {
	profile, err := t.pcrProfile()
	if err != nil {
		return err
	}
	tpm, err := secbootConnectToDefaultTPM()
	if err != nil {
		return fmt.Errorf("token: connect to tpm: %w", err)
	}
	defer tpm.Close()

	if err := secbootSealKeyToTPM(tpm, key, keyPath, policyUpdatePath, &secboot.KeyCreationParams{
		PCRProfile: profile,
		PINHandle:  0x01800000,
	}); err != nil {
		return fmt.Errorf("token: seal key to tpm: %w", err)
	}
	t.KeyPath, t.PolicyUpdatePath = keyPath, policyUpdatePath
	return nil
}

// AcquireKEK unseals the KEK previously sealed by Seal, implementing
// Backend against the TPM-rooted path rather than the smartcard path.
func (t *TPMBackend) AcquireKEK(ctx context.Context) ([KEKSize]byte, error) {
	var kek [KEKSize]byte

	tpm, err := secbootConnectToDefaultTPM()
	if err != nil {
		return kek, fmt.Errorf("token: connect to tpm: %w", err)
	}
	defer tpm.Close()

	key, err := secbootUnsealKeyFromTPM(tpm, t.KeyPath, "")
	if err != nil {
		return kek, fmt.Errorf("token: unseal key: %w", err)
	}
	if len(key) != KEKSize {
		return kek, fmt.Errorf("token: unsealed key has unexpected length %d", len(key))
	}
	copy(kek[:], key)

	logger.Noticef("token: kek unsealed from tpm-protected object %s", t.KeyPath)
	return kek, nil
}

// eventLog reads and parses the TCG boot event log, logged diagnostically
// by Provision before it reseals anything; this engine's Non-goals exclude
// resealing, so the parsed log is not otherwise consulted.
func eventLog() (*tcglog.Log, error) {
	f, err := os.Open("/sys/kernel/security/tpm0/binary_bios_measurements")
	if err != nil {
		return nil, fmt.Errorf("token: open tpm event log: %w", err)
	}
	defer f.Close()
	return tcglog.ParseLog(f, &tcglog.LogOptions{})
}

// secureBootEnabled reads the firmware's SecureBoot efivar, refusing to
// Provision on a machine where secure boot is off -- a sealed key backed
// by an EFI secure-boot PCR profile is meaningless without it.
func secureBootEnabled() (bool, error) {
	val, _, err := efi.ReadVariable("SecureBoot", efi.GlobalVariable)
	if err != nil {
		return false, fmt.Errorf("token: read SecureBoot variable: %w", err)
	}
	return len(val) == 1 && val[0] == 1, nil
}
