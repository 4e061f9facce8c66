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

// zfsboot-mount is the early-boot launcher (spec.md §6): it takes no
// positional arguments, imports and mounts the single pool whose identity
// was compiled into this binary, and exits 0 on success or non-zero with
// a syslog diagnostic naming the failing subject otherwise.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/jessevdk/go-flags"

	"github.com/openzfsboot/zfsboot/config"
	"github.com/openzfsboot/zfsboot/dirs"
	"github.com/openzfsboot/zfsboot/importer"
	"github.com/openzfsboot/zfsboot/kernelfs"
	"github.com/openzfsboot/zfsboot/logger"
	"github.com/openzfsboot/zfsboot/mountwalk"
	"github.com/openzfsboot/zfsboot/scdaemon"
	"github.com/openzfsboot/zfsboot/token"
	"github.com/openzfsboot/zfsboot/wrap"
)

// The following are the compiled-in identity fields spec.md §6 requires:
// a production build sets every one of these with -ldflags -X, never with
// a flag or an environment variable. Their zero values only ever appear
// in this source tree, never in a shipped binary.
var (
	poolName    = ""
	poolGUIDHex = "0"
	// vdevList is POOL_VDEVS, a doubly-NUL-terminated path list (spec.md
	// §6); see splitVdevs.
	vdevList          = ""
	encryptionRoot    = ""
	altRoot           = "/"
	wrappedDatasetKey = ""

	pkcs11Module      = ""
	pkcs11KeyIDHex    = "0"
	pkcs11PublicPoint = ""

	tpmKeyPath = ""
)

type options struct {
	DevConfig string `long:"dev-config" description:"path to a development-only pool identity override (requires ZFSBOOT_DEV_CONFIG)"`
	PIN       string `long:"pin" description:"smartcard PIN, bypassing the interactive pinentry prompt (development use only)"`
}

// Parser returns the CLI's argument parser, matching the teacher's own
// cmd/snap-preseed convention of exposing a Parser() func for tests.
func Parser() (*flags.Parser, *options) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	return parser, &opts
}

func main() {
	parser, opts := Parser()
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	if err := run(context.Background(), opts); err != nil {
		logger.Errorf("zfsboot-mount: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	name, guidHex, vdevs, encRoot, alt, verify := loadIdentity(opts)

	guid, err := strconv.ParseUint(guidHex, 0, 64)
	if err != nil {
		return fmt.Errorf("pool guid %q is not a valid number: %w", guidHex, err)
	}

	var scd *scdaemon.Daemon
	if pkcs11Module != "" {
		scd, err = scdaemon.Start(ctx)
		if err != nil {
			return fmt.Errorf("starting pcscd: %w", err)
		}
		defer scd.Stop()
	}

	kek, err := acquireKEK(ctx, opts)
	if err != nil {
		return fmt.Errorf("acquiring kek: %w", err)
	}

	wrappedRaw, err := hex.DecodeString(wrappedDatasetKey)
	if err != nil {
		return fmt.Errorf("compiled-in wrapped dataset key is not valid hex: %w", err)
	}
	datasetKey, err := wrap.Unwrap(wrappedRaw, kek[:])
	if err != nil {
		return fmt.Errorf("unwrapping dataset key: %w", err)
	}

	dev, err := kernelfs.OpenRealDevice()
	if err != nil {
		return fmt.Errorf("opening kernel device: %w", err)
	}
	defer dev.Close()

	p := importer.Params{
		PoolName:       name,
		PoolGUID:       guid,
		Vdevs:          vdevs,
		EncryptionRoot: encRoot,
		DatasetKey:     datasetKey,
		AltRoot:        alt,
		VerifyChecksum: verify,
	}
	if err := importer.Run(ctx, dev, mountwalk.RealMounter{}, p); err != nil {
		return err
	}

	if sent, err := daemon.SdNotify(false, "READY=1"); err != nil {
		logger.Warningf("zfsboot-mount: sdnotify failed: %v", err)
	} else if !sent {
		logger.Noticef("zfsboot-mount: not running under systemd, skipping sdnotify")
	}
	return nil
}

// loadIdentity applies a development override, when ZFSBOOT_DEV_CONFIG is
// set, on top of the compiled-in pool identity; production launchers never
// set that variable, so Load always returns (nil, nil) for them.
func loadIdentity(opts *options) (name, guidHex string, vdevs []string, encRoot, alt string, verify bool) {
	path := opts.DevConfig
	if path == "" {
		path = dirs.DevConfigPath()
	}
	override, err := config.Load(path)
	if err != nil {
		logger.Warningf("zfsboot-mount: dev config: %v", err)
		override = nil
	}

	compiledVdevs := splitVdevs(vdevList)
	var guid uint64
	if v, err := strconv.ParseUint(poolGUIDHex, 0, 64); err == nil {
		guid = v
	}

	effName, effGUID, effVdevs, effRoot, effAlt, effVerify := override.Apply(poolName, guid, compiledVdevs, encryptionRoot, altRoot, false)
	return effName, strconv.FormatUint(effGUID, 10), effVdevs, effRoot, effAlt, effVerify
}

// splitVdevs parses the compiled-in POOL_VDEVS identity field, a
// doubly-NUL-terminated path list (spec.md §6): each path is NUL-
// terminated and the list itself ends with an extra NUL, so splitting
// on NUL and dropping empty segments recovers exactly the path set
// regardless of whether the final terminator was compiled in.
func splitVdevs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// acquireKEK picks a backend based on which identity fields were compiled
// in: a non-empty pkcs11Module means the smartcard path, otherwise the
// binary is expected to be built for the TPM path (SPEC_FULL.md §6).
func acquireKEK(ctx context.Context, opts *options) ([token.KEKSize]byte, error) {
	if pkcs11Module != "" {
		pub, err := hex.DecodeString(pkcs11PublicPoint)
		if err != nil {
			return [token.KEKSize]byte{}, fmt.Errorf("compiled-in public point is not valid hex: %w", err)
		}
		keyIDRaw, err := strconv.ParseUint(pkcs11KeyIDHex, 0, 8)
		if err != nil {
			return [token.KEKSize]byte{}, fmt.Errorf("compiled-in pkcs11 key id is not valid: %w", err)
		}
		b := &token.PKCS11Backend{
			ModulePath:  pkcs11Module,
			KeyID:       byte(keyIDRaw),
			PublicPoint: pub,
			PIN:         opts.PIN,
		}
		return b.AcquireKEK(ctx)
	}

	b := &token.TPMBackend{KeyPath: tpmKeyPath}
	return b.AcquireKEK(ctx)
}

