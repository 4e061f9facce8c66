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

// zfsboot-keysetup is a provisioning-time tool, ground-truthed against
// original_source/keysetup/main.c and original_source/writekey/main.c: it
// never touches a pool. It unwraps a 32-byte dataset key under an
// explicit kek (cunwrap) or writes a token-derived kek to a file
// (writekey); it does not produce wrapped keys. It is not part of the import engine's tested surface (SPEC_FULL.md
// §6) and is never invoked at boot.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/openzfsboot/zfsboot/token"
	"github.com/openzfsboot/zfsboot/wrap"
)

type cunwrapCmd struct {
	Args struct {
		KEK string `positional-arg-name:"kek" description:"64 hex characters (32 bytes)"`
		Key string `positional-arg-name:"key" description:"64 hex characters (32 bytes), wrapped"`
	} `positional-args:"yes" required:"yes"`
}

func (c *cunwrapCmd) Execute(args []string) error {
	kek, err := readHexKey(c.Args.KEK)
	if err != nil {
		return err
	}
	wrapped, err := readHexKey(c.Args.Key)
	if err != nil {
		return err
	}
	unwrapped, err := wrap.Unwrap(wrapped[:], kek[:])
	if err != nil {
		return fmt.Errorf("unwrap: %w", err)
	}
	fmt.Println(hex.EncodeToString(unwrapped[:]))
	return nil
}

// wrapCmd, unwrapCmd and cwrapCmd are the smartcard- and forward-cipher-
// dependent commands the original tool offers. This tree only ever
// carries the inverse (decrypt) direction of the key wrap cipher, so
// wrap and cwrap are stubs; unwrap, which would combine the token's kek
// with that decrypt direction, is not wired up either. All three return
// errNoForwardCipher: a provisioning host that needs to *produce* a
// wrapped key still uses the vendor's own keysetup binary for that step.
type wrapCmd struct{}
type unwrapCmd struct{}
type cwrapCmd struct{}

func (*wrapCmd) Execute([]string) error   { return errNoForwardCipher }
func (*unwrapCmd) Execute([]string) error { return errNoForwardCipher }
func (*cwrapCmd) Execute([]string) error  { return errNoForwardCipher }

var errNoForwardCipher = fmt.Errorf("keysetup: this tool only implements the unwrap direction of the key-wrap cipher; use cunwrap, or the provisioning vendor's own tool to produce a wrapped key")

type pemCmd struct {
	Args struct {
		KeyID string `positional-arg-name:"key-id"`
	} `positional-args:"yes" required:"yes"`
}

func (c *pemCmd) Execute(args []string) error {
	fmt.Printf("# public point for pkcs11 key id %s is produced by the token's own pkcs11 tool (e.g. pkcs11-tool --read-object); this\n# binary only consumes a compiled-in public point, it does not extract one.\n", c.Args.KeyID)
	return nil
}

type writeKeyCmd struct {
	Args struct {
		OutFile string `positional-arg-name:"out-file"`
	} `positional-args:"yes" required:"yes"`
	PKCS11Module string `long:"pkcs11-module" required:"yes"`
	KeyID        string `long:"key-id" required:"yes"`
	PublicPoint  string `long:"public-point" required:"yes" description:"hex-encoded uncompressed EC point"`
	PIN          string `long:"pin"`
}

func (c *writeKeyCmd) Execute(args []string) error {
	pub, err := hex.DecodeString(c.PublicPoint)
	if err != nil {
		return fmt.Errorf("public point is not valid hex: %w", err)
	}
	keyID, err := hex.DecodeString(c.KeyID)
	if err != nil || len(keyID) != 1 {
		return fmt.Errorf("key-id must be exactly one hex byte")
	}

	b := &token.PKCS11Backend{ModulePath: c.PKCS11Module, KeyID: keyID[0], PublicPoint: pub, PIN: c.PIN}
	kek, err := b.AcquireKEK(context.Background())
	if err != nil {
		return fmt.Errorf("acquire kek: %w", err)
	}

	f, err := os.OpenFile(c.Args.OutFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Args.OutFile, err)
	}
	defer f.Close()
	if _, err := f.Write(kek[:]); err != nil {
		return fmt.Errorf("write %s: %w", c.Args.OutFile, err)
	}
	return nil
}

func readHexKey(s string) ([wrap.BlockSize]byte, error) {
	var out [wrap.BlockSize]byte
	if len(s) != wrap.BlockSize*2 {
		return out, fmt.Errorf("key argument must be exactly %d hexadecimal characters", wrap.BlockSize*2)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("key argument must be exactly %d hexadecimal characters", wrap.BlockSize*2)
	}
	copy(out[:], raw)
	return out, nil
}

func main() {
	parser := flags.NewParser(nil, flags.Default)
	parser.AddCommand("pem", "print public-point extraction hint for a pkcs11 key id", "", &pemCmd{})
	parser.AddCommand("wrap", "wrap a key under a smartcard-derived kek (not implemented)", "", &wrapCmd{})
	parser.AddCommand("unwrap", "unwrap a key under a smartcard-derived kek (not implemented)", "", &unwrapCmd{})
	parser.AddCommand("cwrap", "wrap a key under an explicit kek (not implemented)", "", &cwrapCmd{})
	parser.AddCommand("cunwrap", "unwrap a key under an explicit kek", "", &cunwrapCmd{})
	parser.AddCommand("writekey", "derive the kek via pkcs11 and write it raw to a file", "", &writeKeyCmd{})

	if _, err := parser.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
