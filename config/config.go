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

// Package config is the launcher's one runtime-configurable surface: a
// development-only YAML override of the otherwise compiled-in pool
// identity (SPEC_FULL.md §7). The launcher always calls Load, which
// returns (nil, nil) unless ZFSBOOT_DEV_CONFIG is set; every
// identity field a real launcher needs (POOL_NAME, POOL_VDEVS, POOL_ID,
// ID_KEY, the embedded PEM, the wrapped dataset keys) is baked in at
// build time by cmd/zfsboot-mount's linker flags, exactly as spec.md §6
// requires.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DevConfigEnvVar gates whether Load ever reads the override file at
// all; it must be set to a non-empty value, so a stray dev-config.yaml
// left on a production image can never silently change pool identity.
const DevConfigEnvVar = "ZFSBOOT_DEV_CONFIG"

// Override replaces some or all of a launcher's compiled-in identity.
// Every field is optional; a zero value means "keep the compiled-in
// default". PKCS11Module and PIN are parsed but Apply does not consult
// them: the launcher uses its compiled-in module path and its --pin flag.
type Override struct {
	PoolName       string   `yaml:"pool_name"`
	PoolGUID       uint64   `yaml:"pool_guid"`
	Vdevs          []string `yaml:"vdevs"`
	EncryptionRoot string   `yaml:"encryption_root"`
	AltRoot        string   `yaml:"alt_root"`
	VerifyChecksum bool     `yaml:"verify_checksum"`
	PKCS11Module   string   `yaml:"pkcs11_module"`
	PIN            string   `yaml:"pin"`
}

// Load reads and parses the dev-config override at path, returning
// (nil, nil) -- not an error -- when ZFSBOOT_DEV_CONFIG is unset, the
// file does not exist, or its content is empty, so production launchers
// that never set the env var pay no cost and take no dependency on the
// file's presence.
func Load(path string) (*Override, error) {
	if os.Getenv(DevConfigEnvVar) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var o Override
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &o, nil
}

// Apply overlays non-zero fields of o onto the compiled-in defaults,
// returning the effective values a launcher should use.
func (o *Override) Apply(poolName string, poolGUID uint64, vdevs []string, encRoot, altRoot string, verifyChecksum bool) (string, uint64, []string, string, string, bool) {
	if o == nil {
		return poolName, poolGUID, vdevs, encRoot, altRoot, verifyChecksum
	}
	if o.PoolName != "" {
		poolName = o.PoolName
	}
	if o.PoolGUID != 0 {
		poolGUID = o.PoolGUID
	}
	if len(o.Vdevs) > 0 {
		vdevs = o.Vdevs
	}
	if o.EncryptionRoot != "" {
		encRoot = o.EncryptionRoot
	}
	if o.AltRoot != "" {
		altRoot = o.AltRoot
	}
	if o.VerifyChecksum {
		verifyChecksum = true
	}
	return poolName, poolGUID, vdevs, encRoot, altRoot, verifyChecksum
}
