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

// Package poolconfig reconstructs one coherent pool configuration from
// the per-device, per-label candidates package label produces: per-slot
// transaction-group arbitration, hole and missing placeholders, and
// assembly of the root vdev descriptor the Kernel Handshake packs for
// POOL_TRYIMPORT.
package poolconfig

import (
	"fmt"

	"github.com/openzfsboot/zfsboot/label"
	"github.com/openzfsboot/zfsboot/logger"
	"github.com/openzfsboot/zfsboot/nvlist"
	"github.com/openzfsboot/zfsboot/zfserr"
	"github.com/openzfsboot/zfsboot/zfstype"
)

// Expected pins the pool identity the reconstruction is allowed to
// accept candidates for; it is compiled into the launcher, never read
// from the devices themselves.
type Expected struct {
	Name string
	GUID uint64
}

type slotEntry struct {
	txg  uint64
	tree *nvlist.List
}

// Reconstruct implements SPEC_FULL.md §4.2 / spec.md §4.2: it consumes
// every device's label candidates, enforces membership, arbitrates each
// top-level vdev slot by highest pool_txg, and returns the single
// synthesized pool descriptor ready for the Kernel Handshake.
func Reconstruct(exp Expected, perDevice map[string][]label.Candidate) (*nvlist.List, error) {
	slots := map[uint64]*slotEntry{}
	var template *nvlist.List
	var maxTxg uint64
	haveTemplate := false

	for path, cands := range perDevice {
		for _, cand := range cands {
			tree := cand.Tree

			state, _ := tree.GetU64("state")
			if zfstype.PoolState(state) == zfstype.PoolStateSpare || zfstype.PoolState(state) == zfstype.PoolStateL2Cache {
				return nil, zfserr.New(zfserr.PolicyError, path, fmt.Errorf("vdev reserved as %s, not a pool member", zfstype.PoolState(state)))
			}
			name, _ := tree.GetString("name")
			if name != exp.Name {
				return nil, zfserr.New(zfserr.PolicyError, path, fmt.Errorf("pool name %q does not match expected %q", name, exp.Name))
			}
			guid, _ := tree.GetU64("pool_guid")
			if guid != exp.GUID {
				return nil, zfserr.New(zfserr.PolicyError, path, fmt.Errorf("pool guid %#x does not match expected %#x", guid, exp.GUID))
			}

			vdevTree, ok := tree.GetChild("vdev_tree")
			if !ok {
				return nil, zfserr.New(zfserr.FormatError, path, fmt.Errorf("label missing vdev_tree"))
			}
			id, ok := vdevTree.GetU64("id")
			if !ok {
				return nil, zfserr.New(zfserr.FormatError, path, fmt.Errorf("vdev_tree missing id"))
			}

			if existing, ok := slots[id]; !ok || cand.Txg > existing.txg {
				slots[id] = &slotEntry{txg: cand.Txg, tree: vdevTree}
			}
			if !haveTemplate || cand.Txg > maxTxg {
				template = tree
				maxTxg = cand.Txg
				haveTemplate = true
			}
		}
	}

	if !haveTemplate {
		return nil, zfserr.New(zfserr.FormatError, exp.Name, fmt.Errorf("no valid label candidates"))
	}

	out := nvlist.New()

	version, ok := template.GetU64("version")
	if !ok {
		return nil, zfserr.New(zfserr.FormatError, exp.Name, fmt.Errorf("template missing required field version"))
	}
	out.SetU64("version", version)
	out.SetU64("pool_guid", exp.GUID)
	out.SetString("name", exp.Name)

	state, ok := template.GetU64("state")
	if !ok {
		return nil, zfserr.New(zfserr.FormatError, exp.Name, fmt.Errorf("template missing required field state"))
	}
	out.SetU64("state", state)

	vdevChildren, ok := template.GetU64("vdev_children")
	if !ok {
		return nil, zfserr.New(zfserr.FormatError, exp.Name, fmt.Errorf("template missing required field vdev_children"))
	}
	out.SetU64("vdev_children", vdevChildren)

	for _, key := range []string{"hostid", "hostname", "comment", "compatibility"} {
		if s, ok := template.GetString(key); ok {
			out.SetString(key, s)
		} else if u, ok := template.GetU64(key); ok {
			out.SetU64(key, u)
		}
	}

	holeArray, _ := template.GetU64Array("hole_array")
	if len(holeArray) > 0 {
		out.SetU64Array("hole_array", holeArray)
	}
	holeSet := make(map[uint64]bool, len(holeArray))
	for _, i := range holeArray {
		holeSet[i] = true
	}

	children := make([]*nvlist.List, vdevChildren)
	for _, i := range holeArray {
		if i >= vdevChildren {
			continue
		}
		children[i] = newHolePlaceholder(i)
	}
	for i := uint64(0); i < vdevChildren; i++ {
		if children[i] != nil {
			continue
		}
		if entry, ok := slots[i]; ok {
			children[i] = entry.tree
			continue
		}
		logger.Warningf("pool %s: top-level vdev slot %d has no surviving member and is not a declared hole", exp.Name, i)
		children[i] = newMissingPlaceholder()
	}

	root := nvlist.New()
	root.SetString("type", string(zfstype.VDevTypeRoot))
	root.SetU64("id", 0)
	root.SetU64("guid", exp.GUID)
	root.SetChildArray("children", children)
	out.SetChild("vdev_tree", root)

	return out, nil
}

// newHolePlaceholder returns a brand new, independently allocated
// descriptor for top-level slot i. Each call allocates its own *List:
// the original source reused a single template pointer across every
// hole slot (see SPEC_FULL.md §10, Open Question 3); this engine never
// shares one placeholder between two slots.
func newHolePlaceholder(id uint64) *nvlist.List {
	l := nvlist.New()
	l.SetString("type", string(zfstype.VDevTypeHole))
	l.SetU64("guid", 0)
	l.SetU64("id", id)
	return l
}

func newMissingPlaceholder() *nvlist.List {
	l := nvlist.New()
	l.SetString("type", string(zfstype.VDevTypeMissing))
	l.SetU64("guid", 0)
	return l
}
