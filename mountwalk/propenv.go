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

// Package mountwalk is the Mount Walker: it recursively descends the
// dataset tree via the kernel's cookie-driven child iterator, applies
// the mount-related property checks spec.md §4.5 fixes in order, and
// issues the mount itself.
package mountwalk

import "github.com/openzfsboot/zfsboot/nvlist"

// A dataset property envelope is a child whose "value" field holds the
// effective value and "source" identifies where it came from (spec.md
// §3); source_dataset is only present when source is PropSourceInherited.

func propU64Value(props *nvlist.List, key string) (uint64, bool) {
	env, ok := props.GetChild(key)
	if !ok {
		return 0, false
	}
	return env.GetU64("value")
}

func propStringValue(props *nvlist.List, key string) (string, bool) {
	env, ok := props.GetChild(key)
	if !ok {
		return "", false
	}
	return env.GetString("value")
}

func propSource(props *nvlist.List, key string) (uint64, bool) {
	env, ok := props.GetChild(key)
	if !ok {
		return 0, false
	}
	return env.GetU64("source")
}

func propSourceDataset(props *nvlist.List, key string) (string, bool) {
	env, ok := props.GetChild(key)
	if !ok {
		return "", false
	}
	return env.GetString("source_dataset")
}
