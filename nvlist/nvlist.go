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

// Package nvlist is the self-describing, typed name-to-value tree the
// rest of the import engine calls Config: pool and vdev descriptors, the
// kernel's enriched TRY_IMPORT reply, and dataset property envelopes are
// all *nvlist.List values. It is a pure-Go reimplementation of the native
// encoding's external contract (pack/unpack a byte buffer, typed
// get/set), not a binding to the real on-disk libnvpair format — nothing
// in this repository talks to a real kernel, so the wire shape only has
// to be internally consistent and round-trip faithful.
package nvlist

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Kind identifies the type of value stored under a key.
type Kind byte

const (
	KindUint64 Kind = iota
	KindString
	KindList
	KindUint64Array
	KindListArray
)

func (k Kind) String() string {
	switch k {
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindUint64Array:
		return "uint64[]"
	case KindListArray:
		return "list[]"
	default:
		return "unknown"
	}
}

type value struct {
	kind  Kind
	u64   uint64
	str   string
	list  *List
	u64s  []uint64
	lists []*List
}

// List is a self-describing name -> value tree, the core's abstract
// Config. The zero value is not usable; construct with New.
type List struct {
	order  []string
	values map[string]value
}

// New returns an empty Config.
func New() *List {
	return &List{values: make(map[string]value)}
}

func (l *List) set(key string, v value) {
	if _, ok := l.values[key]; !ok {
		l.order = append(l.order, key)
	}
	l.values[key] = v
}

// SetU64 sets an unsigned 64-bit scalar.
func (l *List) SetU64(key string, v uint64) { l.set(key, value{kind: KindUint64, u64: v}) }

// SetString sets a string scalar.
func (l *List) SetString(key string, v string) { l.set(key, value{kind: KindString, str: v}) }

// SetChild sets a single nested Config.
func (l *List) SetChild(key string, v *List) { l.set(key, value{kind: KindList, list: v}) }

// SetU64Array sets an array of unsigned 64-bit scalars.
func (l *List) SetU64Array(key string, v []uint64) {
	cp := make([]uint64, len(v))
	copy(cp, v)
	l.set(key, value{kind: KindUint64Array, u64s: cp})
}

// SetChildArray sets (replacing any previous value) a whole array of
// nested Configs — the abstract `add_child_array` operation.
func (l *List) SetChildArray(key string, v []*List) {
	cp := make([]*List, len(v))
	copy(cp, v)
	l.set(key, value{kind: KindListArray, lists: cp})
}

// AppendChild appends one Config onto an existing child array — the
// abstract `add_child` operation — creating the array if absent.
func (l *List) AppendChild(key string, v *List) {
	cur, _ := l.values[key]
	cur.kind = KindListArray
	cur.lists = append(cur.lists, v)
	l.set(key, cur)
}

// GetU64 retrieves an unsigned 64-bit scalar.
func (l *List) GetU64(key string) (uint64, bool) {
	v, ok := l.values[key]
	if !ok || v.kind != KindUint64 {
		return 0, false
	}
	return v.u64, true
}

// GetString retrieves a string scalar.
func (l *List) GetString(key string) (string, bool) {
	v, ok := l.values[key]
	if !ok || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// GetChild retrieves a single nested Config.
func (l *List) GetChild(key string) (*List, bool) {
	v, ok := l.values[key]
	if !ok || v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// GetU64Array retrieves an array of unsigned 64-bit scalars.
func (l *List) GetU64Array(key string) ([]uint64, bool) {
	v, ok := l.values[key]
	if !ok || v.kind != KindUint64Array {
		return nil, false
	}
	return v.u64s, true
}

// GetChildArray retrieves an array of nested Configs.
func (l *List) GetChildArray(key string) ([]*List, bool) {
	v, ok := l.values[key]
	if !ok || v.kind != KindListArray {
		return nil, false
	}
	return v.lists, true
}

// Has reports whether key is present, regardless of kind — used for the
// presence-only checks the spec calls for (e.g. a `redacted` key).
func (l *List) Has(key string) bool {
	_, ok := l.values[key]
	return ok
}

// Delete removes key, if present.
func (l *List) Delete(key string) {
	if _, ok := l.values[key]; !ok {
		return
	}
	delete(l.values, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// DebugString renders the tree for diagnostics — the Go equivalent of
// the original source's print_nvlist. Nothing in the engine calls it and
// the logger has no debug level; it is a helper for tests and ad-hoc
// debugging.
func (l *List) DebugString() string {
	var b strings.Builder
	l.dump(&b, 0)
	return b.String()
}

func (l *List) dump(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, k := range l.order {
		v := l.values[k]
		switch v.kind {
		case KindUint64:
			fmt.Fprintf(b, "%s%s = %d\n", indent, k, v.u64)
		case KindString:
			fmt.Fprintf(b, "%s%s = %q\n", indent, k, v.str)
		case KindList:
			fmt.Fprintf(b, "%s%s = {\n", indent, k)
			v.list.dump(b, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
		case KindUint64Array:
			fmt.Fprintf(b, "%s%s = %v\n", indent, k, v.u64s)
		case KindListArray:
			fmt.Fprintf(b, "%s%s = [\n", indent, k)
			for _, c := range v.lists {
				fmt.Fprintf(b, "%s  {\n", indent)
				c.dump(b, depth+2)
				fmt.Fprintf(b, "%s  }\n", indent)
			}
			fmt.Fprintf(b, "%s]\n", indent)
		}
	}
}

// SizeNative returns the length of the packed encoding, the abstract
// `size_native` operation.
func (l *List) SizeNative() uint64 {
	buf, err := l.PackNative()
	if err != nil {
		return 0
	}
	return uint64(len(buf))
}

// PackNative serializes the Config into a self-describing byte buffer,
// the abstract `pack_native` operation.
func (l *List) PackNative() ([]byte, error) {
	var buf []byte
	buf = appendU32(buf, uint32(len(l.order)))
	for _, k := range l.order {
		v := l.values[k]
		buf = appendString(buf, k)
		buf = append(buf, byte(v.kind))
		switch v.kind {
		case KindUint64:
			buf = appendU64(buf, v.u64)
		case KindString:
			buf = appendString(buf, v.str)
		case KindList:
			child, err := v.list.PackNative()
			if err != nil {
				return nil, xerrors.Errorf("pack child %q: %w", k, err)
			}
			buf = appendBytes(buf, child)
		case KindUint64Array:
			buf = appendU32(buf, uint32(len(v.u64s)))
			for _, e := range v.u64s {
				buf = appendU64(buf, e)
			}
		case KindListArray:
			buf = appendU32(buf, uint32(len(v.lists)))
			for _, c := range v.lists {
				packed, err := c.PackNative()
				if err != nil {
					return nil, xerrors.Errorf("pack child array %q: %w", k, err)
				}
				buf = appendBytes(buf, packed)
			}
		default:
			return nil, xerrors.Errorf("pack %q: %w", k, fmt.Errorf("unknown kind %v", v.kind))
		}
	}
	return buf, nil
}

// Unpack deserializes a Config previously produced by PackNative. Extra
// trailing bytes (the buffer is typically a fixed-size region larger
// than the packed content) are ignored, matching the real nvlist
// unpacker's tolerance of padding.
func Unpack(buf []byte) (*List, error) {
	l, _, err := unpackAt(buf)
	return l, err
}

func unpackAt(buf []byte) (*List, int, error) {
	n, off, err := readU32(buf, 0)
	if err != nil {
		return nil, 0, err
	}
	l := New()
	for i := uint32(0); i < n; i++ {
		key, o2, err := readString(buf, off)
		if err != nil {
			return nil, 0, xerrors.Errorf("unpack key %d: %w", i, err)
		}
		off = o2
		if off >= len(buf) {
			return nil, 0, fmt.Errorf("unpack %q: truncated buffer", key)
		}
		kind := Kind(buf[off])
		off++
		switch kind {
		case KindUint64:
			v, o3, err := readU64(buf, off)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack %q: %w", key, err)
			}
			off = o3
			l.SetU64(key, v)
		case KindString:
			s, o3, err := readString(buf, off)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack %q: %w", key, err)
			}
			off = o3
			l.SetString(key, s)
		case KindList:
			sub, o3, err := readBytes(buf, off)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack %q: %w", key, err)
			}
			off = o3
			child, err := Unpack(sub)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack child %q: %w", key, err)
			}
			l.SetChild(key, child)
		case KindUint64Array:
			cnt, o3, err := readU32(buf, off)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack %q: %w", key, err)
			}
			off = o3
			arr := make([]uint64, cnt)
			for j := uint32(0); j < cnt; j++ {
				v, o4, err := readU64(buf, off)
				if err != nil {
					return nil, 0, xerrors.Errorf("unpack %q[%d]: %w", key, j, err)
				}
				off = o4
				arr[j] = v
			}
			l.SetU64Array(key, arr)
		case KindListArray:
			cnt, o3, err := readU32(buf, off)
			if err != nil {
				return nil, 0, xerrors.Errorf("unpack %q: %w", key, err)
			}
			off = o3
			arr := make([]*List, cnt)
			for j := uint32(0); j < cnt; j++ {
				sub, o4, err := readBytes(buf, off)
				if err != nil {
					return nil, 0, xerrors.Errorf("unpack %q[%d]: %w", key, j, err)
				}
				off = o4
				child, err := Unpack(sub)
				if err != nil {
					return nil, 0, xerrors.Errorf("unpack %q[%d]: %w", key, j, err)
				}
				arr[j] = child
			}
			l.SetChildArray(key, arr)
		default:
			return nil, 0, fmt.Errorf("unpack %q: unknown kind %d", key, kind)
		}
	}
	return l, off, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBytes(buf, b []byte) []byte {
	buf = appendU32(buf, uint32(len(b)))
	return append(buf, b...)
}

func readU32(buf []byte, off int) (uint32, int, error) {
	if off+4 > len(buf) {
		return 0, 0, fmt.Errorf("truncated uint32 at offset %d", off)
	}
	return binary.LittleEndian.Uint32(buf[off : off+4]), off + 4, nil
}

func readU64(buf []byte, off int) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, 0, fmt.Errorf("truncated uint64 at offset %d", off)
	}
	return binary.LittleEndian.Uint64(buf[off : off+8]), off + 8, nil
}

func readString(buf []byte, off int) (string, int, error) {
	n, off, err := readU32(buf, off)
	if err != nil {
		return "", 0, err
	}
	if off+int(n) > len(buf) {
		return "", 0, fmt.Errorf("truncated string at offset %d", off)
	}
	return string(buf[off : off+int(n)]), off + int(n), nil
}

func readBytes(buf []byte, off int) ([]byte, int, error) {
	n, off, err := readU32(buf, off)
	if err != nil {
		return nil, 0, err
	}
	if off+int(n) > len(buf) {
		return nil, 0, fmt.Errorf("truncated bytes at offset %d", off)
	}
	return buf[off : off+int(n)], off + int(n), nil
}
