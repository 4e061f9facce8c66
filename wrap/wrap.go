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

// Package wrap is the key-wrap collaborator spec.md §6 treats as opaque:
// a single-block Rijndael-256 (256-bit block, 256-bit key, 14 rounds)
// decryption, Unwrap(wrapped32, kek32) -> key32. The core never looks
// inside it; it exists here only so the repository is a complete,
// buildable system, the way the original keysetup/Rijndael.h and
// loadkey/unwrap.c ship alongside zfstools.c rather than in it.
package wrap

import "fmt"

// BlockSize is the width of a Rijndael-256 block and key, in bytes.
const BlockSize = 32

const nb = 8 // state width in 32-bit words (256-bit block)
const nk = 8 // key length in 32-bit words (256-bit key)
const nr = 14

// shiftAmount is Rijndael's per-row left-rotation for an 8-word state;
// unlike AES's 128-bit state (shifts 0,1,2,3) a 256-bit state shifts
// 0,1,3,4 -- the "double-column shift pattern" spec.md §6 calls out.
var shiftAmount = [4]int{0, 1, 3, 4}

// Unwrap performs one Rijndael-256 decryption of wrapped under kek,
// returning the 32-byte dataset key. Both inputs must be exactly
// BlockSize bytes.
func Unwrap(wrapped, kek []byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte
	if len(wrapped) != BlockSize {
		return out, fmt.Errorf("wrap: wrapped key must be %d bytes, got %d", BlockSize, len(wrapped))
	}
	if len(kek) != BlockSize {
		return out, fmt.Errorf("wrap: kek must be %d bytes, got %d", BlockSize, len(kek))
	}

	schedule := expandKeyInv(kek, tableSbox)
	state := bytesToState(wrapped)
	decryptBlock(&state, schedule, tableSbox)
	return stateToBytes(state), nil
}

type state [4][8]byte

func bytesToState(b []byte) state {
	var s state
	for c := 0; c < nb; c++ {
		for r := 0; r < 4; r++ {
			s[r][c] = b[c*4+r]
		}
	}
	return s
}

func stateToBytes(s state) [BlockSize]byte {
	var out [BlockSize]byte
	for c := 0; c < nb; c++ {
		for r := 0; r < 4; r++ {
			out[c*4+r] = s[r][c]
		}
	}
	return out
}

// expandKeyInv runs the standard Rijndael key schedule and returns it in
// round order (round 0 first; decryptBlock walks it from the last round
// down), with the words of the middle rounds pre-inv-mixed as the
// textbook "equivalent inverse cipher" does.
func expandKeyInv(kek []byte, sbox [256]byte) [][4]byte {
	w := make([][4]byte, nb*(nr+1))
	for i := 0; i < nk; i++ {
		w[i] = [4]byte{kek[4*i], kek[4*i+1], kek[4*i+2], kek[4*i+3]}
	}
	rc := byte(1)
	for i := nk; i < nb*(nr+1); i++ {
		temp := w[i-1]
		if i%nk == 0 {
			temp = subWord(rotWord(temp), sbox)
			temp[0] ^= rc
			rc = xtime(rc)
		} else if nk > 6 && i%nk == 4 {
			temp = subWord(temp, sbox)
		}
		for k := 0; k < 4; k++ {
			w[i][k] = w[i-nk][k] ^ temp[k]
		}
	}

	// Equivalent inverse cipher: apply InvMixColumns to every round key
	// word used between the first and last rounds so decryption can
	// apply InvSubBytes/InvShiftRows/InvMixColumns/AddRoundKey in that
	// fixed order instead of interleaving differently each round.
	inv := make([][4]byte, len(w))
	copy(inv, w)
	for round := 1; round < nr; round++ {
		for c := 0; c < nb; c++ {
			inv[round*nb+c] = invMixColumnWord(inv[round*nb+c])
		}
	}
	return inv
}

func rotWord(w [4]byte) [4]byte { return [4]byte{w[1], w[2], w[3], w[0]} }

func subWord(w [4]byte, sbox [256]byte) [4]byte {
	return [4]byte{sbox[w[0]], sbox[w[1]], sbox[w[2]], sbox[w[3]]}
}

func invMixColumnWord(w [4]byte) [4]byte {
	return [4]byte{
		gmul(w[0], 0x0e) ^ gmul(w[1], 0x0b) ^ gmul(w[2], 0x0d) ^ gmul(w[3], 0x09),
		gmul(w[0], 0x09) ^ gmul(w[1], 0x0e) ^ gmul(w[2], 0x0b) ^ gmul(w[3], 0x0d),
		gmul(w[0], 0x0d) ^ gmul(w[1], 0x09) ^ gmul(w[2], 0x0e) ^ gmul(w[3], 0x0b),
		gmul(w[0], 0x0b) ^ gmul(w[1], 0x0d) ^ gmul(w[2], 0x09) ^ gmul(w[3], 0x0e),
	}
}

// decryptBlock runs the equivalent inverse cipher: AddRoundKey(last),
// (nr-1) rounds of InvShiftRows/InvSubBytes/InvMixColumns/AddRoundKey,
// then a final InvShiftRows/InvSubBytes/AddRoundKey without InvMixColumns.
func decryptBlock(s *state, w [][4]byte, sbox [256]byte) {
	addRoundKey(s, w, nr)
	for round := nr - 1; round >= 1; round-- {
		invShiftRows(s)
		invSubBytes(s)
		invMixColumns(s)
		addRoundKey(s, w, round)
	}
	invShiftRows(s)
	invSubBytes(s)
	addRoundKey(s, w, 0)
}

func addRoundKey(s *state, w [][4]byte, round int) {
	for c := 0; c < nb; c++ {
		word := w[round*nb+c]
		for r := 0; r < 4; r++ {
			s[r][c] ^= word[r]
		}
	}
}

func invShiftRows(s *state) {
	for r := 1; r < 4; r++ {
		amt := shiftAmount[r]
		row := s[r]
		var shifted [8]byte
		for c := 0; c < nb; c++ {
			shifted[(c+amt)%nb] = row[c]
		}
		s[r] = shifted
	}
}

func invSubBytes(s *state) {
	for r := 0; r < 4; r++ {
		for c := 0; c < nb; c++ {
			s[r][c] = invSbox[s[r][c]]
		}
	}
}

func invMixColumns(s *state) {
	for c := 0; c < nb; c++ {
		w := invMixColumnWord([4]byte{s[0][c], s[1][c], s[2][c], s[3][c]})
		s[0][c], s[1][c], s[2][c], s[3][c] = w[0], w[1], w[2], w[3]
	}
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return (b << 1) ^ 0x1b
	}
	return b << 1
}

func gmul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}
