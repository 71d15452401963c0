// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package bitpack converts between one-byte-per-pixel palette indices and
// bit-packed index buffers.
//
// Indices are stored in row-major order with no per-row padding: the pixel at
// (x, y) in a width-wide image has position p = y*width + x. At 8 bits per
// index, p is the byte offset. At 4 bits per index, p/2 is the byte offset,
// even p values occupy the high nibble and odd p values the low nibble.
//
// With an odd number of 4-bit indices, the low nibble of the last byte is
// padding. Pack writes it as zero and Unpack ignores it. Unpack followed by
// Pack gives back the packed bytes exactly, except that a non-zero pad nibble
// (as left by colorquant.ReindexDarkestToZero) comes back as zero.
package bitpack

import (
	"errors"
)

var (
	ErrBadDepth    = errors.New("bitpack: bad depth")
	ErrShortBuffer = errors.New("bitpack: short buffer")
)

// Depth is the number of bits per packed index.
type Depth uint8

const (
	Depth4 = Depth(4)
	Depth8 = Depth(8)
)

// Valid returns whether d is Depth4 or Depth8.
func (d Depth) Valid() bool {
	return (d == Depth4) || (d == Depth8)
}

// MaxColors returns the number of distinct indices that d can represent, or
// 0 for an invalid Depth.
func (d Depth) MaxColors() int {
	if !d.Valid() {
		return 0
	}
	return 1 << d
}

// PackedLen returns the number of bytes needed to hold n indices.
func (d Depth) PackedLen(n int) int {
	return ((n * int(d)) + 7) / 8
}

// Pack packs indices at depth d, appending to dst[:0] (re-allocating if
// necessary) and returning the packed buffer. At Depth4, only the low 4 bits
// of each index are kept. A trailing unused low nibble is zero.
func Pack(dst []byte, indices []byte, d Depth) ([]byte, error) {
	if !d.Valid() {
		return nil, ErrBadDepth
	}
	n := d.PackedLen(len(indices))
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]byte, n)
	}

	if d == Depth8 {
		copy(dst, indices)
		return dst, nil
	}

	// Both nibbles of each byte are written together.
	i := 0
	for ; (i + 1) < len(indices); i += 2 {
		dst[i>>1] = (indices[i+0] << 4) | (indices[i+1] & 0x0F)
	}
	if i < len(indices) {
		dst[i>>1] = indices[i] << 4
	}
	return dst, nil
}

// Unpack unpacks n indices at depth d from packed, appending to dst[:0]
// (re-allocating if necessary) and returning the index slice.
func Unpack(dst []byte, packed []byte, n int, d Depth) ([]byte, error) {
	if !d.Valid() {
		return nil, ErrBadDepth
	} else if n < 0 {
		return nil, ErrShortBuffer
	} else if len(packed) < d.PackedLen(n) {
		return nil, ErrShortBuffer
	}
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]byte, n)
	}

	if d == Depth8 {
		copy(dst, packed[:n])
		return dst, nil
	}

	i := 0
	for ; (i + 1) < n; i += 2 {
		b := packed[i>>1]
		dst[i+0] = b >> 4
		dst[i+1] = b & 0x0F
	}
	if i < n {
		dst[i] = packed[i>>1] >> 4
	}
	return dst, nil
}

// Set writes the index v for pixel position p into packed. At Depth4 the
// other nibble of the shared byte is preserved.
func Set(packed []byte, p int, v uint8, d Depth) {
	if d == Depth8 {
		packed[p] = v
		return
	}
	// Even positions shift by 4 (high nibble), odd positions by 0.
	shift := uint(^p&1) * 4
	mask := uint8(0xF0) >> shift
	packed[p>>1] = (packed[p>>1] & mask) | ((v & 0x0F) << shift)
}

// At returns the index for pixel position p.
func At(packed []byte, p int, d Depth) uint8 {
	if d == Depth8 {
		return packed[p]
	}
	shift := uint(^p&1) * 4
	return (packed[p>>1] >> shift) & 0x0F
}
