// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package colorquant

import (
	"fmt"

	"github.com/nigeltao/palettize/lib/bitpack"
)

// Darkest returns the index of the palette entry with the lowest luminance.
// Ties go to the lowest index. It returns -1 for an empty palette.
func (p Palette) Darkest() int {
	darkest, lum := -1, 0.0
	for i, v := range p {
		if l := v.Luminance(); (darkest < 0) || (l < lum) {
			darkest, lum = i, l
		}
	}
	return darkest
}

// ReindexDarkestToZero sets the darkest palette entry to black and moves it to
// index 0, relabeling the packed indices so that every pixel keeps its color
// (apart from the blackened one). It modifies palette and packed in place and
// returns the darkest entry's original index.
//
// packed holds indices at depth d. At bitpack.Depth4 both nibbles of every
// byte are relabeled independently, so a trailing pad nibble of 0 may become
// the old darkest index. Unpacking only ever reads the real pixels.
//
// It panics if d is not a valid Depth or if palette has more entries than d
// can index.
func ReindexDarkestToZero(palette Palette, packed []byte, d bitpack.Depth) int {
	if !d.Valid() {
		panic(fmt.Sprintf("colorquant: bit depth %d is not 4 or 8", d))
	} else if len(palette) > d.MaxColors() {
		panic(fmt.Sprintf("colorquant: %d colors do not fit in %d-bit indices", len(palette), d))
	}

	darkest := palette.Darkest()
	if darkest < 0 {
		return darkest
	}
	palette[darkest] = PaletteValue{}
	if darkest == 0 {
		return 0
	}
	palette[0], palette[darkest] = palette[darkest], palette[0]

	lut := swapTable(uint8(darkest), d)
	for i, b := range packed {
		packed[i] = lut[b]
	}
	return darkest
}

// swapTable returns a table that maps each packed byte to the same byte with
// every index equal to 0 replaced by k and every index equal to k replaced
// by 0. At Depth4 the two nibbles are treated separately.
func swapTable(k uint8, d bitpack.Depth) (lut [256]uint8) {
	swap := func(v uint8) uint8 {
		switch v {
		case 0:
			return k
		case k:
			return 0
		}
		return v
	}

	for i := range lut {
		b := uint8(i)
		if d == bitpack.Depth8 {
			lut[i] = swap(b)
		} else {
			lut[i] = (swap(b>>4) << 4) | swap(b&0x0F)
		}
	}
	return lut
}
