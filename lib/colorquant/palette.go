// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package colorquant

import (
	"image"
	"image/color"

	"github.com/soniakeys/quant"
)

// PaletteValue is one opaque palette color.
type PaletteValue struct {
	R uint8
	G uint8
	B uint8
}

// Luminance returns the perceived brightness of v, in the range [0, 1], using
// the ITU-R BT.601 weights 0.299, 0.587 and 0.114.
func (v PaletteValue) Luminance() float64 {
	return (0.299 * float64(v.R) / 255) +
		(0.587 * float64(v.G) / 255) +
		(0.114 * float64(v.B) / 255)
}

// RGBA implements the color.Color interface.
func (v PaletteValue) RGBA() (r uint32, g uint32, b uint32, a uint32) {
	return uint32(v.R) * 0x101, uint32(v.G) * 0x101, uint32(v.B) * 0x101, 0xFFFF
}

// Palette is an ordered list of colors. A pixel's palette index is its
// position in this list.
type Palette []PaletteValue

// ColorPalette returns p as a standard library palette of color.RGBA values.
func (p Palette) ColorPalette() color.Palette {
	ret := make(color.Palette, len(p))
	for i, v := range p {
		ret[i] = color.RGBA{R: v.R, G: v.G, B: v.B, A: 0xFF}
	}
	return ret
}

// Quant returns p as a github.com/soniakeys/quant Palette, for use with that
// package's Dither and other palette consumers.
func (p Palette) Quant() quant.Palette {
	return quant.LinearPalette{Palette: p.ColorPalette()}
}

// Paletted returns a paletted image whose pixels are the unpacked, row-major
// indices into p.
func (p Palette) Paletted(indices []byte, width int, height int) (*image.Paletted, error) {
	if (width < 0) || (height < 0) || (len(indices) != (width * height)) {
		return nil, ErrSizeMismatch
	}
	m := image.NewPaletted(image.Rect(0, 0, width, height), p.ColorPalette())
	copy(m.Pix, indices)
	return m, nil
}
