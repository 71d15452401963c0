// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package rgb343 converts rasters to and from low bit depth direct color
// formats, the unpaletted alternative to package colorquant.
//
// RGB343 packs each pixel into a 10-bit word: 3 bits of red, 4 bits of green
// and 3 bits of blue, most significant first. Words are concatenated into a
// big-endian bit stream, so that every 4 pixels fill 5 bytes.
//
// RGB332 is one byte per pixel: 3 bits of red, 3 bits of green and 2 bits of
// blue, most significant first.
package rgb343

import (
	"errors"

	"github.com/nigeltao/palettize/lib/raster"
)

var (
	ErrSizeMismatch = errors.New("rgb343: size mismatch")
)

// EncodedLen returns the number of bytes that Encode produces for n pixels.
func EncodedLen(n int) int {
	return ((n * 10) + 7) / 8
}

// Word returns the 10-bit RGB343 word for the color (r, g, b).
func Word(r uint8, g uint8, b uint8) uint16 {
	return (uint16(r&0xE0) << 2) |
		(uint16(g&0xF0) >> 1) |
		(uint16(b) >> 5)
}

// Encode returns buf's pixels, in row-major order, as a RGB343 bit stream. The
// final byte is zero-padded.
func Encode(buf raster.Buffer) ([]byte, error) {
	if err := buf.Lock(); err != nil {
		return nil, err
	}
	defer buf.Unlock()

	v, err := raster.ViewOf(buf)
	if err != nil {
		return nil, err
	}
	w, h := buf.Width(), buf.Height()
	dst := make([]byte, 0, EncodedLen(w*h))

	// bits holds nBits pending bits, right-aligned.
	bits, nBits := uint32(0), uint32(0)
	for y := range h {
		for x := range w {
			bits = (bits << 10) | uint32(Word(v.RGB(x, y)))
			nBits += 10
			for nBits >= 8 {
				nBits -= 8
				dst = append(dst, uint8(bits>>nBits))
			}
			bits &= (1 << nBits) - 1
		}
	}
	if nBits > 0 {
		dst = append(dst, uint8(bits<<(8-nBits)))
	}
	return dst, nil
}

// ExpandRGB332 writes one RGB332 byte per pixel, from data, into buf. Each
// channel is scaled to the range [0, 255], multiplied by the matching scale
// factor (red, green, blue) and clamped. The opacity byte is set to 0xFF.
//
// len(data) must equal buf's width times height. buf is left unmodified on
// error.
func ExpandRGB332(buf raster.Buffer, data []byte, scale [3]float32) error {
	if err := buf.Lock(); err != nil {
		return err
	}
	defer buf.Unlock()

	v, err := raster.ViewOf(buf)
	if err != nil {
		return err
	}
	w, h := buf.Width(), buf.Height()
	if len(data) != (w * h) {
		return ErrSizeMismatch
	}

	var lut [3][8]uint8
	for c, maxValue := range [3]float32{7, 7, 3} {
		for i := range int(maxValue) + 1 {
			lut[c][i] = clamp(float32(i) * 255 * scale[c] / maxValue)
		}
	}

	for y := range h {
		row := data[y*w : (y+1)*w]
		for x, d := range row {
			v.SetRGB(x, y, lut[0][d>>5], lut[1][(d>>2)&7], lut[2][d&3])
		}
	}
	return nil
}

// clamp truncates f toward zero and clamps it to [0, 255].
func clamp(f float32) uint8 {
	if !(f > 0) {
		return 0
	} else if f >= 255 {
		return 255
	}
	return uint8(f)
}
