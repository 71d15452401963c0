// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package nie implements the NIE (Naive) image file format, BN8 flavor only.
//
// It is an incomplete implementation (and hence an internal package). BN8 is
// a byte-exact, lossless dump of every pixel, which makes it a convenient
// format for comparing rasters and paletted images in tests, and a simple
// uncompressed output for the palettize command.
//
// NIE is specified at
// https://github.com/google/wuffs/blob/main/doc/spec/nie-spec.md
package nie

import (
	"errors"
	"image"
	"image/color"

	"github.com/nigeltao/palettize/lib/raster"
)

// Magic is the byte string prefix of every BN8 NIE file.
const Magic = "\x6E\xC3\xAF\x45\xFFbn8"

var (
	ErrBadArgument          = errors.New("nie: bad argument")
	ErrNotANIEFile          = errors.New("nie: not a NIE BN8 file")
	ErrUnsupportedImageType = errors.New("nie: unsupported image type")
)

func appendHeader(dst []byte, width int, height int) []byte {
	dst = append(dst, Magic...)
	dst = appendU32LE(dst, uint32(width))
	return appendU32LE(dst, uint32(height))
}

// appendBN8 appends one pixel, replicating each 8-bit channel to 16 bits.
func appendBN8(dst []byte, r uint8, g uint8, b uint8, a uint8) []byte {
	return append(dst, b, b, g, g, r, r, a, a)
}

// EncodeBN8 encodes m as a NIE file in BGRA order, non-premultiplied alpha, 8
// bytes per pixel (16 bits per channel).
//
// Premultiplied images with partially transparent pixels are rejected, as
// their non-premultiplied colors are not exact.
func EncodeBN8(m image.Image) ([]byte, error) {
	b := m.Bounds()
	if (b.Dx() > 0x7FFFFFFF) || (b.Dy() > 0x7FFFFFFF) {
		return nil, ErrBadArgument
	}
	ret := make([]byte, 0, 16+(8*b.Dx()*b.Dy()))
	ret = appendHeader(ret, b.Dx(), b.Dy())

	switch m := m.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				at := m.NRGBAAt(x, y)
				ret = appendBN8(ret, at.R, at.G, at.B, at.A)
			}
		}
		return ret, nil

	case *image.Paletted:
		lut := make([][8]byte, len(m.Palette))
		for i, c := range m.Palette {
			at, ok := opaqueOrNRGBA(c)
			if !ok {
				return nil, ErrUnsupportedImageType
			}
			copy(lut[i][:], appendBN8(nil, at.R, at.G, at.B, at.A))
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := int(m.ColorIndexAt(x, y))
				if i >= len(lut) {
					return nil, ErrUnsupportedImageType
				}
				ret = append(ret, lut[i][:]...)
			}
		}
		return ret, nil
	}

	exact := (m.ColorModel() == color.NRGBAModel) || (m.ColorModel() == color.NRGBA64Model)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			at := color.NRGBA64Model.Convert(m.At(x, y)).(color.NRGBA64)
			if !exact && (at.A != 0x0000) && (at.A != 0xFFFF) {
				return nil, ErrUnsupportedImageType
			}
			ret = append(ret,
				uint8(at.B>>0), uint8(at.B>>8),
				uint8(at.G>>0), uint8(at.G>>8),
				uint8(at.R>>0), uint8(at.R>>8),
				uint8(at.A>>0), uint8(at.A>>8),
			)
		}
	}
	return ret, nil
}

// opaqueOrNRGBA returns c as a color.NRGBA if that conversion is exact.
func opaqueOrNRGBA(c color.Color) (color.NRGBA, bool) {
	switch c := c.(type) {
	case color.NRGBA:
		return c, true
	case color.RGBA:
		if (c.A != 0x00) && (c.A != 0xFF) {
			return color.NRGBA{}, false
		}
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, true
	}
	return color.NRGBA{}, false
}

// EncodeRasterBN8 encodes buf's pixels as a NIE file. The raster's opacity
// byte is treated as non-premultiplied alpha.
func EncodeRasterBN8(buf raster.Buffer) ([]byte, error) {
	if err := buf.Lock(); err != nil {
		return nil, err
	}
	defer buf.Unlock()

	v, err := raster.ViewOf(buf)
	if err != nil {
		return nil, err
	}
	w, h := buf.Width(), buf.Height()
	ret := make([]byte, 0, 16+(8*w*h))
	ret = appendHeader(ret, w, h)
	for y := range h {
		for x := range w {
			r, g, b := v.RGB(x, y)
			ret = appendBN8(ret, r, g, b, v.Pix[(y*v.Stride)+(4*x)])
		}
	}
	return ret, nil
}

// DecodeBN8 decodes a NIE BN8 file. Each 16-bit channel keeps only its high
// byte.
func DecodeBN8(src []byte) (*image.NRGBA, error) {
	if (len(src) < 16) || (string(src[:8]) != Magic) {
		return nil, ErrNotANIEFile
	}
	w := uint64(readU32LE(src[8:]))
	h := uint64(readU32LE(src[12:]))
	if (w > 0xFFFFFF) || (h > 0xFFFFFF) || (uint64(len(src)-16) != (8 * w * h)) {
		return nil, ErrNotANIEFile
	}

	m := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	src = src[16:]
	for i := 0; i < len(m.Pix); i += 4 {
		p := src[2*i : 2*i+8 : 2*i+8]
		m.Pix[i+0] = p[5]
		m.Pix[i+1] = p[3]
		m.Pix[i+2] = p[1]
		m.Pix[i+3] = p[7]
	}
	return m, nil
}

func appendU32LE(b []byte, u uint32) []byte {
	return append(b,
		uint8(u>>0),
		uint8(u>>8),
		uint8(u>>16),
		uint8(u>>24),
	)
}

func readU32LE(b []byte) uint32 {
	return (uint32(b[0]) << 0) |
		(uint32(b[1]) << 8) |
		(uint32(b[2]) << 16) |
		(uint32(b[3]) << 24)
}
