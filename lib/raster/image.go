// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package raster

import (
	"image"
	"image/color"
	"sync"
)

// Image is an in-memory Buffer. Use NewImage or FromImage to create one.
//
// Lock gives the caller exclusive access: a second Lock blocks until the
// first holder calls Unlock. Pix may be accessed directly by a caller that
// knows no other goroutine is using the Image.
type Image struct {
	Pix []byte

	width  int
	height int
	stride int
	format Format

	mu     sync.Mutex
	locked bool
}

var _ Buffer = (*Image)(nil)

// NewImage returns a zeroed (fully transparent black) image with a stride of
// 4*width bytes.
func NewImage(width int, height int, f Format) (*Image, error) {
	return NewImageStride(width, height, 4*width, f)
}

// NewImageStride is like NewImage but with an explicit stride, which must be
// at least 4*width. Platform buffers often pad rows.
func NewImageStride(width int, height int, stride int, f Format) (*Image, error) {
	if (width < 0) || (width > 65535) ||
		(height < 0) || (height > 65535) ||
		(stride < (4 * width)) {
		return nil, ErrBadArgument
	}
	return &Image{
		Pix:    make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		format: f,
	}, nil
}

func (m *Image) Lock() error {
	if m == nil {
		return ErrNullBuffer
	}
	m.mu.Lock()
	m.locked = true
	return nil
}

func (m *Image) Unlock() {
	m.locked = false
	m.mu.Unlock()
}

// The accessors below return zero values for a nil *Image, so that callers
// can describe a buffer whose Lock failed with ErrNullBuffer.

func (m *Image) Width() int {
	if m == nil {
		return 0
	}
	return m.width
}

func (m *Image) Height() int {
	if m == nil {
		return 0
	}
	return m.height
}

func (m *Image) Stride() int {
	if m == nil {
		return 0
	}
	return m.stride
}

func (m *Image) Format() Format {
	if m == nil {
		return 0
	}
	return m.format
}

// Bytes returns the pixel memory, or nil if the image is nil or not locked.
func (m *Image) Bytes() []byte {
	if (m == nil) || !m.locked {
		return nil
	}
	return m.Pix
}

// FromImage converts src to an Image in the given channel order.
// Colors are stored non-premultiplied and the alpha value goes in the first
// byte of each pixel.
func FromImage(src image.Image, f Format) (*Image, error) {
	ri, gi, bi, ok := f.offsets()
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	b := src.Bounds()
	m, err := NewImage(b.Dx(), b.Dy(), f)
	if err != nil {
		return nil, err
	}

	put := func(x int, y int, r uint8, g uint8, b uint8, a uint8) {
		i := (y * m.stride) + (4 * x)
		m.Pix[i+0] = a
		m.Pix[i+ri] = r
		m.Pix[i+gi] = g
		m.Pix[i+bi] = b
	}

	switch src := src.(type) {
	case *image.NRGBA:
		for y := range m.height {
			for x := range m.width {
				c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
				put(x, y, c.R, c.G, c.B, c.A)
			}
		}

	case *image.RGBA:
		for y := range m.height {
			for x := range m.width {
				c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
				if (c.A != 0x00) && (c.A != 0xFF) {
					c.R = uint8((uint32(c.R) * 0xFF) / uint32(c.A))
					c.G = uint8((uint32(c.G) * 0xFF) / uint32(c.A))
					c.B = uint8((uint32(c.B) * 0xFF) / uint32(c.A))
				}
				put(x, y, c.R, c.G, c.B, c.A)
			}
		}

	case *image.Paletted:
		lut := make([]color.NRGBA, len(src.Palette))
		for i, c := range src.Palette {
			lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		for y := range m.height {
			for x := range m.width {
				if i := int(src.ColorIndexAt(b.Min.X+x, b.Min.Y+y)); i < len(lut) {
					c := lut[i]
					put(x, y, c.R, c.G, c.B, c.A)
				}
			}
		}

	default:
		for y := range m.height {
			for x := range m.width {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				put(x, y, c.R, c.G, c.B, c.A)
			}
		}
	}
	return m, nil
}

// ToNRGBA returns a copy of m as a standard library image. It returns nil if
// m's Format is not supported.
func (m *Image) ToNRGBA() *image.NRGBA {
	ri, gi, bi, ok := m.format.offsets()
	if !ok {
		return nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for y := range m.height {
		src := m.Pix[y*m.stride:]
		row := dst.Pix[y*dst.Stride:]
		for x := range m.width {
			p := src[4*x : 4*x+4]
			row[4*x+0] = p[ri]
			row[4*x+1] = p[gi]
			row[4*x+2] = p[bi]
			row[4*x+3] = p[0]
		}
	}
	return dst
}
