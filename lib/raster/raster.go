// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package raster models the 32 bits per pixel buffers that the palettize
// module reads from and writes to.
//
// A buffer is a byte-addressable grid of 4-byte pixels. The first byte of
// each pixel is always the opacity (alpha) channel. The remaining three bytes
// hold red, green and blue in one of two orders, named by a Format tag. The
// tag values match the CoreVideo OSType codes for the same layouts, so that a
// Buffer can wrap platform pixel buffers without translation.
//
// Buffer memory is only addressable while the buffer is locked. Every
// operation in this module that touches a Buffer locks it for the duration of
// one read or write pass and unlocks it on every exit path.
package raster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadArgument       = errors.New("raster: bad argument")
	ErrNullBuffer        = errors.New("raster: null buffer")
	ErrUnsupportedFormat = errors.New("raster: unsupported format")
)

// Format is a 32-bit channel-order tag.
type Format uint32

const (
	// Format32ARGB holds bytes A, R, G, B.
	Format32ARGB = Format(0x00000020)
	// Format32ABGR holds bytes A, B, G, R.
	Format32ABGR = Format(0x41424752)

	// Format32BGRA and Format32RGBA are recognized by String but are not
	// supported by any operation.
	Format32BGRA = Format(0x42475241)
	Format32RGBA = Format(0x52474241)
)

// Supported returns whether f is one of the two channel orders that this
// module can read and write.
func (f Format) Supported() bool {
	return (f == Format32ARGB) || (f == Format32ABGR)
}

// offsets returns the byte offsets, within a 4-byte pixel, of the red, green
// and blue channels.
func (f Format) offsets() (r int, g int, b int, ok bool) {
	switch f {
	case Format32ARGB:
		return 1, 2, 3, true
	case Format32ABGR:
		return 3, 2, 1, true
	}
	return 0, 0, 0, false
}

func (f Format) String() string {
	switch f {
	case Format32ARGB:
		return "a8r8g8b8"
	case Format32ABGR:
		return "a8b8g8r8"
	case Format32BGRA:
		return "b8g8r8a8"
	case Format32RGBA:
		return "r8g8b8a8"
	}
	return fmt.Sprintf("Format(0x%08X)", uint32(f))
}

// ParseFormat parses a case-insensitive "argb" or "abgr" (or the longer
// "a8r8g8b8" and "a8b8g8r8" spellings).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "argb", "a8r8g8b8":
		return Format32ARGB, nil
	case "abgr", "a8b8g8r8":
		return Format32ABGR, nil
	}
	return 0, ErrUnsupportedFormat
}

// Buffer is a lockable 32 bits per pixel raster.
//
// Bytes returns the pixel memory. It is only valid between a successful Lock
// and the matching Unlock, and is nil when the memory is unavailable.
type Buffer interface {
	Lock() error
	Unlock()

	Width() int
	Height() int
	Stride() int
	Format() Format
	Bytes() []byte
}

// View reads and writes individual pixels of locked buffer memory.
type View struct {
	Pix    []byte
	Stride int
	Format Format

	r, g, b int
}

// NewView returns a View over pix. It returns ErrUnsupportedFormat or
// ErrNullBuffer if f or pix cannot be used.
func NewView(pix []byte, stride int, f Format) (View, error) {
	r, g, b, ok := f.offsets()
	if !ok {
		return View{}, ErrUnsupportedFormat
	}
	if pix == nil {
		return View{}, ErrNullBuffer
	}
	return View{
		Pix:    pix,
		Stride: stride,
		Format: f,
		r:      r,
		g:      g,
		b:      b,
	}, nil
}

// ViewOf returns a View of a locked Buffer, checking that its memory covers
// every row.
func ViewOf(buf Buffer) (View, error) {
	v, err := NewView(buf.Bytes(), buf.Stride(), buf.Format())
	if err != nil {
		return View{}, err
	}
	w, h := buf.Width(), buf.Height()
	if (w < 0) || (h < 0) || (v.Stride < (4 * w)) {
		return View{}, ErrBadArgument
	} else if (h > 0) && (len(v.Pix) < ((h-1)*v.Stride + (4 * w))) {
		return View{}, ErrBadArgument
	}
	return v, nil
}

// RGB returns the red, green and blue values of the pixel at (x, y).
func (v View) RGB(x int, y int) (r uint8, g uint8, b uint8) {
	i := (y * v.Stride) + (4 * x)
	p := v.Pix[i : i+4 : i+4]
	return p[v.r], p[v.g], p[v.b]
}

// SetRGB sets the pixel at (x, y) to the opaque color (r, g, b).
func (v View) SetRGB(x int, y int, r uint8, g uint8, b uint8) {
	i := (y * v.Stride) + (4 * x)
	p := v.Pix[i : i+4 : i+4]
	p[0] = 0xFF
	p[v.r] = r
	p[v.g] = g
	p[v.b] = b
}

// ClearAlpha sets the opacity byte of every pixel in buf to zero, leaving the
// color channels untouched.
func ClearAlpha(buf Buffer) error {
	if !buf.Format().Supported() {
		return ErrUnsupportedFormat
	}
	if err := buf.Lock(); err != nil {
		return err
	}
	defer buf.Unlock()

	v, err := ViewOf(buf)
	if err != nil {
		return err
	}
	w, h := buf.Width(), buf.Height()
	for y := range h {
		row := v.Pix[y*v.Stride:]
		for x := range w {
			row[4*x] = 0x00
		}
	}
	return nil
}
