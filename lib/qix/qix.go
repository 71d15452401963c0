// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package qix implements the QIX container format for quantized images.
//
// A QIX file is a 16 byte header, then the palette as 3 bytes (R, G, B) per
// entry, then the bit-packed palette indices (see package bitpack), which may
// be zstd compressed. The header is:
//
//   - 4 bytes magic, "QIX ".
//   - 1 byte version, '1'.
//   - 1 byte bits per index, 4 or 8.
//   - 1 byte flags. Bit 0 means that the indices are zstd compressed.
//   - 1 byte palette length minus 1.
//   - 2 bytes big-endian width.
//   - 2 bytes big-endian height.
//   - 4 reserved bytes, zero.
package qix

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/colorquant"
)

// Magic is the byte string prefix of every QIX image file.
const Magic = "QIX "

const (
	version = '1'

	flagZstd = 0x01
)

func init() {
	image.RegisterFormat("qix", Magic, Decode, DecodeConfig)
}

var (
	ErrBadArgument     = errors.New("qix: bad argument")
	ErrIndexOutOfRange = errors.New("qix: index out of range")
	ErrNotAQIXFile     = errors.New("qix: not a QIX file")
	ErrImageIsTooLarge = errors.New("qix: image is too large")
)

// Frame is the decoded contents of a QIX file.
type Frame struct {
	Palette colorquant.Palette
	// Packed holds Width*Height indices at Depth bits each.
	Packed []byte
	Width  int
	Height int
	Depth  bitpack.Depth
}

// Indices returns the unpacked, one byte per pixel indices.
func (f *Frame) Indices() ([]byte, error) {
	return bitpack.Unpack(nil, f.Packed, f.Width*f.Height, f.Depth)
}

// Image returns the frame as a paletted image.
func (f *Frame) Image() (*image.Paletted, error) {
	indices, err := f.Indices()
	if err != nil {
		return nil, err
	}
	return f.Palette.Paletted(indices, f.Width, f.Height)
}

type header struct {
	depth      bitpack.Depth
	compressed bool
	palette    colorquant.Palette
	width      int
	height     int
}

func decodeHeader(r io.Reader) (h header, retErr error) {
	buf := [16]byte{}
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, err
	} else if (buf[0] != Magic[0]) ||
		(buf[1] != Magic[1]) ||
		(buf[2] != Magic[2]) ||
		(buf[3] != Magic[3]) ||
		(buf[4] != version) ||
		((buf[6] &^ flagZstd) != 0) ||
		((buf[12] | buf[13] | buf[14] | buf[15]) != 0) {
		return header{}, ErrNotAQIXFile
	}

	h.depth = bitpack.Depth(buf[5])
	if !h.depth.Valid() {
		return header{}, ErrNotAQIXFile
	}
	h.compressed = (buf[6] & flagZstd) != 0
	n := int(buf[7]) + 1
	if n > h.depth.MaxColors() {
		return header{}, ErrNotAQIXFile
	}
	h.width = (int(buf[8]) << 8) | int(buf[9])
	h.height = (int(buf[10]) << 8) | int(buf[11])

	rgb := make([]byte, 3*n)
	if _, err := io.ReadFull(r, rgb); err != nil {
		return header{}, err
	}
	h.palette = make(colorquant.Palette, n)
	for i := range h.palette {
		h.palette[i] = colorquant.PaletteValue{
			R: rgb[3*i+0],
			G: rgb[3*i+1],
			B: rgb[3*i+2],
		}
	}
	return h, nil
}

// DecodeConfig reads a QIX image configuration from r.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := decodeHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: h.palette.ColorPalette(),
		Width:      h.width,
		Height:     h.height,
	}, nil
}

// DecodeFrame reads a QIX file from r, without unpacking its indices.
func DecodeFrame(r io.Reader) (*Frame, error) {
	h, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}

	packed := make([]byte, h.depth.PackedLen(h.width*h.height))
	if h.compressed {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if _, err := io.ReadFull(dec, packed); err != nil {
			return nil, fmt.Errorf("qix: reading compressed indices: %w", err)
		}
	} else if _, err := io.ReadFull(r, packed); err != nil {
		return nil, err
	}

	f := &Frame{
		Palette: h.palette,
		Packed:  packed,
		Width:   h.width,
		Height:  h.height,
		Depth:   h.depth,
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

// check returns an error if any index is not less than the palette length.
func (f *Frame) check() error {
	if len(f.Palette) == f.Depth.MaxColors() {
		return nil
	}
	n := f.Width * f.Height
	for p := range n {
		if int(bitpack.At(f.Packed, p, f.Depth)) >= len(f.Palette) {
			return ErrIndexOutOfRange
		}
	}
	return nil
}

// Decode reads a QIX image from r. The image is an *image.Paletted.
func Decode(r io.Reader) (image.Image, error) {
	f, err := DecodeFrame(r)
	if err != nil {
		return nil, err
	}
	return f.Image()
}

// EncodeOptions are optional arguments to Encode. The zero value is valid and
// means to use the default configuration.
type EncodeOptions struct {
	// Compress is whether to zstd compress the indices.
	Compress bool

	// Level is the zstd compression level. Zero means zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

// Encode writes a palette and its packed indices to w in the QIX format.
// packed holds width*height indices at depth d, as returned by
// colorquant.Quantize.
//
// options may be nil, which means to use the default configuration.
func Encode(w io.Writer, palette colorquant.Palette, packed []byte, width int, height int, d bitpack.Depth, options *EncodeOptions) error {
	if (width > 0xFFFF) || (height > 0xFFFF) {
		return ErrImageIsTooLarge
	} else if (width < 0) || (height < 0) || !d.Valid() ||
		(len(palette) == 0) || (len(palette) > d.MaxColors()) {
		return ErrBadArgument
	}
	n := d.PackedLen(width * height)
	if len(packed) < n {
		return ErrBadArgument
	}
	f := Frame{
		Palette: palette,
		Packed:  packed[:n],
		Width:   width,
		Height:  height,
		Depth:   d,
	}
	if err := f.check(); err != nil {
		return err
	}

	compress := (options != nil) && options.Compress

	buf := make([]byte, 16, 16+(3*len(palette)))
	copy(buf[:4], Magic)
	buf[0x04] = version
	buf[0x05] = uint8(d)
	if compress {
		buf[0x06] = flagZstd
	}
	buf[0x07] = uint8(len(palette) - 1)
	buf[0x08] = uint8(width >> 8)
	buf[0x09] = uint8(width >> 0)
	buf[0x0A] = uint8(height >> 8)
	buf[0x0B] = uint8(height >> 0)
	for _, v := range palette {
		buf = append(buf, v.R, v.G, v.B)
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}

	if !compress {
		_, err := w.Write(f.Packed)
		return err
	}

	level := zstd.SpeedDefault
	if options.Level != 0 {
		level = options.Level
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	if _, err := enc.Write(f.Packed); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
