// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package qix

import (
	"bytes"
	"errors"
	"image"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/colorquant"
)

func TestEncodeHeader(tt *testing.T) {
	palette := colorquant.Palette{{R: 0x10, G: 0x20, B: 0x30}, {R: 0x40, G: 0x50, B: 0x60}}
	packed := []byte{0x01, 0x10, 0x10}

	buf := &bytes.Buffer{}
	if err := Encode(buf, palette, packed, 3, 2, bitpack.Depth4, nil); err != nil {
		tt.Fatalf("Encode: %v", err)
	}
	want := []byte{
		'Q', 'I', 'X', ' ', '1', 0x04, 0x00, 0x01,
		0x00, 0x03, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00,
		0x10, 0x20, 0x30, 0x40, 0x50, 0x60,
		0x01, 0x10, 0x10,
	}
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		tt.Fatalf("\ngot  % 02X\nwant % 02X", got, want)
	}
}

func TestRoundTrip(tt *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	testCases := []struct {
		width, height int
		depth         bitpack.Depth
		numColors     int
		options       *EncodeOptions
	}{
		{1, 1, bitpack.Depth4, 1, nil},
		{7, 5, bitpack.Depth4, 16, nil},
		{7, 5, bitpack.Depth4, 9, &EncodeOptions{Compress: true}},
		{64, 48, bitpack.Depth8, 256, &EncodeOptions{Compress: true, Level: zstd.SpeedBestCompression}},
		{64, 48, bitpack.Depth8, 200, nil},
		{0, 9, bitpack.Depth8, 3, &EncodeOptions{Compress: true}},
	}

	for _, tc := range testCases {
		palette := make(colorquant.Palette, tc.numColors)
		for i := range palette {
			u := rng.Uint32()
			palette[i] = colorquant.PaletteValue{R: uint8(u), G: uint8(u >> 8), B: uint8(u >> 16)}
		}
		indices := make([]byte, tc.width*tc.height)
		for i := range indices {
			indices[i] = uint8(rng.IntN(tc.numColors))
		}
		packed, err := bitpack.Pack(nil, indices, tc.depth)
		if err != nil {
			tt.Fatalf("%+v: Pack: %v", tc, err)
		}

		buf := &bytes.Buffer{}
		if err := Encode(buf, palette, packed, tc.width, tc.height, tc.depth, tc.options); err != nil {
			tt.Fatalf("%+v: Encode: %v", tc, err)
		}
		encoded := buf.Bytes()

		f, err := DecodeFrame(bytes.NewReader(encoded))
		if err != nil {
			tt.Fatalf("%+v: DecodeFrame: %v", tc, err)
		}
		if (f.Width != tc.width) || (f.Height != tc.height) || (f.Depth != tc.depth) {
			tt.Errorf("%+v: got %dx%d at %d bits", tc, f.Width, f.Height, f.Depth)
		}
		if !slices.Equal(f.Palette, palette) {
			tt.Errorf("%+v: palettes differ", tc)
		}
		if !bytes.Equal(f.Packed, packed) {
			tt.Errorf("%+v: packed indices differ", tc)
		}

		m, format, err := image.Decode(bytes.NewReader(encoded))
		if err != nil {
			tt.Fatalf("%+v: image.Decode: %v", tc, err)
		} else if format != "qix" {
			tt.Fatalf("%+v: format: got %q, want %q", tc, format, "qix")
		}
		p, ok := m.(*image.Paletted)
		if !ok {
			tt.Fatalf("%+v: got %T, want *image.Paletted", tc, m)
		}
		if !bytes.Equal(p.Pix, indices) {
			tt.Errorf("%+v: image pixels differ", tc)
		}

		config, err := DecodeConfig(bytes.NewReader(encoded))
		if err != nil {
			tt.Fatalf("%+v: DecodeConfig: %v", tc, err)
		}
		if (config.Width != tc.width) || (config.Height != tc.height) {
			tt.Errorf("%+v: DecodeConfig: got %dx%d", tc, config.Width, config.Height)
		}
	}
}

func TestEncodeErrors(tt *testing.T) {
	palette := colorquant.Palette{{}, {}}
	testCases := []struct {
		palette       colorquant.Palette
		packed        []byte
		width, height int
		depth         bitpack.Depth
		want          error
	}{
		{palette, []byte{0x00}, 65536, 1, bitpack.Depth8, ErrImageIsTooLarge},
		{palette, []byte{0x00}, 1, 1, bitpack.Depth(3), ErrBadArgument},
		{nil, []byte{0x00}, 1, 1, bitpack.Depth8, ErrBadArgument},
		{make(colorquant.Palette, 17), []byte{0x00}, 1, 1, bitpack.Depth4, ErrBadArgument},
		{palette, []byte{0x00}, 3, 1, bitpack.Depth4, ErrBadArgument},
		{palette, []byte{0x02}, 1, 1, bitpack.Depth8, ErrIndexOutOfRange},
		{palette, []byte{0x12}, 2, 1, bitpack.Depth4, ErrIndexOutOfRange},
	}

	for i, tc := range testCases {
		err := Encode(&bytes.Buffer{}, tc.palette, tc.packed, tc.width, tc.height, tc.depth, nil)
		if !errors.Is(err, tc.want) {
			tt.Errorf("i=%d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestDecodeErrors(tt *testing.T) {
	valid := []byte{
		'Q', 'I', 'X', ' ', '1', 0x08, 0x00, 0x01,
		0x00, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		0x10, 0x20, 0x30, 0x40, 0x50, 0x60,
		0x00, 0x01,
	}
	if _, err := DecodeFrame(bytes.NewReader(valid)); err != nil {
		tt.Fatalf("valid: %v", err)
	}

	testCases := []struct {
		offset int
		value  byte
		want   error
	}{
		{0x00, 'P', ErrNotAQIXFile},
		{0x04, '2', ErrNotAQIXFile},
		{0x05, 0x02, ErrNotAQIXFile},
		{0x06, 0x02, ErrNotAQIXFile},
		{0x0F, 0x01, ErrNotAQIXFile},
		{0x17, 0x02, ErrIndexOutOfRange},
	}

	for _, tc := range testCases {
		src := slices.Clone(valid)
		src[tc.offset] = tc.value
		if _, err := DecodeFrame(bytes.NewReader(src)); !errors.Is(err, tc.want) {
			tt.Errorf("offset=0x%02X: got %v, want %v", tc.offset, err, tc.want)
		}
	}

	if _, err := DecodeFrame(bytes.NewReader(valid[:len(valid)-1])); err == nil {
		tt.Errorf("truncated: got nil error")
	}
}
