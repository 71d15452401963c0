// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/nigeltao/palettize/internal/nie"
	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/colorquant"
	"github.com/nigeltao/palettize/lib/qix"
	"github.com/nigeltao/palettize/lib/raster"
	"github.com/nigeltao/palettize/lib/rgb343"
)

// gradientPNG returns a PNG-encoded w×h image with smoothly varying colors.
func gradientPNG(tt *testing.T, w int, h int) []byte {
	tt.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			m.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, w-1)),
				G: uint8(y * 255 / max(1, h-1)),
				B: uint8((x + y) * 255 / max(1, w+h-2)),
				A: 0xFF,
			})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, m); err != nil {
		tt.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func defaultQuantizeConfig() quantizeConfig {
	return quantizeConfig{
		algorithm: colorquant.AlgorithmMedianCut,
		colors:    16,
		depth:     bitpack.Depth4,
		order:     raster.Format32ARGB,
		fitMode:   "crop",
		options: colorquant.Options{
			Seed:   1,
			Logger: slog.New(slog.DiscardHandler),
		},
	}
}

func TestQuantizeToQIX(tt *testing.T) {
	src := gradientPNG(tt, 30, 20)
	for _, zstd := range []bool{false, true} {
		c := defaultQuantizeConfig()
		c.darkest = true
		c.zstd = zstd

		dst := &bytes.Buffer{}
		if err := quantize(dst, bytes.NewReader(src), c); err != nil {
			tt.Fatalf("zstd=%t: quantize: %v", zstd, err)
		}
		f, err := qix.DecodeFrame(bytes.NewReader(dst.Bytes()))
		if err != nil {
			tt.Fatalf("zstd=%t: DecodeFrame: %v", zstd, err)
		}
		if (f.Width != 30) || (f.Height != 20) || (f.Depth != bitpack.Depth4) {
			tt.Fatalf("zstd=%t: got %dx%d at %d bits", zstd, f.Width, f.Height, f.Depth)
		}
		if len(f.Palette) != 16 {
			tt.Errorf("zstd=%t: palette length: got %d, want 16", zstd, len(f.Palette))
		}
		if f.Palette[0] != (colorquant.PaletteValue{}) {
			tt.Errorf("zstd=%t: palette[0]: got %v, want black", zstd, f.Palette[0])
		}
	}
}

func TestQuantizeOutputsAgree(tt *testing.T) {
	src := gradientPNG(tt, 17, 9)
	outputs := map[string][]byte{}
	for _, output := range []string{"gif", "nie-bn8", "png", "qix"} {
		c := defaultQuantizeConfig()
		c.algorithm = colorquant.AlgorithmKMeans
		c.depth = bitpack.Depth8
		c.colors = 40
		c.order = raster.Format32ABGR
		c.output = output

		dst := &bytes.Buffer{}
		if err := quantize(dst, bytes.NewReader(src), c); err != nil {
			tt.Fatalf("output=%s: quantize: %v", output, err)
		}
		outputs[output] = dst.Bytes()
	}

	want := outputs["nie-bn8"]
	for _, output := range []string{"gif", "png", "qix"} {
		m, format, err := image.Decode(bytes.NewReader(outputs[output]))
		if err != nil {
			tt.Fatalf("output=%s: image.Decode: %v", output, err)
		} else if format != output {
			tt.Fatalf("output=%s: format: got %q", output, format)
		}
		got, err := nie.EncodeBN8(m)
		if err != nil {
			tt.Fatalf("output=%s: EncodeBN8: %v", output, err)
		}
		if !bytes.Equal(got, want) {
			tt.Errorf("output=%s: pixels differ from nie-bn8", output)
		}
	}
}

func TestQuantizeRGB343(tt *testing.T) {
	c := defaultQuantizeConfig()
	c.output = "rgb343"
	dst := &bytes.Buffer{}
	if err := quantize(dst, bytes.NewReader(gradientPNG(tt, 5, 3)), c); err != nil {
		tt.Fatalf("quantize: %v", err)
	}
	if got, want := dst.Len(), rgb343.EncodedLen(15); got != want {
		tt.Fatalf("length: got %d, want %d", got, want)
	}
}

func TestFit(tt *testing.T) {
	src, err := png.Decode(bytes.NewReader(gradientPNG(tt, 40, 10)))
	if err != nil {
		tt.Fatalf("png.Decode: %v", err)
	}

	crop := fit(src, 16, 16, "crop")
	if got := crop.Bounds(); got != image.Rect(0, 0, 16, 16) {
		tt.Errorf("crop: bounds: got %v", got)
	}

	letterbox := fit(src, 16, 16, "letterbox")
	if got := letterbox.Bounds(); got != image.Rect(0, 0, 16, 16) {
		tt.Errorf("letterbox: bounds: got %v", got)
	}
	// A 4:1 image in a square frame leaves black bars above and below.
	if got := letterbox.NRGBAAt(8, 0); got != (color.NRGBA{0, 0, 0, 0xFF}) {
		tt.Errorf("letterbox: top bar: got %v", got)
	}
	if got := letterbox.NRGBAAt(15, 8); got.R < 0x80 {
		tt.Errorf("letterbox: middle right: got %v", got)
	}
}

func TestDecodeRGB332(tt *testing.T) {
	c := decodeConfig{
		output:  "nie-bn8",
		rgb332W: 2,
		rgb332H: 1,
		scale:   [3]float32{1, 1, 1},
	}
	dst := &bytes.Buffer{}
	if err := decode(dst, bytes.NewReader([]byte{0xE0, 0x03}), c); err != nil {
		tt.Fatalf("decode: %v", err)
	}
	m, err := nie.DecodeBN8(dst.Bytes())
	if err != nil {
		tt.Fatalf("DecodeBN8: %v", err)
	}
	want := []byte{0xFF, 0x00, 0x00, 0xFF, 0x00, 0x00, 0xFF, 0xFF}
	if !bytes.Equal(m.Pix, want) {
		tt.Fatalf("got % 02X, want % 02X", m.Pix, want)
	}

	err = decode(&bytes.Buffer{}, bytes.NewReader([]byte{0xE0}), c)
	if !errors.Is(err, rgb343.ErrSizeMismatch) {
		tt.Fatalf("short input: got %v, want %v", err, rgb343.ErrSizeMismatch)
	}
}

func TestValidate(tt *testing.T) {
	testCases := []struct {
		edit func(c *quantizeConfig)
		want error
	}{
		{func(c *quantizeConfig) {}, nil},
		{func(c *quantizeConfig) { c.colors = 17 }, ErrBadColorsFlag},
		{func(c *quantizeConfig) { c.colors = 0 }, ErrBadColorsFlag},
		{func(c *quantizeConfig) { c.depth, c.colors = bitpack.Depth8, 256 }, nil},
		{func(c *quantizeConfig) { c.depth = bitpack.Depth(5) }, ErrBadDepthFlag},
		{func(c *quantizeConfig) { c.fitMode = "stretch" }, ErrBadFitModeFlag},
		{func(c *quantizeConfig) { c.output = "ktx" }, ErrBadOutputFlag},
	}

	for i, tc := range testCases {
		c := defaultQuantizeConfig()
		tc.edit(&c)
		if got := c.validate(); !errors.Is(got, tc.want) {
			tt.Errorf("i=%d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestParseSize(tt *testing.T) {
	testCases := []struct {
		s      string
		w, h   int
		wantOK bool
	}{
		{"640x400", 640, 400, true},
		{"1X1", 1, 1, true},
		{"640", 0, 0, false},
		{"0x10", 0, 0, false},
		{"65536x1", 0, 0, false},
		{"ax1", 0, 0, false},
	}
	for _, tc := range testCases {
		w, h, err := parseSize(tc.s)
		if gotOK := err == nil; (gotOK != tc.wantOK) || (w != tc.w) || (h != tc.h) {
			tt.Errorf("%q: got (%d, %d, %v)", tc.s, w, h, err)
		}
	}
}

func TestParseScale(tt *testing.T) {
	if got, err := parseScale("1, 0.5,2"); (err != nil) || (got != [3]float32{1, 0.5, 2}) {
		tt.Errorf("valid: got (%v, %v)", got, err)
	}
	for _, s := range []string{"1,1", "1,1,x", "1,-1,1", "1,1,1,1"} {
		if _, err := parseScale(s); err == nil {
			tt.Errorf("%q: got nil error", s)
		}
	}
}
