// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package colorquant

import (
	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/raster"
)

// ApplyPalette overwrites every pixel of buf with its palette color. indices
// holds one unpacked, row-major palette index per pixel. The opacity byte of
// every pixel is set to 0xFF.
//
// The raster is left unmodified if an error is returned: either
// ErrSizeMismatch (len(indices) is not width*height), ErrIndexOutOfRange, or
// an error from locking or viewing buf.
//
// options may be nil, which means to use the default configuration.
func ApplyPalette(buf raster.Buffer, palette Palette, indices []byte, options *Options) error {
	log := options.logger()
	if err := applyPalette(buf, palette, indices, options); err != nil {
		log.Error("colorquant: cannot apply palette",
			"err", err,
			"format", formatName(buf),
			"indices", len(indices))
		return err
	}
	return nil
}

func applyPalette(buf raster.Buffer, palette Palette, indices []byte, options *Options) error {
	if buf == nil {
		return raster.ErrNullBuffer
	} else if err := buf.Lock(); err != nil {
		return err
	}
	defer buf.Unlock()

	v, err := raster.ViewOf(buf)
	if err != nil {
		return err
	}
	width, height := buf.Width(), buf.Height()
	if len(indices) != (width * height) {
		return ErrSizeMismatch
	}
	for _, i := range indices {
		if int(i) >= len(palette) {
			return ErrIndexOutOfRange
		}
	}

	forEachRowRange(height, options.workers(), func(y0 int, y1 int) {
		for y := y0; y < y1; y++ {
			row := indices[y*width : (y+1)*width]
			for x, i := range row {
				c := palette[i]
				v.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	})
	return nil
}

// ApplyPacked is like ApplyPalette but takes indices packed at depth d.
func ApplyPacked(buf raster.Buffer, palette Palette, packed []byte, d bitpack.Depth, options *Options) error {
	if buf == nil {
		options.logger().Error("colorquant: cannot apply palette", "err", raster.ErrNullBuffer)
		return raster.ErrNullBuffer
	}
	indices, err := bitpack.Unpack(nil, packed, buf.Width()*buf.Height(), d)
	if err != nil {
		options.logger().Error("colorquant: cannot unpack indices", "err", err)
		return err
	}
	return ApplyPalette(buf, palette, indices, options)
}
