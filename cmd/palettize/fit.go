// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/gift"
)

// fit resizes src to exactly w×h pixels. The "crop" mode fills the frame and
// trims the overflow evenly from both sides. The "letterbox" mode fits the
// whole image inside the frame and pads it, centered, with opaque black.
func fit(src image.Image, w int, h int, mode string) *image.NRGBA {
	if mode == "letterbox" {
		g := gift.New(gift.ResizeToFit(w, h, gift.LanczosResampling))
		b := g.Bounds(src.Bounds())
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		g.DrawAt(dst, src, image.Pt((w-b.Dx())/2, (h-b.Dy())/2), gift.CopyOperator)
		return dst
	}

	g := gift.New(gift.ResizeToFill(w, h, gift.LanczosResampling, gift.CenterAnchor))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
