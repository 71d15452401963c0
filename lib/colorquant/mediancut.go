// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package colorquant

import (
	"cmp"
	"slices"
)

// Pixel is one raster pixel's position and color. Label is the palette index
// (the median cut bucket or the k-means cluster) that the pixel belongs to.
type Pixel struct {
	X     uint16
	Y     uint16
	R     uint8
	G     uint8
	B     uint8
	Label uint8
}

// Channel is one of a Pixel's three color channels.
//
// When two or more channels tie for the widest range, the one declared first
// (Red, then Green, then Blue) is chosen.
type Channel uint8

const (
	Red   = Channel(0)
	Green = Channel(1)
	Blue  = Channel(2)
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	}
	return "blue"
}

func (p Pixel) channel(c Channel) uint8 {
	switch c {
	case Red:
		return p.R
	case Green:
		return p.G
	}
	return p.B
}

// WidestChannel returns the channel whose (max - min) range over pixels is
// largest, and that range. Ties go to the channel declared first.
func WidestChannel(pixels []Pixel) (Channel, uint8) {
	minR, minG, minB := uint8(0xFF), uint8(0xFF), uint8(0xFF)
	maxR, maxG, maxB := uint8(0x00), uint8(0x00), uint8(0x00)
	for _, p := range pixels {
		minR, maxR = min(minR, p.R), max(maxR, p.R)
		minG, maxG = min(minG, p.G), max(maxG, p.G)
		minB, maxB = min(minB, p.B), max(maxB, p.B)
	}
	if len(pixels) == 0 {
		return Red, 0
	}

	c, r := Red, maxR-minR
	if g := maxG - minG; g > r {
		c, r = Green, g
	}
	if b := maxB - minB; b > r {
		c, r = Blue, b
	}
	return c, r
}

// SplitMode selects which median cut buckets are split.
type SplitMode uint8

const (
	// SplitAll splits every bucket once per round, doubling the bucket count
	// each round. It suits power-of-two color counts.
	SplitAll = SplitMode(0)
	// SplitLargest splits one bucket per step: the one whose widest channel
	// range is largest, breaking ties by lowest bucket index.
	SplitLargest = SplitMode(1)
)

// bucket is the half-open range [lo, hi) of the shared pixel slice. Buckets
// are identified by their position in the bucket list, which is also their
// palette index.
type bucket struct {
	lo, hi int
}

func (b bucket) len() int { return b.hi - b.lo }

// MedianCut partitions pixels into at most numColors buckets, sets every
// pixel's Label to its bucket index and returns each bucket's mean color.
//
// The pixels slice is reordered in place. The returned Palette is shorter
// than numColors if a bucket with fewer than 2 pixels is reached before
// numColors buckets exist.
func MedianCut(pixels []Pixel, numColors int, mode SplitMode) Palette {
	p, _ := medianCut(pixels, numColors, mode)
	return p
}

func medianCut(pixels []Pixel, numColors int, mode SplitMode) (palette Palette, stoppedEarly bool) {
	if (len(pixels) == 0) || (numColors < 1) {
		return Palette{}, false
	}

	buckets := make([]bucket, 1, numColors)
	buckets[0] = bucket{0, len(pixels)}

	if mode == SplitLargest {
		stoppedEarly = splitLargest(pixels, &buckets, numColors)
	} else {
		stoppedEarly = splitAll(pixels, &buckets, numColors)
	}

	palette = make(Palette, len(buckets))
	for id, b := range buckets {
		var sumR, sumG, sumB uint64
		for i := b.lo; i < b.hi; i++ {
			p := &pixels[i]
			sumR += uint64(p.R)
			sumG += uint64(p.G)
			sumB += uint64(p.B)
			p.Label = uint8(id)
		}
		if n := uint64(b.len()); n > 0 {
			palette[id] = PaletteValue{
				R: uint8(sumR / n),
				G: uint8(sumG / n),
				B: uint8(sumB / n),
			}
		}
	}
	return palette, stoppedEarly
}

func splitAll(pixels []Pixel, buckets *[]bucket, numColors int) (stoppedEarly bool) {
	for len(*buckets) < numColors {
		// Only the buckets that exist at the start of the round are split.
		n := len(*buckets)
		for i := range n {
			b := (*buckets)[i]
			if b.len() < 2 {
				return true
			}
			c, _ := WidestChannel(pixels[b.lo:b.hi])
			lower, upper := split(pixels, b, c)
			(*buckets)[i] = lower
			*buckets = append(*buckets, upper)
			if len(*buckets) == numColors {
				return false
			}
		}
	}
	return false
}

func splitLargest(pixels []Pixel, buckets *[]bucket, numColors int) (stoppedEarly bool) {
	type widest struct {
		c Channel
		r int
	}
	measure := func(b bucket) widest {
		if b.len() < 2 {
			return widest{r: -1}
		}
		c, r := WidestChannel(pixels[b.lo:b.hi])
		return widest{c, int(r)}
	}

	cache := make([]widest, 1, numColors)
	cache[0] = measure((*buckets)[0])
	for len(*buckets) < numColors {
		best := -1
		for i, w := range cache {
			if (w.r >= 0) && ((best < 0) || (w.r > cache[best].r)) {
				best = i
			}
		}
		if best < 0 {
			return true
		}

		lower, upper := split(pixels, (*buckets)[best], cache[best].c)
		(*buckets)[best] = lower
		*buckets = append(*buckets, upper)
		cache[best] = measure(lower)
		cache = append(cache, measure(upper))
	}
	return false
}

// split sorts b's pixels by channel c and cuts them at the population
// midpoint. The lower half keeps b's slot and the upper half is new.
func split(pixels []Pixel, b bucket, c Channel) (lower bucket, upper bucket) {
	s := pixels[b.lo:b.hi]
	slices.SortStableFunc(s, func(p Pixel, q Pixel) int {
		return cmp.Compare(p.channel(c), q.channel(c))
	})
	mid := b.lo + (b.len() / 2)
	return bucket{b.lo, mid}, bucket{mid, b.hi}
}
