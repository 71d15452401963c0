// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package colorquant

import (
	"math/rand/v2"
)

// MaxKMeansRounds bounds the number of assignment rounds that KMeans runs.
const MaxKMeansRounds = 24

// KMeans clusters pixels into numColors clusters, sets every pixel's Label to
// its cluster index and returns the cluster centroids.
//
// Labels start uniformly random, drawn from rng. A nil rng means to use an
// unpredictable seed. Iteration stops when no label changes or after
// MaxKMeansRounds rounds.
//
// A cluster that has no members when its centroid is computed keeps its
// previous centroid. In the first round there is no previous centroid, so it
// takes the color of a randomly chosen pixel instead.
func KMeans(pixels []Pixel, numColors int, rng *rand.Rand) Palette {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p, _ := kMeans(pixels, numColors, rng)
	return p
}

type clusterSum struct {
	r, g, b uint64
	n       uint64
}

func kMeans(pixels []Pixel, numColors int, rng *rand.Rand) (palette Palette, rounds int) {
	if (len(pixels) == 0) || (numColors < 1) {
		return Palette{}, 0
	}

	for i := range pixels {
		pixels[i].Label = uint8(rng.IntN(numColors))
	}
	return lloyd(pixels, numColors, rng)
}

// lloyd runs the k-means rounds starting from the pixels' current labels,
// which must all be less than numColors. rng is only used to reseed clusters
// that are empty in the first round.
func lloyd(pixels []Pixel, numColors int, rng *rand.Rand) (palette Palette, rounds int) {
	centroids := make(Palette, numColors)
	sums := make([]clusterSum, numColors)
	for rounds = 1; rounds <= MaxKMeansRounds; rounds++ {
		clear(sums)
		for _, p := range pixels {
			s := &sums[p.Label]
			s.r += uint64(p.R)
			s.g += uint64(p.G)
			s.b += uint64(p.B)
			s.n++
		}
		for i, s := range sums {
			if s.n > 0 {
				centroids[i] = PaletteValue{
					R: uint8(s.r / s.n),
					G: uint8(s.g / s.n),
					B: uint8(s.b / s.n),
				}
			} else if rounds == 1 {
				q := pixels[rng.IntN(len(pixels))]
				centroids[i] = PaletteValue{R: q.R, G: q.G, B: q.B}
			}
		}

		changed := false
		for i := range pixels {
			p := &pixels[i]
			if label := nearest(centroids, p.R, p.G, p.B); label != p.Label {
				p.Label = label
				changed = true
			}
		}
		if !changed {
			return centroids, rounds
		}
	}
	return centroids, MaxKMeansRounds
}

// nearest returns the index of the centroid closest to (r, g, b) by squared
// Euclidean distance. Ties go to the lowest index.
func nearest(centroids Palette, r uint8, g uint8, b uint8) uint8 {
	best, bestDist := 0, int32(0x7FFFFFFF)
	for i, c := range centroids {
		dr := int32(r) - int32(c.R)
		dg := int32(g) - int32(c.G)
		db := int32(b) - int32(c.B)
		if d := (dr * dr) + (dg * dg) + (db * db); d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}
