// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package colorquant reduces a full-color raster to a small palette and one
// palette index per pixel.
//
// Two algorithms are provided. Median cut recursively splits the pixel
// population, by population count, along the color channel with the widest
// range. K-means iteratively moves each pixel to its nearest cluster centroid.
// Both produce a Palette and a bit-packed index buffer (see package bitpack).
//
// ReindexDarkestToZero post-processes a result so that palette index 0 holds
// black, and ApplyPalette writes a palette and its indices back into a
// raster.
package colorquant

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"strings"
	"sync"

	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/raster"
)

var (
	ErrImageIsTooLarge = errors.New("colorquant: image is too large")
	ErrIndexOutOfRange = errors.New("colorquant: index out of range")
	ErrSizeMismatch    = errors.New("colorquant: size mismatch")
	ErrUnknownName     = errors.New("colorquant: unknown algorithm name")
)

// Algorithm selects how Quantize builds its palette.
type Algorithm uint8

const (
	// AlgorithmMedianCut is median cut that splits every bucket each round.
	AlgorithmMedianCut = Algorithm(0)
	// AlgorithmMedianCutLargest is median cut that splits only the bucket with
	// the widest channel range each step.
	AlgorithmMedianCutLargest = Algorithm(1)
	// AlgorithmKMeans is Lloyd's k-means clustering in RGB space.
	AlgorithmKMeans = Algorithm(2)
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmMedianCut:
		return "mediancut"
	case AlgorithmMedianCutLargest:
		return "mediancut-largest"
	case AlgorithmKMeans:
		return "kmeans"
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// ParseAlgorithm is the inverse of Algorithm.String.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mediancut", "median-cut":
		return AlgorithmMedianCut, nil
	case "mediancut-largest", "median-cut-largest":
		return AlgorithmMedianCutLargest, nil
	case "kmeans", "k-means":
		return AlgorithmKMeans, nil
	}
	return 0, ErrUnknownName
}

// Options are optional arguments to Quantize and ApplyPalette. The zero value
// is valid and means to use the default configuration.
type Options struct {
	// Seed seeds the k-means random source. Zero means to use a different,
	// unpredictable seed on every call.
	Seed uint64

	// Workers is the maximum number of goroutines used to read pixels out of,
	// or write pixels into, a raster. Zero means min(GOMAXPROCS, 8). The
	// output does not depend on the number of workers.
	Workers int

	// Logger receives diagnostics. Nil means to discard them.
	Logger *slog.Logger
}

const defaultWorkerCap = 8

func (o *Options) logger() *slog.Logger {
	if (o != nil) && (o.Logger != nil) {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o *Options) workers() int {
	if (o != nil) && (o.Workers > 0) {
		return o.Workers
	}
	return max(1, min(runtime.GOMAXPROCS(0), defaultWorkerCap))
}

func (o *Options) rand() *rand.Rand {
	if (o != nil) && (o.Seed != 0) {
		return rand.New(rand.NewPCG(o.Seed, o.Seed^0x9E3779B97F4A7C15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// checkContract panics if the arguments violate Quantize's preconditions.
// These are programming errors, not recoverable conditions.
func checkContract(numColors int, d bitpack.Depth, alg Algorithm) {
	if !d.Valid() {
		panic(fmt.Sprintf("colorquant: bit depth %d is not 4 or 8", d))
	}
	if (numColors < 1) || (numColors > d.MaxColors()) {
		panic(fmt.Sprintf("colorquant: %d colors do not fit in %d-bit indices", numColors, d))
	}
	if alg > AlgorithmKMeans {
		panic(fmt.Sprintf("colorquant: unknown %v", alg))
	}
}

// Quantize reduces buf to at most numColors colors. It returns the palette and
// the palette indices packed at depth d.
//
// numColors must be in [1, d.MaxColors()] and d must be bitpack.Depth4 or
// bitpack.Depth8, otherwise Quantize panics.
//
// buf is locked for the duration of the pixel read. If its Format is not
// supported or its memory is unavailable, Quantize returns a nil palette, nil
// indices and raster.ErrUnsupportedFormat or raster.ErrNullBuffer.
//
// Median cut may return fewer than numColors colors when buckets run out of
// pixels to split. K-means always returns numColors colors.
//
// options may be nil, which means to use the default configuration.
func Quantize(buf raster.Buffer, numColors int, d bitpack.Depth, alg Algorithm, options *Options) (Palette, []byte, error) {
	checkContract(numColors, d, alg)
	log := options.logger()

	pixels, width, err := extract(buf, options)
	if err != nil {
		log.Error("colorquant: cannot read raster",
			"err", err,
			"format", formatName(buf))
		return nil, nil, err
	}

	var palette Palette
	switch alg {
	case AlgorithmMedianCut, AlgorithmMedianCutLargest:
		mode := SplitAll
		if alg == AlgorithmMedianCutLargest {
			mode = SplitLargest
		}
		var stoppedEarly bool
		palette, stoppedEarly = medianCut(pixels, numColors, mode)
		if stoppedEarly {
			log.Debug("colorquant: median cut stopped early",
				"requested", numColors,
				"produced", len(palette))
		}

	case AlgorithmKMeans:
		var rounds int
		palette, rounds = kMeans(pixels, numColors, options.rand())
		log.Debug("colorquant: k-means finished", "rounds", rounds)
	}

	packed := make([]byte, d.PackedLen(len(pixels)))
	for _, p := range pixels {
		bitpack.Set(packed, (int(p.Y)*width)+int(p.X), p.Label, d)
	}
	log.Debug("colorquant: quantized",
		"algorithm", alg.String(),
		"pixels", len(pixels),
		"colors", len(palette),
		"depth", int(d))
	return palette, packed, nil
}

// QuantizeImage is like Quantize but reads from a standard library image.
// The image's alpha channel is ignored.
func QuantizeImage(m image.Image, numColors int, d bitpack.Depth, alg Algorithm, options *Options) (Palette, []byte, error) {
	buf, err := raster.FromImage(m, raster.Format32ARGB)
	if err != nil {
		return nil, nil, err
	}
	return Quantize(buf, numColors, d, alg, options)
}

// extract locks buf and returns one Pixel per raster pixel, in row-major
// order, along with the raster width.
func extract(buf raster.Buffer, options *Options) (pixels []Pixel, width int, retErr error) {
	if buf == nil {
		return nil, 0, raster.ErrNullBuffer
	} else if err := buf.Lock(); err != nil {
		return nil, 0, err
	}
	defer buf.Unlock()

	v, err := raster.ViewOf(buf)
	if err != nil {
		return nil, 0, err
	}
	width, height := buf.Width(), buf.Height()
	if (width > 65536) || (height > 65536) {
		return nil, 0, ErrImageIsTooLarge
	}

	pixels = make([]Pixel, width*height)
	forEachRowRange(height, options.workers(), func(y0 int, y1 int) {
		for y := y0; y < y1; y++ {
			row := pixels[y*width : (y+1)*width]
			for x := range row {
				r, g, b := v.RGB(x, y)
				row[x] = Pixel{
					X: uint16(x),
					Y: uint16(y),
					R: r,
					G: g,
					B: b,
				}
			}
		}
	})
	return pixels, width, nil
}

// formatName describes buf's Format for log messages. buf may be nil.
func formatName(buf raster.Buffer) string {
	if buf == nil {
		return "nil"
	}
	return buf.Format().String()
}

// forEachRowRange calls fn over disjoint [y0, y1) row ranges that together
// cover [0, height), using up to workers goroutines.
func forEachRowRange(height int, workers int, fn func(y0 int, y1 int)) {
	workers = min(workers, height)
	if workers <= 1 {
		fn(0, height)
		return
	}

	var wg sync.WaitGroup
	for worker := range workers {
		y0, y1 := splitRange(height, workers, worker)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}
	wg.Wait()
}

func splitRange(length int, workers int, workerIndex int) (int, int) {
	chunkSize := length / workers
	remainder := length % workers
	start := (workerIndex * chunkSize) + min(workerIndex, remainder)
	end := start + chunkSize
	if workerIndex < remainder {
		end++
	}
	return start, end
}

// Quantizer implements the image/draw.Quantizer interface, so that it can be
// passed to the image/gif encoder.
type Quantizer struct {
	Algorithm Algorithm
	Options   *Options
}

// Quantize appends up to cap(p)-len(p) colors to p. It implements
// draw.Quantizer.
func (q *Quantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	n := min(cap(p)-len(p), 256)
	if n <= 0 {
		return p
	}
	palette, _, err := QuantizeImage(m, n, bitpack.Depth8, q.Algorithm, q.Options)
	if err != nil {
		return p
	}
	return append(p, palette.ColorPalette()...)
}
