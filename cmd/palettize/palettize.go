// Copyright 2025 The Palettize Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// palettize reduces images to a small palette of colors and converts between
// the resulting formats.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/gif"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/lmittmann/tint"

	"github.com/nigeltao/palettize/internal/nie"
	"github.com/nigeltao/palettize/lib/bitpack"
	"github.com/nigeltao/palettize/lib/colorquant"
	"github.com/nigeltao/palettize/lib/qix"
	"github.com/nigeltao/palettize/lib/raster"
	"github.com/nigeltao/palettize/lib/rgb343"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	decodeFlag   = flag.Bool("decode", false, "whether to decode the input")
	quantizeFlag = flag.Bool("quantize", false, "whether to quantize the input")

	algorithmFlag = flag.String("algorithm", "mediancut", "mediancut, mediancut-largest or kmeans")
	colorsFlag    = flag.Int("colors", 16, "maximum number of palette colors")
	darkestFlag   = flag.Bool("darkest", false, "whether to move the darkest color, blackened, to index 0")
	depthFlag     = flag.Int("depth", 4, "bits per palette index, 4 or 8")
	fitFlag       = flag.String("fit", "", "resize to WxH before quantizing")
	fitModeFlag   = flag.String("fitmode", "crop", "crop or letterbox")
	orderFlag     = flag.String("order", "argb", "raster channel order, argb or abgr")
	outputFlag    = flag.String("output", "", "output format")
	rgb332Flag    = flag.String("rgb332", "", "decode raw RGB332 bytes of the given WxH")
	scaleFlag     = flag.String("scale", "1,1,1", "red, green and blue RGB332 scale factors")
	seedFlag      = flag.Uint64("seed", 0, "k-means random seed, 0 means unpredictable")
	verboseFlag   = flag.Bool("v", false, "whether to log debug messages")
	zstdFlag      = flag.Bool("zstd", false, "whether to zstd compress QIX indices")
)

const usageStr = `palettize reduces images to a small palette of colors.

Usage: choose one of

    palettize -quantize [path]
    palettize -decode [path]

The path to the input image file is optional. If omitted, stdin is read.

When quantizing you can also pass these flags (before the path):

    -algorithm=mediancut (this is the default)
    -algorithm=mediancut-largest
    -algorithm=kmeans
    -colors=N (default 16, at most 2 to the power of -depth)
    -depth=4 (this is the default) or -depth=8
    -darkest
    -seed=N
    -order=argb (this is the default) or -order=abgr
    -fit=WxH and -fitmode=crop (this is the default) or -fitmode=letterbox
    -zstd
    -output=bmp
    -output=gif
    -output=nie-bn8
    -output=png
    -output=qix (this is the default)
    -output=rgb343 (direct color, no palette)

When decoding you can also pass these flags (before the path):

    -output=bmp
    -output=nie-bn8
    -output=png (this is the default)
    -rgb332=WxH and -scale=R,G,B to read raw RGB332 bytes

The output is written to stdout. Pass -v to log debug messages to stderr.

Quantize inputs BMP, GIF, JPEG, PNG, QIX, TIFF or WEBP.
Decode inputs the same formats, or raw RGB332.
`

var (
	ErrBadAlgorithmFlag = errors.New("main: bad -algorithm flag")
	ErrBadColorsFlag    = errors.New("main: bad -colors flag")
	ErrBadDepthFlag     = errors.New("main: bad -depth flag")
	ErrBadFitFlag       = errors.New("main: bad -fit flag")
	ErrBadFitModeFlag   = errors.New("main: bad -fitmode flag")
	ErrBadOrderFlag     = errors.New("main: bad -order flag")
	ErrBadOutputFlag    = errors.New("main: bad -output flag")
	ErrBadRGB332Flag    = errors.New("main: bad -rgb332 flag")
	ErrBadScaleFlag     = errors.New("main: bad -scale flag")
)

func main() {
	if err := main1(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func main1() error {
	flag.Usage = func() { os.Stderr.WriteString(usageStr) }
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	inFile := os.Stdin
	switch flag.NArg() {
	case 0:
		// No-op.
	case 1:
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		inFile = f
	default:
		return errors.New("too many filenames; the maximum is one")
	}

	if *decodeFlag && !*quantizeFlag {
		c, err := decodeConfigFromFlags()
		if err != nil {
			return err
		}
		return decode(os.Stdout, inFile, c)
	}
	if !*decodeFlag && *quantizeFlag {
		c, err := quantizeConfigFromFlags(logger)
		if err != nil {
			return err
		}
		return quantize(os.Stdout, inFile, c)
	}
	return errors.New("must specify exactly one of -decode, -quantize or -help")
}

type quantizeConfig struct {
	algorithm colorquant.Algorithm
	colors    int
	depth     bitpack.Depth
	darkest   bool
	order     raster.Format
	fitW      int
	fitH      int
	fitMode   string
	output    string
	zstd      bool
	options   colorquant.Options
}

func quantizeConfigFromFlags(logger *slog.Logger) (c quantizeConfig, retErr error) {
	alg, err := colorquant.ParseAlgorithm(*algorithmFlag)
	if err != nil {
		return c, ErrBadAlgorithmFlag
	}
	order, err := raster.ParseFormat(*orderFlag)
	if err != nil {
		return c, ErrBadOrderFlag
	}
	c = quantizeConfig{
		algorithm: alg,
		colors:    *colorsFlag,
		depth:     bitpack.Depth(*depthFlag),
		darkest:   *darkestFlag,
		order:     order,
		fitMode:   *fitModeFlag,
		output:    *outputFlag,
		zstd:      *zstdFlag,
		options: colorquant.Options{
			Seed:   *seedFlag,
			Logger: logger,
		},
	}
	if (*depthFlag != 4) && (*depthFlag != 8) {
		return c, ErrBadDepthFlag
	}
	if *fitFlag != "" {
		if c.fitW, c.fitH, err = parseSize(*fitFlag); err != nil {
			return c, ErrBadFitFlag
		}
	}
	return c, c.validate()
}

func (c *quantizeConfig) validate() error {
	if !c.depth.Valid() {
		return ErrBadDepthFlag
	} else if (c.colors < 1) || (c.colors > c.depth.MaxColors()) {
		return ErrBadColorsFlag
	}
	switch c.fitMode {
	case "crop", "letterbox":
		// No-op.
	default:
		return ErrBadFitModeFlag
	}
	switch c.output {
	case "", "bmp", "gif", "nie-bn8", "png", "qix", "rgb343":
		// No-op.
	default:
		return ErrBadOutputFlag
	}
	return nil
}

func quantize(w io.Writer, r io.Reader, c quantizeConfig) error {
	src, _, err := image.Decode(r)
	if err != nil {
		return err
	}
	if c.fitW > 0 {
		src = fit(src, c.fitW, c.fitH, c.fitMode)
	}
	buf, err := raster.FromImage(src, c.order)
	if err != nil {
		return err
	}
	width, height := buf.Width(), buf.Height()

	if c.output == "rgb343" {
		dst, err := rgb343.Encode(buf)
		if err != nil {
			return err
		}
		_, err = w.Write(dst)
		return err
	}

	palette, packed, err := colorquant.Quantize(buf, c.colors, c.depth, c.algorithm, &c.options)
	if err != nil {
		return err
	}
	if c.darkest {
		old := colorquant.ReindexDarkestToZero(palette, packed, c.depth)
		if c.options.Logger != nil {
			c.options.Logger.Debug("main: moved darkest color", "from", old)
		}
	}

	switch c.output {
	case "", "qix":
		return qix.Encode(w, palette, packed, width, height, c.depth, &qix.EncodeOptions{
			Compress: c.zstd,
		})

	case "nie-bn8":
		if err := colorquant.ApplyPacked(buf, palette, packed, c.depth, &c.options); err != nil {
			return err
		}
		dst, err := nie.EncodeRasterBN8(buf)
		if err != nil {
			return err
		}
		_, err = w.Write(dst)
		return err
	}

	indices, err := bitpack.Unpack(nil, packed, width*height, c.depth)
	if err != nil {
		return err
	}
	m, err := palette.Paletted(indices, width, height)
	if err != nil {
		return err
	}
	return encodeImage(w, m, c.output)
}

type decodeConfig struct {
	output  string
	rgb332W int
	rgb332H int
	scale   [3]float32
}

func decodeConfigFromFlags() (c decodeConfig, retErr error) {
	c.output = *outputFlag
	switch c.output {
	case "", "bmp", "nie-bn8", "png":
		// No-op.
	default:
		return c, ErrBadOutputFlag
	}
	if *rgb332Flag != "" {
		var err error
		if c.rgb332W, c.rgb332H, err = parseSize(*rgb332Flag); err != nil {
			return c, ErrBadRGB332Flag
		}
	}
	scale, err := parseScale(*scaleFlag)
	if err != nil {
		return c, ErrBadScaleFlag
	}
	c.scale = scale
	return c, nil
}

func decode(w io.Writer, r io.Reader, c decodeConfig) error {
	var src image.Image
	if c.rgb332W > 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		buf, err := raster.NewImage(c.rgb332W, c.rgb332H, raster.Format32ARGB)
		if err != nil {
			return err
		}
		if err := rgb343.ExpandRGB332(buf, data, c.scale); err != nil {
			return fmt.Errorf("main: %dx%d RGB332 input: %w", c.rgb332W, c.rgb332H, err)
		}
		src = buf.ToNRGBA()
	} else {
		m, _, err := image.Decode(r)
		if err != nil {
			return err
		}
		src = m
	}

	if c.output == "nie-bn8" {
		dst, err := nie.EncodeBN8(src)
		if err != nil {
			return err
		}
		_, err = w.Write(dst)
		return err
	}
	return encodeImage(w, src, c.output)
}

func encodeImage(w io.Writer, m image.Image, output string) error {
	switch output {
	case "bmp":
		return imgio.BMPEncoder()(w, m)
	case "gif":
		return gif.Encode(w, m, nil)
	}
	return imgio.PNGEncoder()(w, m)
}

// parseSize parses "WxH", where both are positive and fit in 16 bits.
func parseSize(s string) (w int, h int, retErr error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, strconv.ErrSyntax
	}
	if w, retErr = strconv.Atoi(ws); retErr != nil {
		return 0, 0, retErr
	}
	if h, retErr = strconv.Atoi(hs); retErr != nil {
		return 0, 0, retErr
	}
	if (w <= 0) || (w > 0xFFFF) || (h <= 0) || (h > 0xFFFF) {
		return 0, 0, strconv.ErrRange
	}
	return w, h, nil
}

// parseScale parses three comma-separated, non-negative factors.
func parseScale(s string) (ret [3]float32, retErr error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return ret, strconv.ErrSyntax
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return ret, err
		} else if !(f >= 0) {
			return ret, strconv.ErrRange
		}
		ret[i] = float32(f)
	}
	return ret, nil
}
