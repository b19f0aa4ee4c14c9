package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/local/reportcompiler/internal/imagerender"
)

func runPageImage(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("page-image", "<pdf> <page> <out.png|out.jpg>", stderr)
	dpi := fs.Int("dpi", 150, "render resolution")
	quality := fs.Int("quality", 90, "JPEG quality")
	gray := fs.Bool("gray", false, "render in grayscale")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("%w: page-image needs a pdf, a page number and an output path", ErrUsage)
	}
	page, err := strconv.Atoi(fs.Arg(1))
	if err != nil || page < 1 {
		return fmt.Errorf("%w: page must be a positive number, got %q", ErrUsage, fs.Arg(1))
	}

	opts := imagerender.Options{DPI: *dpi, Quality: *quality, Color: imagerender.ColorRGB}
	if *gray {
		opts.Color = imagerender.ColorGray
	}
	if err := imagerender.WritePage(fs.Arg(0), page, fs.Arg(2), opts); err != nil {
		return err
	}
	fmt.Fprintln(stdout, fs.Arg(2))
	return nil
}
