// Package placeholder implements a synthetic document source that renders
// numbered placeholder pages. It lets the whole acquisition and render path
// run end to end without a real decoding engine: the payload carries the
// shared document magic followed by a short text descriptor.
package placeholder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/flipbook/source"
)

// prefix is the descriptor head: document magic plus the placeholder tag.
const prefix = "%PDF-P "

// Payload builds a placeholder document payload describing a document with
// the given page count and native page size.
func Payload(pages, width, height int) []byte {
	return []byte(fmt.Sprintf("%s%d %d %d\n", prefix, pages, width, height))
}

// Opener returns a source.Opener for placeholder payloads.
func Opener() source.Opener {
	return source.OpenerFunc(open)
}

func open(_ context.Context, data []byte) (source.Source, error) {
	s := string(data)
	if !strings.HasPrefix(s, prefix) {
		return nil, errors.New("not a placeholder document")
	}
	var pages, width, height int
	if _, err := fmt.Sscanf(s[len(prefix):], "%d %d %d", &pages, &width, &height); err != nil {
		return nil, fmt.Errorf("parse placeholder descriptor: %w", err)
	}
	if pages < 0 {
		return nil, errors.New("negative page count")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid page size %dx%d", width, height)
	}
	return &document{pages: pages, width: width, height: height}, nil
}

// New returns a placeholder document directly, bypassing the payload form.
func New(pages, width, height int) source.Source {
	return &document{pages: pages, width: width, height: height}
}

type document struct {
	pages  int
	width  int
	height int
	closed bool
}

func (d *document) PageCount() int { return d.pages }

func (d *document) Close() error {
	d.closed = true
	return nil
}

func (d *document) RenderPage(ctx context.Context, index int, scaleW, scaleH float64) (*source.Raster, error) {
	if d.closed {
		return nil, errors.New("document closed")
	}
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", index, d.pages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scaleW <= 0 || scaleH <= 0 {
		return nil, fmt.Errorf("invalid scale %gx%g", scaleW, scaleH)
	}

	base := d.renderBase(index)
	w := int(float64(d.width) * scaleW)
	h := int(float64(d.height) * scaleH)
	if w == d.width && h == d.height {
		return &source.Raster{Image: base, Width: w, Height: h}, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), base, base.Bounds(), draw.Over, nil)
	return &source.Raster{Image: dst, Width: w, Height: h}, nil
}

// renderBase draws the page at native size: white sheet, thin border, page
// number label. Odd and even pages shade differently so spreads are easy to
// tell apart in output.
func (d *document) renderBase(index int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))

	bg := color.RGBA{R: 250, G: 250, B: 248, A: 255}
	if index%2 == 1 {
		bg = color.RGBA{R: 244, G: 246, B: 250, A: 255}
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	border := color.RGBA{R: 120, G: 120, B: 128, A: 255}
	for x := 0; x < d.width; x++ {
		img.SetRGBA(x, 0, border)
		img.SetRGBA(x, d.height-1, border)
	}
	for y := 0; y < d.height; y++ {
		img.SetRGBA(0, y, border)
		img.SetRGBA(d.width-1, y, border)
	}

	label := fmt.Sprintf("Page %d", index+1)
	face := basicfont.Face7x13
	adv := font.MeasureString(face, label).Ceil()
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 40, G: 40, B: 48, A: 255}),
		Face: face,
		Dot: fixed.P(
			(d.width-adv)/2,
			d.height/2,
		),
	}
	dr.DrawString(label)
	return img
}
