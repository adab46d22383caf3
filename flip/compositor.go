package flip

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/wudi/flipbook/source"
)

// ErrNoSpread reports that the current spread has no rendered pages yet.
var ErrNoSpread = errors.New("current spread not rendered")

// Compose renders the visible spread for the given turn progress, folding
// the turning page over the spine. Progress 0 is the resting spread;
// positive progress turns forward, negative backward. The turning page is
// composited from the current and adjacent cached rasters.
func (c *Controller) Compose(progress float64) (image.Image, error) {
	spread := c.store.CommittedSpread()
	left, right := c.spreadPages(spread)
	if left == nil && right == nil {
		return nil, fmt.Errorf("compose spread %d: %w", spread, ErrNoSpread)
	}

	halfW, pageH := spreadDims(left, right)
	canvas := image.NewRGBA(image.Rect(0, 0, 2*halfW, pageH))
	drawPage(canvas, left, 0, halfW, pageH)
	drawPage(canvas, right, halfW, halfW, pageH)

	p := clamp(progress, -1, 1)
	if p == 0 {
		return canvas, nil
	}

	if p > 0 {
		// Forward turn: the right page folds over the spine. Past halfway
		// its back face shows the next spread's left page.
		nextLeft, nextRight := c.spreadPages(spread + 1)
		drawPage(canvas, nextRight, halfW, halfW, pageH)
		if p < 0.5 {
			w := int(float64(halfW) * (1 - 2*p))
			drawFold(canvas, right, halfW, w, pageH, false)
		} else {
			w := int(float64(halfW) * (2*p - 1))
			drawFold(canvas, nextLeft, halfW, w, pageH, true)
		}
		return canvas, nil
	}

	// Backward turn: the left page folds over the spine; its back face is
	// the previous spread's right page.
	prevLeft, prevRight := c.spreadPages(spread - 1)
	drawPage(canvas, prevLeft, 0, halfW, pageH)
	q := -p
	if q < 0.5 {
		w := int(float64(halfW) * (1 - 2*q))
		drawFold(canvas, left, halfW, w, pageH, true)
	} else {
		w := int(float64(halfW) * (2*q - 1))
		drawFold(canvas, prevRight, halfW, w, pageH, false)
	}
	return canvas, nil
}

// spreadPages resolves the cache entries backing a spread: entry 2s is the
// left page, 2s+1 the right.
func (c *Controller) spreadPages(spread int) (left, right *source.Raster) {
	if spread < 0 {
		return nil, nil
	}
	left, _ = c.pipeline.Raster(2 * spread)
	right, _ = c.pipeline.Raster(2*spread + 1)
	return left, right
}

func spreadDims(pages ...*source.Raster) (halfW, pageH int) {
	for _, r := range pages {
		if r != nil {
			return r.Width, r.Height
		}
	}
	return 0, 0
}

// drawPage scales a raster into a halfW x pageH slot starting at x.
func drawPage(dst *image.RGBA, r *source.Raster, x, halfW, pageH int) {
	if r == nil || halfW == 0 {
		return
	}
	rect := image.Rect(x, 0, x+halfW, pageH)
	draw.ApproxBiLinear.Scale(dst, rect, r.Image, r.Image.Bounds(), draw.Src, nil)
}

// drawFold renders the foreshortened turning page: width w anchored at the
// spine, extending left or right of it.
func drawFold(dst *image.RGBA, r *source.Raster, spineX, w, pageH int, leftOfSpine bool) {
	if r == nil || w <= 0 {
		return
	}
	var rect image.Rectangle
	if leftOfSpine {
		rect = image.Rect(spineX-w, 0, spineX, pageH)
	} else {
		rect = image.Rect(spineX, 0, spineX+w, pageH)
	}
	draw.ApproxBiLinear.Scale(dst, rect, r.Image, r.Image.Bounds(), draw.Src, nil)
}

// SettleProgressAt reports the eased progress value at a fraction t of the
// settle duration, for callers precomputing frames.
func SettleProgressAt(from, target, t float64) float64 {
	t = clamp(t, 0, 1)
	return from + (target-from)*easeOutCubic(t)
}
