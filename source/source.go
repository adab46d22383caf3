// Package source defines the document-source capability the viewer renders
// through. Concrete decoders (PDF engines, test fixtures) live behind the
// Source interface; the viewer never inspects document internals itself.
package source

import (
	"context"
	"image"
)

// RenderScale is the fixed oversampling factor applied to every page
// rasterization. Pages are rendered at twice their native size.
const RenderScale = 2.0

// Raster is one rendered page. It is immutable after creation; ownership
// passes to the cache that stores it.
type Raster struct {
	Image  image.Image
	Width  int
	Height int

	// Padding marks the duplicate appended to pad the final spread of an
	// odd-page document. The presentation layer must not render a padding
	// entry as a turnable page.
	Padding bool
}

// Source is an open document handle.
type Source interface {
	// PageCount reports the number of source pages.
	PageCount() int

	// RenderPage rasterizes the page at the given zero-based index, scaled
	// by scaleW/scaleH relative to the page's native size.
	RenderPage(ctx context.Context, index int, scaleW, scaleH float64) (*Raster, error)

	// Close releases the underlying document resources. The handle must not
	// be used afterwards.
	Close() error
}

// Opener turns a validated document payload into a Source.
type Opener interface {
	Open(ctx context.Context, data []byte) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, data []byte) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, data []byte) (Source, error) {
	return f(ctx, data)
}
