package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer renders PDF pages to JPEG with MuPDF.
type Rasterizer struct {
	maxPages int
}

// NewRasterizer creates a Rasterizer that renders at most maxPages pages.
func NewRasterizer(maxPages int) *Rasterizer {
	return &Rasterizer{maxPages: maxPages}
}

// Rasterize renders each page of the PDF at path.
func (r *Rasterizer) Rasterize(ctx context.Context, path string, dpi int, quality int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if r.maxPages > 0 && pageCount > r.maxPages {
		pageCount = r.maxPages
	}

	pages := make([][]byte, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(pageNum, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", pageNum+1, err)
		}
		pages = append(pages, buf.Bytes())
	}

	return pages, nil
}
