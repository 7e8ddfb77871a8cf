package storage

import (
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"sync"
)

// DefaultPageLimit bounds the intake payload when no limit is configured.
const DefaultPageLimit = 20

// PageBuffer holds the pages of the document being captured, in document order.
type PageBuffer struct {
	pages  []model.CapturedPage
	limit  int
	mu     sync.Mutex
	logger *logger.Logger
}

// NewPageBuffer creates an empty buffer holding at most limit pages.
func NewPageBuffer(limit int, logger *logger.Logger) *PageBuffer {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &PageBuffer{
		pages:  make([]model.CapturedPage, 0),
		limit:  limit,
		logger: logger,
	}
}

// Append adds a page at the end. Pages are not deduplicated.
func (b *PageBuffer) Append(page model.CapturedPage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pages) >= b.limit {
		b.logger.Warning("Page buffer full (%d/%d), dropping page %s", len(b.pages), b.limit, page.ID)
		return model.ErrBufferFull
	}

	b.pages = append(b.pages, page)
	b.logger.Info("Page buffer size: %d/%d", len(b.pages), b.limit)
	return nil
}

// Remove deletes the page with the given id and releases its image.
// It returns false when no such page exists.
func (b *PageBuffer) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, page := range b.pages {
		if page.ID != id {
			continue
		}
		b.pages = append(b.pages[:i], b.pages[i+1:]...)
		b.release(page)
		return true
	}
	return false
}

// Get returns the page with the given id.
func (b *PageBuffer) Get(id string) (model.CapturedPage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, page := range b.pages {
		if page.ID == id {
			return page, true
		}
	}
	return model.CapturedPage{}, false
}

// Clear removes every page and releases their images.
func (b *PageBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, page := range b.pages {
		b.release(page)
	}
	b.pages = b.pages[:0]
}

// Detach empties the buffer without releasing images and returns the pages.
// Ownership of the images moves to the caller.
func (b *PageBuffer) Detach() []model.CapturedPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	pages := b.pages
	b.pages = make([]model.CapturedPage, 0)
	return pages
}

// Pages returns a copy of the buffered pages in order.
func (b *PageBuffer) Pages() []model.CapturedPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	pages := make([]model.CapturedPage, len(b.pages))
	copy(pages, b.pages)
	return pages
}

// Len returns the number of buffered pages.
func (b *PageBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

// Limit returns the maximum number of pages.
func (b *PageBuffer) Limit() int {
	return b.limit
}

func (b *PageBuffer) release(page model.CapturedPage) {
	if page.Image == nil {
		return
	}
	if err := page.Image.Release(); err != nil {
		b.logger.Error("Error releasing page %s: %v", page.ID, err)
	}
}
