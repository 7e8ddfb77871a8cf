package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cvscanner/internal/model"
)

type stubFrame struct {
	seq    int
	closed *int
}

func (f *stubFrame) Close() error {
	*f.closed++
	return nil
}

type stubStream struct {
	mu           sync.Mutex
	reads        int
	closes       int
	framesClosed int
	readErr      error
}

func (s *stubStream) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.reads++
	return &stubFrame{seq: s.reads, closed: &s.framesClosed}, nil
}

func (s *stubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type openCall struct {
	device model.CameraDevice
	res    Resolution
}

type stubCamera struct {
	mu      sync.Mutex
	opens   []openCall
	stream  *stubStream
	openErr error
}

func (c *stubCamera) Open(ctx context.Context, device model.CameraDevice, res Resolution) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens = append(c.opens, openCall{device, res})
	if c.openErr != nil {
		return nil, c.openErr
	}
	if c.stream == nil {
		c.stream = &stubStream{}
	}
	return c.stream, nil
}

type stubEncoder struct {
	mu     sync.Mutex
	params []EncodeParams
	err    error
}

func (e *stubEncoder) Encode(frame Frame, params EncodeParams) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.params = append(e.params, params)
	return []byte(fmt.Sprintf("frame-%d-q%d", frame.(*stubFrame).seq, params.Quality)), nil
}

type stubRasterizer struct {
	pages int
	err   error
	dpis  []int
}

func (r *stubRasterizer) Rasterize(ctx context.Context, path string, dpi int, quality int) ([][]byte, error) {
	r.dpis = append(r.dpis, dpi)
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]byte, r.pages)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("pdf-page-%d", i))
	}
	return out, nil
}

var errBroken = errors.New("device busy")
