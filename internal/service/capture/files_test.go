package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cvscanner/internal/logger"
	"cvscanner/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// minimalPDF is enough for content sniffing; it is never parsed.
var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func newTestSelector(r Rasterizer) *FileSelector {
	return NewFileSelector(r, testConfig(), logger.NewConsole(io.Discard))
}

func TestFileSelector_KeepsOrderAndSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	first := writePNG(t, dir, "first.png")
	notes := writeFile(t, dir, "notes.txt", []byte("just some text, not an image"))
	second := writePNG(t, dir, "second.png")

	pages := newTestSelector(nil).SelectFiles(context.Background(), []SelectedFile{
		{Name: "first.png", Path: first},
		{Name: "notes.txt", Path: notes},
		{Name: "missing.png", Path: filepath.Join(dir, "missing.png")},
		{Name: "second.png", Path: second},
	}, model.DeviceProfile{})

	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Equal(t, model.SourceFileUpload, p.SourceType)
		assert.Equal(t, "image/png", p.MimeType)
		assert.NotEmpty(t, p.ID)
	}
	assert.NotEqual(t, pages[0].ID, pages[1].ID)
	assert.Equal(t, first, pages[0].Image.(*model.FileImage).Path())
	assert.Equal(t, second, pages[1].Image.(*model.FileImage).Path())

	_, err := os.Stat(notes)
	assert.NoError(t, err, "files the user owns are never deleted")
}

func TestFileSelector_TypeComesFromContent(t *testing.T) {
	dir := t.TempDir()
	disguised := writeFile(t, dir, "photo.jpg", []byte("plain text pretending to be a photo"))
	scan := writePNG(t, dir, "scan.dat")

	pages := newTestSelector(nil).SelectFiles(context.Background(), []SelectedFile{
		{Name: "photo.jpg", Path: disguised},
		{Name: "scan.dat", Path: scan},
	}, model.DeviceProfile{})

	require.Len(t, pages, 1)
	assert.Equal(t, "image/png", pages[0].MimeType)
}

func TestFileSelector_OwnedInvalidFilesAreRemoved(t *testing.T) {
	dir := t.TempDir()
	junk := writeFile(t, dir, "upload-1", []byte("not an image"))

	pages := newTestSelector(nil).SelectFiles(context.Background(), []SelectedFile{
		{Name: "junk.bin", Path: junk, Owned: true},
	}, model.DeviceProfile{})

	assert.Empty(t, pages)
	_, err := os.Stat(junk)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSelector_OwnedPageRemovedOnRelease(t *testing.T) {
	dir := t.TempDir()
	upload := writePNG(t, dir, "upload-2")

	pages := newTestSelector(nil).SelectFiles(context.Background(), []SelectedFile{
		{Name: "page.png", Path: upload, Owned: true},
	}, model.DeviceProfile{})
	require.Len(t, pages, 1)

	require.NoError(t, pages[0].Image.Release())
	require.NoError(t, pages[0].Image.Release())

	_, err := os.Stat(upload)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSelector_RasterizesPDF(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "cv.pdf", minimalPDF)
	rasterizer := &stubRasterizer{pages: 3}

	pages := newTestSelector(rasterizer).SelectFiles(context.Background(), []SelectedFile{
		{Name: "cv.pdf", Path: pdf},
	}, model.DeviceProfile{IsLowPowerDevice: true})

	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, "image/jpeg", p.MimeType)
		data, err := p.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []byte("pdf-page-"+string(rune('0'+i))), data)
	}
	assert.Equal(t, []int{96}, rasterizer.dpis)
}

func TestFileSelector_PDFWithoutRasterizer(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "cv.pdf", minimalPDF)

	pages := newTestSelector(nil).SelectFiles(context.Background(), []SelectedFile{
		{Name: "cv.pdf", Path: pdf},
	}, model.DeviceProfile{})

	require.Len(t, pages, 1)
	assert.Equal(t, "application/pdf", pages[0].MimeType)
	assert.Equal(t, ".pdf", pages[0].Extension())
}

func TestFileSelector_BrokenPDFIsSkipped(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "cv.pdf", minimalPDF)
	photo := writePNG(t, dir, "photo.png")

	pages := newTestSelector(&stubRasterizer{err: errBroken}).SelectFiles(context.Background(), []SelectedFile{
		{Name: "cv.pdf", Path: pdf},
		{Name: "photo.png", Path: photo},
	}, model.DeviceProfile{})

	require.Len(t, pages, 1)
	assert.Equal(t, "image/png", pages[0].MimeType)
}
