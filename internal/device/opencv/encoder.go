package opencv

import (
	"fmt"

	"cvscanner/internal/service/capture"

	"gocv.io/x/gocv"
)

// Encoder encodes OpenCV frames to JPEG or PNG.
type Encoder struct{}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes frame with the requested quality.
func (e *Encoder) Encode(f capture.Frame, params capture.EncodeParams) ([]byte, error) {
	fr, ok := f.(*frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", f)
	}
	if fr.mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	var buf *gocv.NativeByteBuffer
	var err error
	switch params.MimeType {
	case "image/png":
		buf, err = gocv.IMEncode(gocv.PNGFileExt, fr.mat)
	default:
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, fr.mat, []int{int(gocv.IMWriteJpegQuality), params.Quality})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
