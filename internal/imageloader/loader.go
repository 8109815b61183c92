package imageloader

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Source describes exactly one image input. When more than one field is set,
// the first non-empty field in declaration order wins: Data, Image, Path, URL.
type Source struct {
	Data  []byte
	Image image.Image
	Path  string
	URL   string
}

// Loader normalizes a Source into a decoded image. Decoding happens fully in
// memory; no temporary files are created.
type Loader struct {
	client *http.Client
	logger *zap.Logger
}

// NewLoader constructs a Loader. The client is used for URL sources and must
// not be nil.
func NewLoader(client *http.Client, logger *zap.Logger) *Loader {
	return &Loader{
		client: client,
		logger: logger.Named("imageloader"),
	}
}

// Load resolves a Source into a decoded image.
//
// It fails with ErrNoInputSource when the source is empty, a PathNotFoundError
// when a path source does not point to a regular file, an InvalidImageError
// when the bytes cannot be decoded, and a FetchError when a URL source
// responds with a non-2xx status.
func (l *Loader) Load(ctx context.Context, src Source) (image.Image, error) {
	switch {
	case src.Data != nil:
		return l.fromData(src.Data)
	case src.Image != nil:
		return src.Image, nil
	case src.Path != "":
		return l.fromPath(src.Path)
	case src.URL != "":
		return l.fromURL(ctx, src.URL)
	default:
		return nil, ErrNoInputSource
	}
}

func (l *Loader) fromData(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &InvalidImageError{Err: err}
	}
	l.logger.Debug("decoded image", zap.String("format", format))
	return img, nil
}

func (l *Loader) fromPath(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, &PathNotFoundError{Path: path}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// The file exists; failing to read it is an image problem, not a
		// missing-path problem.
		return nil, &InvalidImageError{Err: err}
	}
	return l.fromData(data)
}

func (l *Loader) fromURL(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.logger.Warn("image fetch failed",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return l.fromData(data)
}
