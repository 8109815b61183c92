package imageloader

import (
	"errors"
	"fmt"
)

// ErrNoInputSource is returned when a Source carries no image at all.
var ErrNoInputSource = errors.New("must supply one of data, image, path, or url")

// PathNotFoundError is returned when a path source does not reference an
// existing regular file.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("no such file: %s", e.Path)
}

// InvalidImageError is returned when image bytes cannot be decoded. It wraps
// the underlying decoder error.
type InvalidImageError struct {
	Err error
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image: %v", e.Err)
}

// Unwrap returns the underlying decode error for errors.Is/As support.
func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

// FetchError is returned when fetching a URL source yields a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed: %s", e.URL, e.Status)
}
