package usecase

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"go.uber.org/zap"

	"github.com/example/facebox/internal/imageloader"
)

// DefaultMaxPixels is the largest pixel count (height × width) accepted for
// detection: the size of a 1024×1024 image.
const DefaultMaxPixels = 1 << 20

// TooLargeError is returned when an image exceeds the pixel budget. It
// carries the offending dimensions for caller display.
type TooLargeError struct {
	Height int
	Width  int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("Image is too large: (%d, %d)", e.Height, e.Width)
}

// Box is a face bounding box in image pixel space, with left <= right and
// top <= bottom.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Area returns the number of pixels the box covers.
func (b Box) Area() int {
	return (b.Right - b.Left) * (b.Bottom - b.Top)
}

// FaceDetector locates faces in a decoded image. Implementations must be safe
// for concurrent use.
type FaceDetector interface {
	Detect(img image.Image, upsample int) []image.Rectangle
}

// ImageLoader resolves an input source into a decoded image.
type ImageLoader interface {
	Load(ctx context.Context, src imageloader.Source) (image.Image, error)
}

// DetectionUseCase encapsulates the load, guard, detect, and crop flow.
type DetectionUseCase struct {
	loader    ImageLoader
	detector  FaceDetector
	maxPixels int
	logger    *zap.Logger
}

// NewDetectionUseCase constructs a new use case instance. A maxPixels of zero
// or less selects DefaultMaxPixels.
func NewDetectionUseCase(loader ImageLoader, detector FaceDetector, maxPixels int, logger *zap.Logger) *DetectionUseCase {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &DetectionUseCase{
		loader:    loader,
		detector:  detector,
		maxPixels: maxPixels,
		logger:    logger.Named("detection_usecase"),
	}
}

// FindLargestFace returns the bounding box of the biggest face in the image,
// or nil when no face is found. Finding no face is not an error.
func (uc *DetectionUseCase) FindLargestFace(ctx context.Context, src imageloader.Source, upsample int) (*Box, error) {
	img, err := uc.loadGuarded(ctx, src)
	if err != nil {
		return nil, err
	}
	return uc.largestBox(img, upsample), nil
}

// ExtractLargestFace returns the image cropped to the biggest face's bounding
// box, or nil when no face is found. The source image is never modified.
func (uc *DetectionUseCase) ExtractLargestFace(ctx context.Context, src imageloader.Source, upsample int) (image.Image, error) {
	img, err := uc.loadGuarded(ctx, src)
	if err != nil {
		return nil, err
	}
	box := uc.largestBox(img, upsample)
	if box == nil {
		return nil, nil
	}
	return crop(img, *box), nil
}

// loadGuarded loads the source and enforces the pixel budget before any
// detection work happens.
func (uc *DetectionUseCase) loadGuarded(ctx context.Context, src imageloader.Source) (image.Image, error) {
	img, err := uc.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx()*bounds.Dy() > uc.maxPixels {
		return nil, &TooLargeError{Height: bounds.Dy(), Width: bounds.Dx()}
	}
	return img, nil
}

// largestBox selects the detection with the strictly maximal area; ties keep
// the first box in detector order.
func (uc *DetectionUseCase) largestBox(img image.Image, upsample int) *Box {
	rects := uc.detector.Detect(img, upsample)
	uc.logger.Debug("detector finished", zap.Int("boxes", len(rects)))
	if len(rects) == 0 {
		return nil
	}

	biggest := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > biggest.Dx()*biggest.Dy() {
			biggest = r
		}
	}
	return &Box{
		Left:   biggest.Min.X,
		Top:    biggest.Min.Y,
		Right:  biggest.Max.X,
		Bottom: biggest.Max.Y,
	}
}

func crop(img image.Image, box Box) image.Image {
	rect := image.Rect(box.Left, box.Top, box.Right, box.Bottom)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if simg, ok := img.(subImager); ok {
		return simg.SubImage(rect)
	}

	// Decoded formats without SubImage support get copied instead.
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}
