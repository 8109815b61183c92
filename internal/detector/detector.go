package detector

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/nfnt/resize"
)

const (
	defaultMinSize          = 20
	defaultShiftFactor      = 0.1
	defaultScaleFactor      = 1.1
	defaultIoUThreshold     = 0.2
	defaultQualityThreshold = 5.0

	// maxUpsample bounds the client-controlled upsample count; beyond ten
	// doublings the scaled image dwarfs the pixel budget anyway, and an
	// unbounded shift would overflow.
	maxUpsample = 10
)

// Detector wraps a pigo cascade classifier. It is read-only after
// construction and safe for concurrent use.
type Detector struct {
	classifier       *pigo.Pigo
	qualityThreshold float32
}

// New unpacks a binary cascade model into a ready-to-use detector.
func New(cascade []byte) (*Detector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade: %w", err)
	}
	return &Detector{
		classifier:       classifier,
		qualityThreshold: defaultQualityThreshold,
	}, nil
}

// NewFromFile reads a cascade model from disk and unpacks it.
func NewFromFile(path string) (*Detector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cascade file: %w", err)
	}
	return New(cascade)
}

// Detect runs the cascade over the image and returns face bounding boxes in
// source-image pixel coordinates. The image is scaled up by 2^upsample before
// detection, so higher upsample counts find smaller faces at a higher
// computational cost; counts above maxUpsample are capped. Boxes are clamped
// to the image bounds.
func (d *Detector) Detect(img image.Image, upsample int) []image.Rectangle {
	upsample = clampUpsample(upsample)
	target := upscale(img, upsample)

	src := pigo.ImgToNRGBA(target)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	params := pigo.CascadeParams{
		MinSize:     defaultMinSize,
		MaxSize:     max(rows, cols),
		ShiftFactor: defaultShiftFactor,
		ScaleFactor: defaultScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, defaultIoUThreshold)

	bounds := img.Bounds()
	var rects []image.Rectangle
	for _, det := range dets {
		if det.Q <= d.qualityThreshold {
			continue
		}
		rects = append(rects, toSourceRect(det, upsample, bounds))
	}
	return rects
}

// clampUpsample bounds the upsample count so the dimension shift in upscale
// can neither overflow nor request an absurd allocation.
func clampUpsample(upsample int) int {
	if upsample < 0 {
		return 0
	}
	if upsample > maxUpsample {
		return maxUpsample
	}
	return upsample
}

// upscale doubles the image upsample times.
func upscale(img image.Image, upsample int) image.Image {
	if upsample == 0 {
		return img
	}
	b := img.Bounds()
	return resize.Resize(uint(b.Dx()<<upsample), uint(b.Dy()<<upsample), img, resize.Bilinear)
}

// toSourceRect converts a detection in (possibly upsampled) cascade
// coordinates into a rectangle on the source image.
func toSourceRect(det pigo.Detection, upsample int, bounds image.Rectangle) image.Rectangle {
	half := det.Scale / 2
	r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
	if upsample > 0 {
		r = image.Rect(r.Min.X>>upsample, r.Min.Y>>upsample, r.Max.X>>upsample, r.Max.Y>>upsample)
	}
	return r.Intersect(bounds)
}
