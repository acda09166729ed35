package docpreview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/ManuelReschke/FeeBook/internal/pkg/docstore"
	"github.com/ManuelReschke/FeeBook/internal/pkg/upload"
)

// Preview bounds; documents are shown in the review modal at this size.
const (
	MaxWidth  = 1200
	MaxHeight = 1200
	Quality   = 80
)

var ErrNotAnImage = errors.New("document is not a previewable image")

// Renderer builds WebP previews of image documents held in a docstore.
type Renderer struct {
	store docstore.Store
}

func NewRenderer(store docstore.Store) *Renderer {
	return &Renderer{store: store}
}

// RenderPreview loads objectKey, fixes its EXIF orientation, scales it down
// to fit MaxWidth x MaxHeight and stores it under docstore.PreviewKey.
func (r *Renderer) RenderPreview(ctx context.Context, objectKey string) (string, error) {
	rc, obj, err := r.store.Get(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", objectKey, err)
	}
	defer rc.Close()

	if obj.ContentType != "" && !upload.IsImage(obj.ContentType) {
		return "", ErrNotAnImage
	}

	data, err := io.ReadAll(io.LimitReader(rc, upload.MaxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", objectKey, err)
	}

	img, err := Render(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := encodeWebP(&buf, img); err != nil {
		return "", err
	}

	key := docstore.PreviewKey(objectKey)
	if _, err := r.store.Put(ctx, key, "image/webp", bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}
	log.Infof("[DocPreview] %s -> %s (%dx%d)", objectKey, key, img.Bounds().Dx(), img.Bounds().Dy())
	return key, nil
}

// Render decodes a JPEG or PNG document and returns the oriented, scaled
// preview image.
func Render(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	img = Orient(img, orientation(data))

	b := img.Bounds()
	if b.Dx() > MaxWidth || b.Dy() > MaxHeight {
		img = imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
	}
	return img, nil
}

// orientation returns the EXIF orientation tag, 1 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// Orient applies an EXIF orientation (1-8) so the image displays upright.
func Orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeWebP(w io.Writer, img image.Image) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetPhoto, Quality)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}
	if err := webp.Encode(w, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}
	return nil
}
