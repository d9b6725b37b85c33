package vision

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageMeta describes the stored frame of an encoded image.
type ImageMeta struct {
	Width       int
	Height      int
	Orientation int
}

// DecodeMeta reads image dimensions from the header and the EXIF orientation
// tag. A missing or unreadable tag yields orientation 1.
func DecodeMeta(data []byte) (ImageMeta, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageMeta{}, err
	}

	meta := ImageMeta{Width: cfg.Width, Height: cfg.Height, Orientation: 1}
	ex, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta, nil
	}
	tag, err := ex.Get(exif.Orientation)
	if err != nil {
		return meta, nil
	}
	if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
		meta.Orientation = v
	}
	return meta, nil
}

// DisplayedDims returns the image dimensions after EXIF rotation.
func DisplayedDims(meta ImageMeta) (int, int) {
	switch meta.Orientation {
	case 6, 8:
		return meta.Height, meta.Width
	default:
		return meta.Width, meta.Height
	}
}

// TransformRect rewrites a rectangle from the stored frame into the displayed
// frame. W and H are the stored dimensions. Orientation 8 uses the inverse
// rotation of 6, so applying 6 then 8 with swapped dimensions round-trips.
func TransformRect(x, y, w, h, W, H, orientation int) (int, int, int, int) {
	switch orientation {
	case 3:
		return W - x - w, H - y - h, w, h
	case 6:
		return H - y - h, x, h, w
	case 8:
		return y, W - x - w, h, w
	default:
		return x, y, w, h
	}
}

// ClipRect clips a rectangle to the displayed bounds. Degenerate rectangles
// collapse to zero size at the nearest edge.
func ClipRect(x, y, w, h, displayW, displayH int) (int, int, int, int) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x > displayW {
		x = displayW
	}
	if y > displayH {
		y = displayH
	}
	if x+w > displayW {
		w = displayW - x
	}
	if y+h > displayH {
		h = displayH - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return x, y, w, h
}

// reconcile maps provider blocks into the displayed frame and clips them.
func reconcile(blocks []Block, meta ImageMeta) []Block {
	displayW, displayH := DisplayedDims(meta)
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		x, y, w, h := TransformRect(b.X, b.Y, b.Width, b.Height, meta.Width, meta.Height, meta.Orientation)
		x, y, w, h = ClipRect(x, y, w, h, displayW, displayH)
		b.X, b.Y, b.Width, b.Height = x, y, w, h
		out = append(out, b)
	}
	return out
}
