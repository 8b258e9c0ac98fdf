// Package imaging crops detected subjects out of full photos and scales
// them for archival.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for mixed source trees
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/jiangyuyi/feather-trace/internal/detection"
	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// jpegQuality matches the archival quality of the original crops.
const jpegQuality = 95

// CropResize crops box (plus padding, clamped to the image bounds) out of
// srcPath, scales the crop so its longest edge is targetSize, and writes a
// JPEG to dstPath. It returns the source image dimensions.
func CropResize(srcPath string, box detection.Box, dstPath string, targetSize, padding int) (width, height int, err error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, 0, wrapImageErr(srcPath, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, 0, wrapImageErr(srcPath, err)
	}

	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()

	rect := image.Rect(
		clamp(int(box.X1)-padding, 0, width),
		clamp(int(box.Y1)-padding, 0, height),
		clamp(int(box.X2)+padding, 0, width),
		clamp(int(box.Y2)+padding, 0, height),
	).Add(bounds.Min)
	if rect.Empty() {
		return width, height, errors.Newf("detection box %v is empty after clamping", box).
			Component("imaging").
			Category(errors.CategoryImageProcessing).
			Build()
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(cropped, image.Point{}, img, rect, xdraw.Src, nil)

	scaled := scaleLongEdge(cropped, targetSize)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return width, height, wrapImageErr(dstPath, err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return width, height, wrapImageErr(dstPath, err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return width, height, wrapImageErr(dstPath, err)
	}
	return width, height, nil
}

// scaleLongEdge downscales so the longest edge equals targetSize; images
// already small enough are returned unchanged.
func scaleLongEdge(img *image.RGBA, targetSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	long := max(w, h)
	if targetSize <= 0 || long <= targetSize {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = targetSize
		dh = h * targetSize / w
	} else {
		dh = targetSize
		dw = w * targetSize / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapImageErr(path string, err error) error {
	return errors.New(fmt.Errorf("processing image %s: %w", filepath.Base(path), err)).
		Component("imaging").
		Category(errors.CategoryImageProcessing).
		Context("path", path).
		Build()
}
