package imageprep

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Variant derives one decode candidate from the (oriented) source image.
// A nil Apply means the untouched source file.
type Variant struct {
	Name  string
	Apply func(image.Image) image.Image
}

// maxUpscaleDim caps the longer side of an upscaled variant.
const maxUpscaleDim = 5000

// DefaultVariants is tried in order; cheap, source-like candidates first,
// the largest and most processed last.
var DefaultVariants = []Variant{
	{Name: "original"},
	{Name: "top40", Apply: TopRegion(0.40)},
	{Name: "top40_x2_gray_sharp", Apply: Chain(TopRegion(0.40), Upscale(2), Gray, Sharpen)},
	{Name: "x2_gray_contrast", Apply: Chain(Upscale(2), Gray, Stretch)},
	{Name: "crop12", Apply: CropBorder(0.12)},
	{Name: "crop24", Apply: CropBorder(0.24)},
	{Name: "crop40", Apply: CropBorder(0.40)},
	{Name: "x3_binary_mean", Apply: Chain(Upscale(3), Gray, BinarizeMean)},
	{Name: "top40_x3_binary", Apply: Chain(TopRegion(0.40), Upscale(3), Gray, Binarize(140))},
	{Name: "x4_gray_sharp", Apply: Chain(Upscale(4), Gray, Sharpen)},
}

// Chain applies steps left to right.
func Chain(steps ...func(image.Image) image.Image) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		for _, s := range steps {
			img = s(img)
		}
		return img
	}
}

// Upscale multiplies both sides by factor (Lanczos), keeping the longer side
// within maxUpscaleDim.
func Upscale(factor int) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		w := b.Dx() * factor
		h := b.Dy() * factor
		if longest := max(w, h); longest > maxUpscaleDim {
			w = w * maxUpscaleDim / longest
		}
		if w <= b.Dx() {
			return img
		}
		return imaging.Resize(img, w, 0, imaging.Lanczos)
	}
}

func Gray(img image.Image) image.Image { return imaging.Grayscale(img) }

// Sharpen is an unsharp mask.
func Sharpen(img image.Image) image.Image { return imaging.Sharpen(img, 1.2) }

// Stretch normalises contrast by mapping the 1st..99th luminance percentiles
// onto the full range.
func Stretch(img image.Image) image.Image {
	nrgba := imaging.Clone(img)
	var hist [256]int
	px := nrgba.Pix
	for i := 0; i+3 < len(px); i += 4 {
		hist[luma(px[i], px[i+1], px[i+2])]++
	}
	total := len(px) / 4
	lo, hi := percentile(hist, total, 0.01), percentile(hist, total, 0.99)
	if hi <= lo {
		return nrgba
	}
	scale := 255.0 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		switch {
		case int(v) <= lo:
			return 0
		case int(v) >= hi:
			return 255
		default:
			return uint8(float64(int(v)-lo) * scale)
		}
	}
	return imaging.AdjustFunc(nrgba, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

// Binarize maps every pixel to black or white around a fixed threshold.
func Binarize(threshold uint8) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			if luma(c.R, c.G, c.B) >= threshold {
				return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			return color.NRGBA{A: 255}
		})
	}
}

// BinarizeMean thresholds at the image's mean luminance.
func BinarizeMean(img image.Image) image.Image {
	nrgba := imaging.Clone(img)
	px := nrgba.Pix
	var sum, n int
	for i := 0; i+3 < len(px); i += 4 {
		sum += int(luma(px[i], px[i+1], px[i+2]))
		n++
	}
	if n == 0 {
		return nrgba
	}
	return Binarize(uint8(sum / n))(nrgba)
}

// CropBorder strips frac of the width and height from every side.
func CropBorder(frac float64) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		dx := int(float64(b.Dx()) * frac)
		dy := int(float64(b.Dy()) * frac)
		if 2*dx >= b.Dx() || 2*dy >= b.Dy() {
			return img
		}
		return imaging.Crop(img, image.Rect(b.Min.X+dx, b.Min.Y+dy, b.Max.X-dx, b.Max.Y-dy))
	}
}

// TopRegion keeps the upper frac of the image, where most passes print the
// barcode.
func TopRegion(frac float64) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		h := max(int(float64(b.Dy())*frac), 1)
		return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+h))
	}
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

func percentile(hist [256]int, total int, p float64) int {
	target := int(float64(total) * p)
	acc := 0
	for v, n := range hist {
		acc += n
		if acc > target {
			return v
		}
	}
	return 255
}
