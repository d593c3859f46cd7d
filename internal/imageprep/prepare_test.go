package imageprep

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripes draws vertical black bars on a grey background.
func stripes(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 160, G: 160, B: 160, A: 255}
			if (x/4)%2 == 0 {
				c = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeSource(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pass.png")
	require.NoError(t, imaging.Save(stripes(w, h), path))
	return path
}

func entries(t *testing.T, dir string) int {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(list)
}

func TestPrepare_DefaultVariants(t *testing.T) {
	src := writeSource(t, 200, 100)
	tmp := t.TempDir()
	p := New(Config{TempDir: tmp}, nil)

	set, err := p.Prepare(context.Background(), src)
	require.NoError(t, err)

	cands := set.Candidates()
	require.Len(t, cands, len(DefaultVariants))
	for i, c := range cands {
		assert.Equal(t, DefaultVariants[i].Name, c.Name)
	}
	assert.Equal(t, src, set.Paths()[0], "original is the untouched source")
	for _, path := range set.Paths()[1:] {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}

	require.NoError(t, set.Close())
	assert.Equal(t, 0, entries(t, tmp))
	require.NoError(t, set.Close())

	_, err = os.Stat(src)
	assert.NoError(t, err, "source survives Close")
}

func TestPrepare_UnreadableSourceLeavesNothing(t *testing.T) {
	src := filepath.Join(t.TempDir(), "not-an-image.png")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o600))
	tmp := t.TempDir()

	set, err := New(Config{TempDir: tmp}, nil).Prepare(context.Background(), src)
	require.Error(t, err)
	assert.Nil(t, set)
	assert.Equal(t, 0, entries(t, tmp))
}

func TestPrepare_CancelledRemovesPartialSet(t *testing.T) {
	src := writeSource(t, 64, 32)
	tmp := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	variants := []Variant{
		{Name: "gray", Apply: Gray},
		{Name: "cancel", Apply: func(img image.Image) image.Image { cancel(); return img }},
		{Name: "never", Apply: Gray},
	}
	set, err := New(Config{TempDir: tmp, Variants: variants}, nil).Prepare(ctx, src)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, set)
	assert.Equal(t, 0, entries(t, tmp))
}

func TestPrepare_SaveFailureRemovesPartialSet(t *testing.T) {
	src := writeSource(t, 64, 32)
	tmp := t.TempDir()

	// swap the working dir for a plain file so the next save fails
	clobber := func(img image.Image) image.Image {
		dirs, _ := filepath.Glob(filepath.Join(tmp, "bp-prep-*"))
		for _, d := range dirs {
			require.NoError(t, os.RemoveAll(d))
			require.NoError(t, os.WriteFile(d, []byte("x"), 0o600))
		}
		return img
	}
	variants := []Variant{
		{Name: "gray", Apply: Gray},
		{Name: "clobber", Apply: clobber},
	}
	set, err := New(Config{TempDir: tmp, Variants: variants}, nil).Prepare(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save variant clobber")
	assert.Nil(t, set)
	assert.Equal(t, 0, entries(t, tmp))
}

func TestPrepare_BadVariantSkipped(t *testing.T) {
	src := writeSource(t, 64, 32)
	variants := []Variant{
		{Name: "panics", Apply: func(image.Image) image.Image { panic("boom") }},
		{Name: "empty", Apply: func(image.Image) image.Image { return image.NewNRGBA(image.Rect(0, 0, 0, 0)) }},
		{Name: "gray", Apply: Gray},
	}
	set, err := New(Config{TempDir: t.TempDir(), Variants: variants}, nil).Prepare(context.Background(), src)
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set.Candidates(), 1)
	assert.Equal(t, "gray", set.Candidates()[0].Name)
}

func TestPrepare_BoundsLargeSources(t *testing.T) {
	src := writeSource(t, 400, 300)
	var seen image.Rectangle
	variants := []Variant{{Name: "bounds", Apply: func(img image.Image) image.Image {
		seen = img.Bounds()
		return img
	}}}
	set, err := New(Config{TempDir: t.TempDir(), Variants: variants, MaxPixels: 30_000}, nil).Prepare(context.Background(), src)
	require.NoError(t, err)
	defer set.Close()

	assert.LessOrEqual(t, seen.Dx()*seen.Dy(), 30_000)
	assert.Equal(t, 200, seen.Dx())
}

func TestVariants(t *testing.T) {
	src := stripes(100, 50)

	tests := []struct {
		name  string
		apply func(image.Image) image.Image
		w, h  int
	}{
		{"top region", TopRegion(0.40), 100, 20},
		{"crop 12", CropBorder(0.12), 76, 38},
		{"crop 40", CropBorder(0.40), 20, 10},
		{"upscale 3", Upscale(3), 300, 150},
		{"chain", Chain(TopRegion(0.40), Upscale(2)), 200, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.apply(src).Bounds()
			assert.Equal(t, tt.w, out.Dx())
			assert.Equal(t, tt.h, out.Dy())
		})
	}
}

func TestUpscaleCapped(t *testing.T) {
	out := Upscale(4)(stripes(2000, 100))
	assert.Equal(t, maxUpscaleDim, out.Bounds().Dx())
}

func TestBinarize(t *testing.T) {
	out := imaging.Clone(BinarizeMean(stripes(16, 4)))
	for i := 0; i < len(out.Pix); i += 4 {
		v := out.Pix[i]
		assert.True(t, v == 0 || v == 255, "pixel %d = %d", i/4, v)
	}
	// bar at x=0 is dark, x=4 is light
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(4, 0).R)
}

func TestStretch(t *testing.T) {
	out := imaging.Clone(Stretch(stripes(16, 4)))
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(4, 0).R)
}
