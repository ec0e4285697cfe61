package recording

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"sort"

	"github.com/nfnt/resize"
)

// encodeGIF writes frames as a looping animation, each shown for delay
// hundredths of a second. Frames wider than maxWidth are scaled down
// keeping the aspect ratio of the first frame.
func encodeGIF(w io.Writer, frames []image.Image, delay int, maxWidth uint) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}

	bounds := frames[0].Bounds()
	width, height := uint(bounds.Dx()), uint(bounds.Dy())
	if maxWidth > 0 && width > maxWidth {
		height = uint(float64(maxWidth) * float64(height) / float64(width))
		width = maxWidth
	}

	palette := buildPalette(frames)
	anim := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	for i, frame := range frames {
		scaled := frame
		if fb := frame.Bounds(); uint(fb.Dx()) != width || uint(fb.Dy()) != height {
			scaled = resize.Resize(width, height, frame, resize.Lanczos3)
		}
		p := image.NewPaletted(scaled.Bounds(), palette)
		draw.FloydSteinberg.Draw(p, p.Bounds(), scaled, scaled.Bounds().Min)
		anim.Image[i] = p
		anim.Delay[i] = delay
	}
	// the verdict frame stays up longer
	anim.Delay[len(frames)-1] = delay * 3

	return gif.EncodeAll(w, anim)
}

// buildPalette picks the most frequent colours of a sample of every frame,
// always keeping the marker colours, and pads with greys up to 256.
func buildPalette(frames []image.Image) color.Palette {
	counts := make(map[color.RGBA]int)
	for _, img := range frames {
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y += 4 {
			for x := b.Min.X; x < b.Max.X; x += 4 {
				r, g, bl, _ := img.At(x, y).RGBA()
				counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255}]++
			}
		}
	}

	type entry struct {
		c color.RGBA
		n int
	}
	ranked := make([]entry, 0, len(counts))
	for c, n := range counts {
		ranked = append(ranked, entry{c, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		a, b := ranked[i].c, ranked[j].c
		return uint32(a.R)<<16|uint32(a.G)<<8|uint32(a.B) < uint32(b.R)<<16|uint32(b.G)<<8|uint32(b.B)
	})

	palette := color.Palette{markerOK, markerFailed, markerClick, verdictPass, verdictFail, verdictOther}
	seen := make(map[color.RGBA]bool, 256)
	for _, c := range palette {
		seen[c.(color.RGBA)] = true
	}
	for _, e := range ranked {
		if len(palette) == 256 {
			break
		}
		if !seen[e.c] {
			seen[e.c] = true
			palette = append(palette, e.c)
		}
	}
	for g := 0; len(palette) < 256; g++ {
		c := color.RGBA{R: uint8(g), G: uint8(g), B: uint8(g), A: 255}
		if !seen[c] {
			palette = append(palette, c)
		}
	}
	return palette
}
