package ocr

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// preprocessPage writes a grayscale, contrast-boosted copy of a rasterized
// page next to the original and returns its path.
func preprocessPage(in string) (string, error) {
	src, err := imaging.Open(in)
	if err != nil {
		return "", fmt.Errorf("open page image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)

	out := strings.TrimSuffix(in, ".png") + "-prep.png"
	if err := imaging.Save(img, out); err != nil {
		return "", fmt.Errorf("save page image: %w", err)
	}
	return out, nil
}
