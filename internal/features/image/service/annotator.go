package service

import (
	"image"

	"github.com/fogleman/gg"

	"clockout-watcher/internal/common"
)

// Auto-layout geometry, tuned for 48pt headers
const (
	layoutOriginX   = 60
	layoutOriginY   = 60
	lineHeight      = 60
	boxPaddingTop   = 40
	boxPaddingSide  = 40
	boxPaddingBot   = 25
	boxCornerRadius = 15
	boxSpacing      = 120
)

// TextBox is one block of text to draw onto an image
type TextBox struct {
	// Lines of text, drawn top to bottom
	Lines []string

	// Header selects the larger font size
	Header bool
}

// Annotator draws text boxes over images on semi-transparent rounded
// rectangles, stacking them vertically from the top-left corner.
type Annotator struct {
	fontPath string
}

// NewAnnotator resolves a font for the given language and returns an
// annotator using it
func NewAnnotator(language string, fontOverrides []string) (*Annotator, error) {
	fontPath, err := ResolveFont(language, fontOverrides)
	if err != nil {
		return nil, err
	}
	return &Annotator{fontPath: fontPath}, nil
}

// Annotate draws the given text boxes onto a copy of src
func (a *Annotator) Annotate(src image.Image, boxes []TextBox) (image.Image, error) {
	dc := gg.NewContextForImage(src)

	currentY := float64(layoutOriginY)
	for _, box := range boxes {
		if len(box.Lines) == 0 {
			continue
		}

		size := float64(bodyFontSize)
		if box.Header {
			size = float64(headerFontSize)
		}
		if err := dc.LoadFontFace(a.fontPath, size); err != nil {
			return nil, common.UnavailableError("failed to load font %s: %v", a.fontPath, err)
		}

		x := float64(layoutOriginX)
		maxWidth := 0.0
		for _, line := range box.Lines {
			w, _ := dc.MeasureString(line)
			if w > maxWidth {
				maxWidth = w
			}
		}
		totalHeight := float64(len(box.Lines) * lineHeight)

		dc.SetRGBA255(0, 0, 0, 150)
		dc.DrawRoundedRectangle(
			x-boxPaddingSide,
			currentY-boxPaddingTop,
			maxWidth+2*boxPaddingSide,
			totalHeight+boxPaddingTop+boxPaddingBot,
			boxCornerRadius,
		)
		dc.Fill()

		dc.SetRGB255(255, 255, 255)
		y := currentY
		for _, line := range box.Lines {
			// DrawString anchors at the baseline, so step down first
			dc.DrawString(line, x, y+size)
			y += lineHeight
		}

		currentY += totalHeight + boxSpacing
	}

	return dc.Image(), nil
}
