// Package preview rasterizes a scene's caption card to PNG for the
// editor, using the same wrap, color and position math as the video
// render path.
package preview

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
	"github.com/BrainSnack9/shorts-factory/internal/textlayout"
)

const (
	boxPadding  = 24.0
	lineSpacing = 10.0
)

type Renderer struct {
	ttf *truetype.Font
}

// NewRenderer parses the caption font once. A missing font is an error
// here, not a degradation: previews exist only to show the caption.
func NewRenderer(fontPath string) (*Renderer, error) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read preview font: %w", err)
	}
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse preview font: %w", err)
	}
	return &Renderer{ttf: ttf}, nil
}

// Render draws the scene's background color and caption block at the
// given frame size and returns PNG bytes.
func (r *Renderer) Render(sc *storyboard.Scene, width, height int) ([]byte, error) {
	dc := gg.NewContext(width, height)
	dc.SetHexColor(sc.BgColorOrDefault())
	dc.Clear()

	caption := strings.TrimSpace(textlayout.StripTags(sc.CaptionSource()))
	if caption != "" {
		var face font.Face = truetype.NewFace(r.ttf, &truetype.Options{
			Size: float64(sc.FontSizeOrDefault()),
		})
		dc.SetFontFace(face)
		r.drawCaption(dc, sc, textlayout.WrapForDisplay(caption, textlayout.DefaultWrapLimit))
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCaption(dc *gg.Context, sc *storyboard.Scene, wrapped string) {
	lines := strings.Split(wrapped, "\n")
	lineHeight := dc.FontHeight()

	blockW := 0.0
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		if w > blockW {
			blockW = w
		}
	}
	blockH := float64(len(lines))*lineHeight + float64(len(lines)-1)*lineSpacing

	cx := float64(dc.Width()) / 2
	cy := float64(dc.Height()) * float64(sc.TextPositionOrDefault()) / 100

	// Box behind the text, same padding and opacity as the video overlay.
	br, bg, bb, err := textlayout.ParseHexColor(boxColor(sc))
	if err != nil {
		br, bg, bb = 0, 0, 0
	}
	dc.SetRGBA(float64(br)/255, float64(bg)/255, float64(bb)/255, sc.BgAlphaOrDefault())
	dc.DrawRectangle(cx-blockW/2-boxPadding, cy-blockH/2-boxPadding, blockW+2*boxPadding, blockH+2*boxPadding)
	dc.Fill()

	dc.SetHexColor(sc.TextColorOrDefault())
	y := cy - blockH/2 + lineHeight/2
	for _, line := range lines {
		dc.DrawStringAnchored(line, cx, y, 0.5, 0.5)
		y += lineHeight + lineSpacing
	}
}

func boxColor(sc *storyboard.Scene) string {
	if sc.BgColor != "" {
		return sc.BgColor
	}
	return "#000000"
}
