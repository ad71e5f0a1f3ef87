// Package assembler combines rendered panels into one comic grid image.
package assembler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	panelW = 512
	panelH = 512

	border  = 4
	margin  = 8
	padding = 20
	titleH  = 80
	bubbleH = 140
)

var (
	background = color.RGBA{R: 24, G: 24, B: 27, A: 255}
	bubbleFill = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Panel pairs one rendered image with its dialogue line.
type Panel struct {
	Image    []byte
	Dialogue string
}

// Assemble lays the panels out on a titled grid and returns the combined
// image as PNG bytes. numPanels drives the grid shape; trailing cells stay
// empty when fewer panels are supplied.
func Assemble(panels []Panel, title string, numPanels int) ([]byte, error) {
	cols, rows := gridFor(numPanels)
	pw := panelW + 2*border
	ph := panelH + 2*border
	cw := cols*pw + (cols-1)*margin + 2*padding
	ch := titleH + rows*ph + (rows-1)*margin + 2*padding

	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawCentered(canvas, title, cw, titleH/2, face, color.White)

	for i, p := range panels {
		row, col := i/cols, i%cols
		src, _, err := image.Decode(bytes.NewReader(p.Image))
		if err != nil {
			return nil, fmt.Errorf("assembler: decode panel %d: %w", i+1, err)
		}
		x := padding + col*(pw+margin)
		y := titleH + padding + row*(ph+margin)

		// Panel frame, then the scaled image inside it.
		draw.Draw(canvas, image.Rect(x, y, x+pw, y+ph), image.NewUniform(color.Black), image.Point{}, draw.Src)
		inner := image.Rect(x+border, y+border, x+border+panelW, y+border+panelH)
		xdraw.ApproxBiLinear.Scale(canvas, inner, src, src.Bounds(), xdraw.Src, nil)

		if p.Dialogue != "" {
			drawBubble(canvas, p.Dialogue, x, y, pw, ph, face)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("assembler: encode combined image: %w", err)
	}
	return buf.Bytes(), nil
}

func gridFor(n int) (cols, rows int) {
	switch {
	case n <= 6:
		return 2, 3
	case n <= 9:
		return 3, 3
	case n <= 12:
		return 3, 4
	default:
		return 3, (n + 2) / 3
	}
}

func drawCentered(dst *image.RGBA, text string, width, baseline int, face font.Face, c color.Color) {
	w := font.MeasureString(face, text).Ceil()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P((width-w)/2, baseline),
	}
	d.DrawString(text)
}

// drawBubble paints a white dialogue box along the bottom edge of a panel
// with the text word-wrapped and vertically centered.
func drawBubble(dst *image.RGBA, text string, px, py, pw, ph int, face font.Face) {
	x := px + 10
	y := py + ph - bubbleH - 10
	bw := pw - 20

	lines := wrapText(text, face, bw-30)
	if len(lines) == 0 {
		return
	}

	outer := image.Rect(x, y, x+bw, y+bubbleH)
	draw.Draw(dst, outer, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, outer.Inset(2), image.NewUniform(bubbleFill), image.Point{}, draw.Src)

	lineH := face.Metrics().Height.Ceil() + 4
	totalH := len(lines) * lineH
	startY := y + (bubbleH-totalH)/2 + face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot:  fixed.P(x+10, startY+i*lineH),
		}
		d.DrawString(line)
	}
}

func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	var lines []string
	var current []string
	for _, word := range words {
		candidate := strings.Join(append(current, word), " ")
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			current = append(current, word)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{word}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}
