package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

// ThumbnailOptions sizes the output. The canvas is at least Canvas wide and
// tall, and grows to fit elements placed outside it.
type ThumbnailOptions struct {
	Width        int
	CanvasWidth  float64
	CanvasHeight float64
	Labels       bool
}

var (
	colBackground = color.RGBA{0xf8, 0xfa, 0xfc, 0xff}
	colBorder     = color.RGBA{0x47, 0x55, 0x69, 0xff}
	colLabel      = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	colFallback   = color.RGBA{0x22, 0xc5, 0x5e, 0xff}
)

// fill is the wireframe colour of each element type.
func fill(t domain.ElementType) color.RGBA {
	switch t {
	case domain.ElementTypeContainer:
		return color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	case domain.ElementTypeHeading, domain.ElementTypeParagraph, domain.ElementTypeText, domain.ElementTypeRichText:
		return color.RGBA{0xff, 0xff, 0xff, 0xff}
	case domain.ElementTypeImage:
		return color.RGBA{0xdb, 0xea, 0xfe, 0xff}
	case domain.ElementTypeVideo:
		return color.RGBA{0xed, 0xe9, 0xfe, 0xff}
	case domain.ElementTypeButton:
		return color.RGBA{0xc7, 0xd2, 0xfe, 0xff}
	case domain.ElementTypeConnectionText, domain.ElementTypeConnectionImg:
		return color.RGBA{0xfe, 0xf3, 0xc7, 0xff}
	}
	return color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
}

type rect struct {
	x, y, w, h float64
}

// Thumbnail draws a wireframe of one page: a box per element at its absolute
// position, containers first, plus a line between every connected pair.
func Thumbnail(elements []domain.Element, opts ThumbnailOptions) (image.Image, error) {
	if opts.Width <= 0 {
		opts.Width = 320
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = 1280
	}
	if opts.CanvasHeight <= 0 {
		opts.CanvasHeight = 720
	}

	rects := make(map[string]rect, len(elements))
	cw, ch := opts.CanvasWidth, opts.CanvasHeight
	for _, el := range elements {
		g := el.Geometry()
		x, y := builder.AbsolutePosition(elements, el.ID)
		r := rect{x, y, g.Width, g.Height}
		rects[el.ID] = r
		cw = math.Max(cw, r.x+r.w)
		ch = math.Max(ch, r.y+r.h)
	}

	scale := float64(opts.Width) / cw
	height := int(math.Ceil(ch * scale))
	if height < 1 {
		height = 1
	}

	dc := gg.NewContext(opts.Width, height)
	dc.SetColor(colBackground)
	dc.Clear()

	if opts.Labels {
		ttf, err := truetype.Parse(gomono.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		dc.SetFontFace(truetype.NewFace(ttf, &truetype.Options{Size: 10, DPI: 72, Hinting: font.HintingFull}))
	}

	var walk func(nodes []*builder.HierarchyNode)
	walk = func(nodes []*builder.HierarchyNode) {
		for _, n := range nodes {
			drawElement(dc, n.Element, rects[n.Element.ID], scale, opts.Labels)
			walk(n.Children)
		}
	}
	walk(builder.BuildHierarchy(elements, nil))

	// Lines go on top so they stay visible across containers.
	seen := make(map[string]bool)
	for _, el := range elements {
		cp := el.Connection()
		if !el.Type.Connectable() || cp.State != domain.ConnectionConnected || cp.ConnectedNodeID == "" || seen[el.ID] {
			continue
		}
		other, ok := rects[cp.ConnectedNodeID]
		if !ok {
			continue
		}
		seen[el.ID], seen[cp.ConnectedNodeID] = true, true
		drawLine(dc, rects[el.ID], other, cp.LineColor, scale)
	}
	return dc.Image(), nil
}

// ThumbnailPNG encodes Thumbnail as PNG.
func ThumbnailPNG(elements []domain.Element, opts ThumbnailOptions) ([]byte, error) {
	img, err := Thumbnail(elements, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gg.NewContextForImage(img).EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawElement(dc *gg.Context, el domain.Element, r rect, scale float64, labels bool) {
	if r.w <= 0 || r.h <= 0 {
		return
	}
	x, y, w, h := r.x*scale, r.y*scale, r.w*scale, r.h*scale
	dc.SetColor(fill(el.Type))
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetLineWidth(1)
	dc.SetColor(colBorder)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	switch el.Type {
	case domain.ElementTypeImage, domain.ElementTypeConnectionImg:
		// crossed box, the usual image placeholder
		dc.DrawLine(x, y, x+w, y+h)
		dc.DrawLine(x+w, y, x, y+h)
		dc.Stroke()
	case domain.ElementTypeVideo:
		cx, cy, s := x+w/2, y+h/2, math.Min(w, h)/4
		dc.MoveTo(cx-s/2, cy-s)
		dc.LineTo(cx+s, cy)
		dc.LineTo(cx-s/2, cy+s)
		dc.ClosePath()
		dc.Fill()
	}

	if labels && h >= 12 {
		label := el.Name
		if label == "" {
			label = el.Type.Label()
		}
		dc.SetColor(colLabel)
		dc.DrawStringWrapped(label, x+3, y+3, 0, 0, math.Max(w-6, 1), 1.1, gg.AlignLeft)
	}
}

func drawLine(dc *gg.Context, a, b rect, hex string, scale float64) {
	c := colFallback
	if parsed, ok := parseHex(hex); ok {
		c = parsed
	}
	dc.SetColor(c)
	dc.SetLineWidth(2)
	dc.DrawLine((a.x+a.w/2)*scale, (a.y+a.h/2)*scale, (b.x+b.w/2)*scale, (b.y+b.h/2)*scale)
	dc.Stroke()
}

func parseHex(s string) (color.RGBA, bool) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, false
	}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{r, g, b, 0xff}, true
}
