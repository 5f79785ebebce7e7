package display

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"canvastrmnl/errors"
	"canvastrmnl/triage"
)

// Screen sizes in pixels for each layout of an 800x480 device.
var screenSizes = map[triage.Layout]image.Point{
	triage.Full:           {800, 480},
	triage.HalfVertical:   {400, 480},
	triage.HalfHorizontal: {800, 240},
	triage.Quadrant:       {400, 240},
}

var (
	black = color.Gray{0x00}
	white = color.Gray{0xff}

	// Section backgrounds, darkest first.
	grays = map[string]color.Gray{
		"bg--gray-2": {0x80},
		"bg--gray-4": {0xaa},
		"bg--gray-6": {0xd4},
	}
)

const (
	pad       = 10
	titleBarH = 40
	headerH   = 26
	rowH      = 40
	summaryW  = 110
)

type faces struct {
	title, head, body, small font.Face
}

func loadFaces() (faces, error) {
	boldttf, err := freetype.ParseFont(gobold.TTF)
	if err != nil {
		return faces{}, errors.NewError("display.preview", "cannot parse bold font", err)
	}
	regttf, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return faces{}, errors.NewError("display.preview", "cannot parse regular font", err)
	}
	face := func(f *truetype.Font, size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
	}
	return faces{
		title: face(boldttf, 32),
		head:  face(boldttf, 16),
		body:  face(boldttf, 15),
		small: face(regttf, 12),
	}, nil
}

func fillrect(img *image.Gray, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// imprint writes text with its baseline at pos, cut short with an ellipsis
// so it never runs past maxX.
func imprint(dest *image.Gray, text string, face font.Face, pos image.Point, maxX int, c color.Color) {
	pen := font.Drawer{
		Dst:  dest,
		Src:  image.NewUniform(c),
		Face: face,
	}
	limit := fixed.I(maxX - pos.X)
	if pen.MeasureString(text) > limit {
		for len(text) > 0 && pen.MeasureString(text+"...") > limit {
			text = text[:len(text)-1]
		}
		text += "..."
	}
	pen.Dot = fixed.Point26_6{
		X: fixed.I(pos.X),
		Y: fixed.I(pos.Y),
	}
	pen.DrawString(text)
}

func drawSection(img *image.Gray, fc faces, s Section, area image.Rectangle) int {
	y := area.Min.Y
	fillrect(img, image.Rect(area.Min.X, y, area.Max.X, y+headerH), grays[s.Class])
	imprint(img, s.Name, fc.head, image.Pt(area.Min.X+6, y+headerH-8), area.Max.X-6, black)
	y += headerH + 4

	for _, it := range s.Items {
		imprint(img, it.Title, fc.body, image.Pt(area.Min.X+4, y+16), area.Max.X-4, black)
		meta := it.Due + "  " + it.Course
		imprint(img, meta, fc.small, image.Pt(area.Min.X+4, y+32), area.Max.X-4, black)
		if it.Overdue {
			fillrect(img, image.Rect(area.Min.X, y+2, area.Min.X+2, y+rowH-4), black)
		}
		y += rowH
	}
	return y + 4
}

// PreviewPNG draws an approximation of the projection as it would appear on
// the device and writes it to w as a PNG.
func PreviewPNG(w io.Writer, p Projection) error {
	size, ok := screenSizes[p.Layout]
	if !ok {
		return errors.NewError("display.PreviewPNG", "unknown layout "+string(p.Layout), nil)
	}
	fc, err := loadFaces()
	if err != nil {
		return err
	}

	canvas := image.NewGray(image.Rectangle{Max: size})
	fillrect(canvas, canvas.Bounds(), white)

	content := image.Rect(pad, pad, size.X-pad, size.Y-titleBarH-pad)

	if len(p.Summary) > 0 {
		if p.Vertical() {
			boxW := (content.Dx() - 2*pad) / len(p.Summary)
			for i, s := range p.Summary {
				x := content.Min.X + i*(boxW+pad)
				box := image.Rect(x, content.Min.Y, x+boxW, content.Min.Y+30)
				fillrect(canvas, box, grays[s.Class])
				imprint(canvas, strconv.Itoa(s.Count)+" "+s.Label, fc.head, image.Pt(x+8, box.Max.Y-9), box.Max.X-4, black)
			}
			content.Min.Y += 30 + pad
		} else {
			boxH := (content.Dy() - 2*pad) / len(p.Summary)
			for i, s := range p.Summary {
				y := content.Min.Y + i*(boxH+pad)
				box := image.Rect(content.Min.X, y, content.Min.X+summaryW, y+boxH)
				fillrect(canvas, box, grays[s.Class])
				imprint(canvas, strconv.Itoa(s.Count), fc.title, image.Pt(box.Min.X+12, y+boxH/2+4), box.Max.X-4, black)
				imprint(canvas, s.Label, fc.small, image.Pt(box.Min.X+12, y+boxH/2+22), box.Max.X-4, black)
			}
			content.Min.X += summaryW + pad
		}
	}

	switch {
	case p.AllCaughtUp:
		mid := content.Min.Y + content.Dy()/2
		imprint(canvas, p.Glyph, fc.title, image.Pt(content.Min.X+content.Dx()/2-30, mid), content.Max.X, black)
		imprint(canvas, "All caught up!", fc.small, image.Pt(content.Min.X+content.Dx()/2-40, mid+24), content.Max.X, black)
	case p.Columns():
		colW := (content.Dx() - 2*pad) / 3
		for i, s := range p.Sections {
			x := content.Min.X + i*(colW+pad)
			drawSection(canvas, fc, s, image.Rect(x, content.Min.Y, x+colW, content.Max.Y))
		}
	default:
		y := content.Min.Y
		for _, s := range p.Sections {
			y = drawSection(canvas, fc, s, image.Rect(content.Min.X, y, content.Max.X, content.Max.Y))
		}
	}

	bar := image.Rect(0, size.Y-titleBarH, size.X, size.Y)
	fillrect(canvas, bar, black)
	imprint(canvas, "Canvas LMS", fc.head, image.Pt(pad+4, bar.Max.Y-14), size.X-pad, white)

	if err := png.Encode(w, canvas); err != nil {
		return errors.NewError("display.PreviewPNG", "png encoding failed", err)
	}
	return nil
}
