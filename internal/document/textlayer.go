package document

import (
	"fmt"
	"math"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/scoreslice/internal/layout"
)

// US Letter, used when neither a page nor its ancestors carry a MediaBox.
const defaultPageW, defaultPageH = 612.0, 792.0

// TextLayer returns the page's embedded text as blocks, one per line.
// Scanned pages usually have none; callers fall back to recognition.
func (d *PDF) TextLayer(index int) (blocks []layout.TextBlock, err error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, index)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil, fmt.Errorf("text layer page %d: document closed", index)
	}

	defer func() {
		if r := recover(); r != nil {
			blocks, err = nil, fmt.Errorf("text layer page %d: %v", index, r)
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	return linesToBlocks(index, page.Content().Text, mediaBox(page)), nil
}

// pageBox is a MediaBox in PDF user space.
type pageBox struct {
	x0, y0, w, h float64
}

var letterBox = pageBox{w: defaultPageW, h: defaultPageH}

// mediaBox returns the page's MediaBox, inherited from the nearest ancestor
// in the page tree when the page has none of its own.
func mediaBox(page pdflib.Page) pageBox {
	v := page.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if mb := v.Key("MediaBox"); mb.Len() == 4 {
			return boxFromRect(
				mb.Index(0).Float64(), mb.Index(1).Float64(),
				mb.Index(2).Float64(), mb.Index(3).Float64(),
			)
		}
		v = v.Key("Parent")
	}
	return letterBox
}

// boxFromRect accepts the corners in either order.
func boxFromRect(ax, ay, bx, by float64) pageBox {
	b := pageBox{
		x0: math.Min(ax, bx),
		y0: math.Min(ay, by),
		w:  math.Abs(bx - ax),
		h:  math.Abs(by - ay),
	}
	if b.w <= 0 || b.h <= 0 {
		return letterBox
	}
	return b
}

type textLine struct {
	y, x0, x1, size float64
	sb              strings.Builder
	lastX           float64
}

// linesToBlocks groups glyph runs sharing a baseline into lines. PDF space
// has its origin bottom-left; blocks use top-left.
func linesToBlocks(page int, texts []pdflib.Text, box pageBox) []layout.TextBlock {
	runs := make([]pdflib.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) != "" || t.S == " " {
			runs = append(runs, t)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if math.Abs(runs[i].Y-runs[j].Y) > 0.5 {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var lines []*textLine
	for _, t := range runs {
		var cur *textLine
		if n := len(lines); n > 0 {
			last := lines[n-1]
			tol := math.Max(last.size, t.FontSize) * 0.4
			if math.Abs(last.y-t.Y) <= tol && t.X-last.lastX <= math.Max(last.size, t.FontSize)*2 {
				cur = last
			}
		}
		if cur == nil {
			cur = &textLine{y: t.Y, x0: t.X, x1: t.X, size: t.FontSize}
			lines = append(lines, cur)
		} else if t.X-cur.lastX > t.FontSize*0.25 && !strings.HasSuffix(cur.sb.String(), " ") {
			cur.sb.WriteByte(' ')
		}
		cur.sb.WriteString(t.S)
		cur.lastX = t.X + t.W
		cur.x1 = math.Max(cur.x1, t.X+t.W)
		cur.size = math.Max(cur.size, t.FontSize)
	}

	blocks := make([]layout.TextBlock, 0, len(lines))
	sizes := make([]float64, 0, len(lines))
	for _, l := range lines {
		text := strings.Join(strings.Fields(l.sb.String()), " ")
		if text == "" {
			continue
		}
		upper := box.y0 + box.h
		top := upper - (l.y + l.size)
		bottom := upper - l.y
		blocks = append(blocks, layout.TextBlock{
			Page: page,
			Text: text,
			Box: layout.BBox{
				X0: layout.Clamp01((l.x0 - box.x0) / box.w),
				Y0: layout.Clamp01(top / box.h),
				X1: layout.Clamp01((l.x1 - box.x0) / box.w),
				Y1: layout.Clamp01(bottom / box.h),
			},
			Confidence: 1,
		})
		sizes = append(sizes, l.size)
	}
	layout.AssignFontRanks(blocks, sizes)
	return blocks
}
