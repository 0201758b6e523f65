package recognize

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"gonum.org/v1/gonum/stat"

	"github.com/dgallion1/scoreslice/internal/layout"
)

// hOCR classes treated as one text block.
var lineClasses = []string{"ocr_line", "ocr_header", "ocr_caption", "ocr_textfloat"}

// ParseHOCR converts Tesseract hOCR output into text blocks with boxes
// normalized to the ocr_page bbox and font ranks derived from x_size.
func ParseHOCR(r io.Reader, page int) ([]layout.TextBlock, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse hocr: %w", err)
	}

	var (
		pageW, pageH float64
		blocks       []layout.TextBlock
		sizes        []float64
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attr(n, "class")
			title := attr(n, "title")

			if hasClass(class, "ocr_page") {
				if box, ok := parseBBox(title); ok {
					pageW, pageH = box[2]-box[0], box[3]-box[1]
				}
			}

			if hasAnyClass(class, lineClasses) {
				if b, size, ok := parseLine(n, title, page, pageW, pageH); ok {
					blocks = append(blocks, b)
					sizes = append(sizes, size)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if pageW <= 0 || pageH <= 0 {
		if len(blocks) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("hocr: missing ocr_page bbox")
	}
	layout.AssignFontRanks(blocks, sizes)
	return blocks, nil
}

func parseLine(n *html.Node, title string, page int, pageW, pageH float64) (layout.TextBlock, float64, bool) {
	box, ok := parseBBox(title)
	if !ok || pageW <= 0 || pageH <= 0 {
		return layout.TextBlock{}, 0, false
	}

	var words []string
	var confs []float64
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.ElementNode && hasClass(attr(c, "class"), "ocrx_word") {
			if w := strings.TrimSpace(textContent(c)); w != "" {
				words = append(words, w)
				if conf, ok := titleField(attr(c, "title"), "x_wconf"); ok {
					confs = append(confs, conf/100)
				}
			}
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			collect(cc)
		}
	}
	collect(n)

	text := strings.Join(words, " ")
	if len(words) == 0 {
		text = strings.Join(strings.Fields(textContent(n)), " ")
	}
	if text == "" {
		return layout.TextBlock{}, 0, false
	}

	size, ok := titleField(title, "x_size")
	if !ok {
		size = box[3] - box[1]
	}

	var conf float64
	if len(confs) > 0 {
		conf = layout.Clamp01(stat.Mean(confs, nil))
	}

	return layout.TextBlock{
		Page: page,
		Text: text,
		Box: layout.BBox{
			X0: layout.Clamp01(box[0] / pageW),
			Y0: layout.Clamp01(box[1] / pageH),
			X1: layout.Clamp01(box[2] / pageW),
			Y1: layout.Clamp01(box[3] / pageH),
		},
		Confidence: conf,
	}, size, true
}

// parseBBox reads "bbox x0 y0 x1 y1" from an hOCR title attribute.
func parseBBox(title string) ([4]float64, bool) {
	var box [4]float64
	for _, field := range strings.Split(title, ";") {
		parts := strings.Fields(field)
		if len(parts) != 5 || parts[0] != "bbox" {
			continue
		}
		for i := range 4 {
			v, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				return box, false
			}
			box[i] = v
		}
		return box, true
	}
	return box, false
}

// titleField reads a single numeric property such as "x_size 42.5".
func titleField(title, name string) (float64, bool) {
	for _, field := range strings.Split(title, ";") {
		parts := strings.Fields(field)
		if len(parts) < 2 || parts[0] != name {
			continue
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		return v, err == nil
	}
	return 0, false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAnyClass(classAttr string, classes []string) bool {
	for _, c := range classes {
		if hasClass(classAttr, c) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
