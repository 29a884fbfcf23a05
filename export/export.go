// Package export serializes the extracted document model into text
// formats. Line assembly is shared: text runs are clustered into
// baselines, ordered left to right, and grouped into paragraphs by
// vertical spacing.
package export

import (
	"sort"
	"strings"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/extractor"
)

// line is one assembled baseline of text runs.
type line struct {
	y    float64
	size float64
	bold bool
	text string
}

// paragraph groups consecutive lines separated by normal leading.
type paragraph struct {
	lines []line
}

func (p paragraph) size() float64 {
	max := 0.0
	for _, l := range p.lines {
		if l.size > max {
			max = l.size
		}
	}
	return max
}

func (p paragraph) bold() bool {
	for _, l := range p.lines {
		if !l.bold {
			return false
		}
	}
	return len(p.lines) > 0
}

func (p paragraph) text() string {
	parts := make([]string, 0, len(p.lines))
	for _, l := range p.lines {
		parts = append(parts, l.text)
	}
	return strings.Join(parts, " ")
}

// assembleLines clusters a page's text elements into baselines.
func assembleLines(elems []contentstream.Element) []line {
	var runs []*contentstream.TextElement
	for _, el := range elems {
		t, ok := el.(*contentstream.TextElement)
		if !ok || t.Text == "" {
			continue
		}
		runs = append(runs, t)
	}
	if len(runs) == 0 {
		return nil
	}
	// Top of the page first, then reading order within a baseline.
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Y != runs[j].Y {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var lines []line
	var cur []*contentstream.TextElement
	flush := func() {
		if len(cur) == 0 {
			return
		}
		lines = append(lines, buildLine(cur))
		cur = nil
	}
	for _, r := range runs {
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			tol := maxFloat(prev.EffectiveFontSize, r.EffectiveFontSize) * 0.4
			if tol < 2 {
				tol = 2
			}
			if absFloat(prev.Y-r.Y) > tol {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return lines
}

func buildLine(runs []*contentstream.TextElement) line {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })
	l := line{y: runs[0].Y, bold: true}
	var sb strings.Builder
	for i, r := range runs {
		if r.EffectiveFontSize > l.size {
			l.size = r.EffectiveFontSize
		}
		if r.Font == nil || !r.Font.Bold {
			l.bold = false
		}
		if i > 0 {
			prev := runs[i-1]
			gap := r.X - (prev.X + prev.Width)
			if gap > maxFloat(r.EffectiveFontSize, 1)*0.25 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.Text)
	}
	l.text = strings.TrimSpace(sb.String())
	return l
}

// assembleParagraphs splits lines on gaps wider than the running leading.
func assembleParagraphs(lines []line) []paragraph {
	var out []paragraph
	var cur []line
	for i, l := range lines {
		if len(cur) > 0 {
			prev := lines[i-1]
			gap := prev.y - l.y
			limit := maxFloat(prev.size, l.size) * 1.8
			if limit < 4 {
				limit = 4
			}
			if gap > limit || prev.size != l.size {
				out = append(out, paragraph{lines: cur})
				cur = nil
			}
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		out = append(out, paragraph{lines: cur})
	}
	return out
}

// bodyFontSize estimates the dominant body size across the document.
func bodyFontSize(doc *extractor.Document) float64 {
	counts := make(map[float64]int)
	for _, page := range doc.Pages {
		for _, l := range assembleLines(page.Elements) {
			counts[roundHalf(l.size)]++
		}
	}
	best, bestCount := 12.0, 0
	for size, n := range counts {
		if n > bestCount || (n == bestCount && size < best) {
			best, bestCount = size, n
		}
	}
	return best
}

func roundHalf(v float64) float64 {
	return float64(int(v*2+0.5)) / 2
}

// PlainText renders the document as plain text, pages separated by form
// feeds.
func PlainText(doc *extractor.Document) string {
	var pages []string
	for _, page := range doc.Pages {
		var sb strings.Builder
		for i, p := range assembleParagraphs(assembleLines(page.Elements)) {
			if i > 0 {
				sb.WriteByte('\n')
			}
			for _, l := range p.lines {
				sb.WriteString(l.text)
				sb.WriteByte('\n')
			}
		}
		pages = append(pages, sb.String())
	}
	return strings.Join(pages, "\f")
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
