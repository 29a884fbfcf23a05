package export

import (
	"fmt"
	"strings"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/extractor"
)

// Markdown renders the document as Markdown. Headings are inferred from
// font size relative to the document's body text; bold paragraphs become
// strong emphasis; pages are separated by thematic breaks.
func Markdown(doc *extractor.Document) string {
	body := bodyFontSize(doc)
	var pages []string
	for _, page := range doc.Pages {
		pages = append(pages, markdownPage(page, body))
	}
	return strings.Join(pages, "\n---\n\n")
}

func markdownPage(page extractor.Page, body float64) string {
	var sb strings.Builder
	paras := assembleParagraphs(assembleLines(page.Elements))
	for _, p := range paras {
		text := p.text()
		if text == "" {
			continue
		}
		switch level := headingLevel(p.size(), body); {
		case level > 0:
			sb.WriteString(strings.Repeat("#", level))
			sb.WriteByte(' ')
			sb.WriteString(escapeMarkdown(text))
		case p.bold():
			sb.WriteString("**")
			sb.WriteString(escapeMarkdown(text))
			sb.WriteString("**")
		default:
			sb.WriteString(escapeMarkdown(text))
		}
		sb.WriteString("\n\n")
	}
	for i, el := range page.Elements {
		if img, ok := el.(*contentstream.ImageElement); ok {
			fmt.Fprintf(&sb, "![%s](#page-%d-image-%d)\n\n", img.Name, page.PageNumber, i)
		}
	}
	return sb.String()
}

// headingLevel maps a paragraph's font size to a heading level, 0 for
// body text.
func headingLevel(size, body float64) int {
	if body <= 0 {
		return 0
	}
	ratio := size / body
	switch {
	case ratio >= 1.7:
		return 1
	case ratio >= 1.4:
		return 2
	case ratio >= 1.15:
		return 3
	}
	return 0
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
