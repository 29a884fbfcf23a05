// Command pdfsift exercises the extraction library from the shell:
// document metadata, plain text, the raw element stream, or a Markdown
// rendering of a PDF file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/siftdocs/pdfsift/contentstream"
	"github.com/siftdocs/pdfsift/export"
	"github.com/siftdocs/pdfsift/extractor"
	"github.com/siftdocs/pdfsift/ir/decoded"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/parser"
	"github.com/siftdocs/pdfsift/security"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "info":
		err = runInfo(args)
	case "text":
		err = runText(args)
	case "elements":
		err = runElements(args)
	case "markdown":
		err = runMarkdown(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfsift: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: pdfsift <command> [flags] <pdf>

Commands:
  info      Dump document metadata, page geometry and font usage as JSON
  text      Extract plain text (pages separated by form feeds)
  elements  List interpreted page elements
  markdown  Render the document as Markdown
`)
}

type cmdOptions struct {
	path            string
	pages           []int
	verbose         bool
	ignoreEncrypted bool
}

func parseCmd(name string, args []string) (cmdOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	pages := fs.String("pages", "", "Comma-separated 1-based page numbers (default all)")
	verbose := fs.Bool("v", false, "Log progress to stderr")
	ignore := fs.Bool("ignore-encryption", false, "Attempt extraction from encrypted files")
	if err := fs.Parse(args); err != nil {
		return cmdOptions{}, err
	}
	if fs.NArg() != 1 {
		return cmdOptions{}, fmt.Errorf("%s: missing pdf path", name)
	}
	opts := cmdOptions{path: fs.Arg(0), verbose: *verbose, ignoreEncrypted: *ignore}
	if *pages != "" {
		for _, part := range strings.Split(*pages, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 {
				return cmdOptions{}, fmt.Errorf("bad page number %q", part)
			}
			opts.pages = append(opts.pages, n)
		}
	}
	return opts, nil
}

func (o cmdOptions) logger() observability.Logger {
	if o.verbose {
		return stderrLogger{}
	}
	return observability.NopLogger{}
}

func open(ctx context.Context, o cmdOptions) (*extractor.Extractor, func(), error) {
	f, err := os.Open(o.path)
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger()

	p := parser.NewDocumentParser(parser.Config{Logger: logger})
	rawDoc, err := p.Parse(ctx, f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("parse %s: %w", o.path, err)
	}

	dec, err := decoded.NewDecoder(decoded.Config{Logger: logger}).Decode(ctx, rawDoc)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("decode streams: %w", err)
	}

	exOpts := extractor.DefaultOptions()
	exOpts.Pages = o.pages
	exOpts.Logger = logger
	if o.ignoreEncrypted {
		exOpts.Encryption = security.EncryptionIgnore
	}
	ex, err := extractor.New(dec, exOpts)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return ex, func() { f.Close() }, nil
}

func runInfo(args []string) error {
	o, err := parseCmd("info", args)
	if err != nil {
		return err
	}
	ex, closeFile, err := open(context.Background(), o)
	if err != nil {
		return err
	}
	defer closeFile()

	type pageInfo struct {
		Page   int     `json:"page"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Rotate int     `json:"rotate,omitempty"`
		Label  string  `json:"label,omitempty"`
	}
	meta := ex.ExtractMetadata()
	labels := ex.ExtractPageLabels()
	dims := ex.PageDimensions()
	pages := make([]pageInfo, 0, len(dims))
	for i, d := range dims {
		pages = append(pages, pageInfo{
			Page: i + 1, Width: d.Width, Height: d.Height, Rotate: d.Rotate,
			Label: labels[i],
		})
	}
	out := struct {
		Version     string                  `json:"version"`
		Title       string                  `json:"title,omitempty"`
		Author      string                  `json:"author,omitempty"`
		Producer    string                  `json:"producer,omitempty"`
		Lang        string                  `json:"lang,omitempty"`
		Encrypted   bool                    `json:"encrypted,omitempty"`
		PageCount   int                     `json:"pageCount"`
		Pages       []pageInfo              `json:"pages"`
		Fonts       []extractor.FontSummary `json:"fonts,omitempty"`
		Outlines    []extractor.TOCEntry    `json:"outlines,omitempty"`
		Annotations []extractor.Annotation  `json:"annotations,omitempty"`
	}{
		Version:     meta.Version,
		Title:       meta.Info.Title,
		Author:      meta.Info.Author,
		Producer:    meta.Info.Producer,
		Lang:        meta.Lang,
		Encrypted:   meta.Encrypted,
		PageCount:   meta.PageCount,
		Pages:       pages,
		Fonts:       ex.ExtractFonts(),
		Outlines:    ex.ExtractTableOfContents(),
		Annotations: ex.ExtractAnnotations(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runText(args []string) error {
	o, err := parseCmd("text", args)
	if err != nil {
		return err
	}
	doc, err := extract(o)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, export.PlainText(doc))
	return err
}

func runMarkdown(args []string) error {
	o, err := parseCmd("markdown", args)
	if err != nil {
		return err
	}
	doc, err := extract(o)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, export.Markdown(doc))
	return err
}

func runElements(args []string) error {
	o, err := parseCmd("elements", args)
	if err != nil {
		return err
	}
	doc, err := extract(o)
	if err != nil {
		return err
	}
	for _, page := range doc.Pages {
		fmt.Printf("page %d (%.0fx%.0f)\n", page.PageNumber, page.Width, page.Height)
		for _, el := range page.Elements {
			fmt.Printf("  %s\n", describe(el))
		}
	}
	return nil
}

func describe(el contentstream.Element) string {
	switch e := el.(type) {
	case *contentstream.TextElement:
		return fmt.Sprintf("text (%.1f,%.1f) size %.1f %q", e.X, e.Y, e.EffectiveFontSize, e.Text)
	case *contentstream.PathElement:
		b := e.DeviceBounds()
		return fmt.Sprintf("path [%.1f %.1f %.1f %.1f] ops %d", b.MinX, b.MinY, b.MaxX, b.MaxY, e.Path.Complexity())
	case *contentstream.ImageElement:
		b := e.DeviceBounds()
		return fmt.Sprintf("image %s [%.1f %.1f %.1f %.1f]", e.Name, b.MinX, b.MinY, b.MaxX, b.MaxY)
	case *contentstream.RasterImageElement:
		return fmt.Sprintf("raster %dx%d [%.1f %.1f %.1f %.1f]", e.Width, e.Height,
			e.Bounds.MinX, e.Bounds.MinY, e.Bounds.MaxX, e.Bounds.MaxY)
	default:
		return fmt.Sprintf("%T", el)
	}
}

func extract(o cmdOptions) (*extractor.Document, error) {
	ctx := context.Background()
	ex, closeFile, err := open(ctx, o)
	if err != nil {
		return nil, err
	}
	defer closeFile()
	return ex.ExtractDocument(ctx)
}

// stderrLogger adapts the library logger to the standard log package for
// the -v flag.
type stderrLogger struct{ fields []observability.Field }

func (l stderrLogger) log(level, msg string, fields []observability.Field) {
	var sb strings.Builder
	sb.WriteString(level)
	sb.WriteByte(' ')
	sb.WriteString(msg)
	for _, f := range append(l.fields, fields...) {
		fmt.Fprintf(&sb, " %s=%v", f.Key(), f.Value())
	}
	log.Println(sb.String())
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.log("DEBUG", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.log("INFO", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.log("WARN", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.log("ERROR", msg, fields) }
func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
