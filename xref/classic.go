package xref

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/scanner"
)

// parseClassicSection reads the subsections and trailer of a classic xref
// table. The caller has already consumed the xref keyword. Tokens keep the
// parse aligned regardless of line-ending style or padding, which the
// fixed-width layout otherwise makes fragile.
func parseClassicSection(ctx context.Context, tr *tokenReader, cfg Config) (*section, error) {
	sec := newSection("table")
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := tr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Table ran out before its trailer; recovery decides
				// whether a trailerless section is usable.
				if rerr := sectionDefect(ctx, cfg, errors.New("xref table ends without trailer")); rerr != nil {
					return nil, rerr
				}
				return sec, nil
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := parseObject(tr)
			if err != nil {
				return nil, fmt.Errorf("trailer dictionary: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			sec.trailer = dict
			sec.prev = dictInt(dict, "Prev", -1)
			sec.xrefStm = dictInt(dict, "XRefStm", -1)
			return sec, nil
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			if rerr := sectionDefect(ctx, cfg, fmt.Errorf("unexpected token %q in xref table", tok.Str)); rerr != nil {
				return nil, rerr
			}
			continue
		}
		countTok, err := tr.next()
		if err != nil {
			return nil, errors.New("xref subsection header truncated")
		}
		if countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			if rerr := sectionDefect(ctx, cfg, errors.New("xref subsection header missing count")); rerr != nil {
				return nil, rerr
			}
			tr.unread(countTok)
			continue
		}
		if err := parseSubsection(tr, sec, int(tok.Int), int(countTok.Int), cfg); err != nil {
			if rerr := sectionDefect(ctx, cfg, err); rerr != nil {
				return nil, rerr
			}
		}
	}
}

// parseSubsection consumes count rows of "offset gen n|f" starting at object
// number start.
func parseSubsection(tr *tokenReader, sec *section, start, count int, cfg Config) error {
	if count < 0 {
		return fmt.Errorf("negative xref subsection count %d", count)
	}
	for i := 0; i < count; i++ {
		offTok, err := tr.next()
		if err != nil {
			return fmt.Errorf("xref subsection truncated at row %d of %d", i, count)
		}
		// A nonstandard count overshoots into the trailer; hand the
		// keyword back and stop the subsection there.
		if offTok.Type == scanner.TokenKeyword {
			tr.unread(offTok)
			return nil
		}
		genTok, err := tr.next()
		if err != nil {
			return errors.New("xref entry missing generation")
		}
		kindTok, err := tr.next()
		if err != nil {
			return errors.New("xref entry missing type")
		}
		if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber ||
			kindTok.Type != scanner.TokenKeyword {
			return fmt.Errorf("malformed xref entry for object %d", start+i)
		}
		switch kindTok.Str {
		case "n":
			sec.add(start+i, entry{kind: kindInFile, offset: offTok.Int, gen: int(genTok.Int)})
		case "f":
			sec.add(start+i, entry{kind: kindFree, gen: int(genTok.Int)})
		default:
			return fmt.Errorf("unknown xref entry type %q", kindTok.Str)
		}
	}
	return nil
}

func sectionDefect(ctx context.Context, cfg Config, err error) error {
	action := cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
	if action == recovery.ActionFail {
		return err
	}
	cfg.Logger.Warn("xref table defect skipped", observability.Error("cause", err))
	return nil
}
