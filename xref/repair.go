package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/scanner"
)

// Repair rebuilds a cross-reference table by scanning the whole file for
// "N G obj" headers. The last definition of each object number wins, matching
// the precedence an intact incremental-update chain would have given. The
// trailer is taken from the last trailer keyword, or failing that the last
// /Type /XRef stream dictionary; if neither exists one is synthesized around
// the last /Type /Catalog object seen.
func Repair(ctx context.Context, r io.ReaderAt, cfg Config) (*Table, error) {
	return repairScan(ctx, readAll(r), cfg.withDefaults())
}

func repairScan(ctx context.Context, data []byte, cfg Config) (*Table, error) {
	sc := scanner.New(bytes.NewReader(data), scanConfig(cfg))
	tr := newTokenReader(sc)

	entries := make(map[int]entry)
	var trailer, xrefDict *raw.DictObj
	var catalog raw.ObjectRef
	haveCatalog := false

	lastPos := int64(-1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := tr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip a bad region, but never without forward progress.
			pos := sc.Position()
			if pos <= lastPos {
				if serr := sc.SeekTo(lastPos + 1); serr != nil {
					break
				}
				pos = lastPos + 1
			}
			lastPos = pos
			tr = newTokenReader(sc)
			continue
		}
		lastPos = sc.Position()

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt && tok.Int >= 0:
			num, gen, pos, ok := matchObjectHeader(tr, tok)
			if !ok {
				continue
			}
			entries[num] = entry{kind: kindInFile, offset: pos, gen: gen}
			body, berr := readObjectBody(tr)
			if berr != nil {
				continue
			}
			if d, isDict := body.(*raw.DictObj); isDict {
				switch dictName(d, "Type") {
				case "Catalog":
					catalog = raw.ObjectRef{Num: num, Gen: gen}
					haveCatalog = true
				case "XRef":
					xrefDict = d
				}
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, terr := parseObject(tr)
			if terr != nil {
				continue
			}
			if d, isDict := obj.(*raw.DictObj); isDict {
				trailer = d
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair scan found no objects")
	}
	if trailer == nil {
		trailer = xrefDict
	}
	if trailer == nil {
		trailer = raw.Dict()
		maxNum := 0
		for num := range entries {
			if num > maxNum {
				maxNum = num
			}
		}
		trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(maxNum)+1))
	}
	if _, hasRoot := trailer.Get(raw.NameLiteral("Root")); !hasRoot && haveCatalog {
		trailer.Set(raw.NameLiteral("Root"), raw.RefObj{R: catalog})
	}

	cfg.Logger.Info("xref rebuilt by linear scan",
		observability.Int("objects", len(entries)))
	return &Table{entries: entries, trailer: trailer, kind: "repaired", repaired: true}, nil
}

// matchObjectHeader checks whether numTok begins an "N G obj" header. On a
// partial match the consumed tokens are handed back so a header starting at
// the second number ("999 1 0 obj") is still found.
func matchObjectHeader(tr *tokenReader, numTok scanner.Token) (num, gen int, pos int64, ok bool) {
	genTok, err := tr.next()
	if err != nil {
		return 0, 0, 0, false
	}
	if genTok.Type != scanner.TokenNumber || !genTok.IsInt || genTok.Int < 0 || genTok.Int > 65535 {
		tr.unread(genTok)
		return 0, 0, 0, false
	}
	objTok, err := tr.next()
	if err != nil {
		tr.unread(genTok)
		return 0, 0, 0, false
	}
	if objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		tr.unread(objTok)
		tr.unread(genTok)
		return 0, 0, 0, false
	}
	return int(numTok.Int), int(genTok.Int), numTok.Pos, true
}

// readObjectBody parses the object following a header, consuming any stream
// payload so the scan does not descend into raw stream bytes.
func readObjectBody(tr *tokenReader) (raw.Object, error) {
	obj, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return obj, nil
	}
	if n := dictInt(dict, "Length", -1); n >= 0 {
		tr.setStreamLengthHint(n)
	} else {
		tr.clearStreamLengthHint()
	}
	tok, err := tr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dict, nil
		}
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		tr.unread(tok)
	}
	return dict, nil
}

func dictName(d *raw.DictObj, key string) string {
	val, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return ""
	}
	name, isName := val.(raw.NameObj)
	if !isName {
		return ""
	}
	return name.Val
}
