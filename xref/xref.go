// Package xref locates and parses cross-reference information: classic xref
// table sections, cross-reference streams, hybrid files carrying both, and a
// linear repair scan for documents whose xref data is missing or unusable.
// The resulting Table maps object numbers to byte offsets or object-stream
// slots and carries the merged trailer dictionary.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/siftdocs/pdfsift/ir/raw"
	"github.com/siftdocs/pdfsift/observability"
	"github.com/siftdocs/pdfsift/recovery"
	"github.com/siftdocs/pdfsift/scanner"
	"github.com/siftdocs/pdfsift/security"
)

const (
	kindFree = iota
	kindInFile
	kindInStream
)

// entry is one cross-reference row. Free rows are kept so that an update
// marking an object free shadows the live row in an older section.
type entry struct {
	kind      int
	offset    int64
	gen       int
	streamNum int
	streamIdx int
}

// Table is the merged cross-reference mapping for a document, newest
// revision first: once an object number has been seen, older sections no
// longer contribute rows for it.
type Table struct {
	entries  map[int]entry
	trailer  *raw.DictObj
	kind     string
	repaired bool
}

// Lookup reports the byte offset and generation of an object stored directly
// in the file. Objects that live in object streams, free slots, and unknown
// numbers report found=false.
func (t *Table) Lookup(objNum int) (offset int64, gen int, found bool) {
	e, ok := t.entries[objNum]
	if !ok || e.kind != kindInFile {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

// ObjStream reports the object stream number and slot index for an object
// stored in a compressed object stream.
func (t *Table) ObjStream(objNum int) (streamNum, idx int, ok bool) {
	e, found := t.entries[objNum]
	if !found || e.kind != kindInStream {
		return 0, 0, false
	}
	return e.streamNum, e.streamIdx, true
}

// Objects returns the live object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for num, e := range t.entries {
		if e.kind == kindFree {
			continue
		}
		out = append(out, num)
	}
	sort.Ints(out)
	return out
}

// Trailer returns the merged trailer dictionary: the newest section's
// trailer, with keys absent there filled in from older sections. May be nil
// when even repair could not locate one.
func (t *Table) Trailer() *raw.DictObj { return t.trailer }

// Type names the newest cross-reference section kind: "table",
// "xref-stream", or "repaired".
func (t *Table) Type() string { return t.kind }

// Repaired reports whether the table was rebuilt by a linear scan instead of
// parsed from declared xref sections.
func (t *Table) Repaired() bool { return t.repaired }

type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return cfg
}

// section is one parsed xref section before merging.
type section struct {
	entries map[int]entry
	order   []int
	trailer *raw.DictObj
	prev    int64
	xrefStm int64
	kind    string
}

func newSection(kind string) *section {
	return &section{entries: make(map[int]entry), prev: -1, xrefStm: -1, kind: kind}
}

func (s *section) add(num int, e entry) {
	// Within a single section the first row for an object wins, matching
	// the precedence of the merge across sections.
	if _, ok := s.entries[num]; ok {
		return
	}
	s.entries[num] = e
	s.order = append(s.order, num)
}

// Load reads the cross-reference chain starting at the offset named by the
// final startxref keyword, following /Prev (and hybrid /XRefStm) links
// through every incremental update. When the chain cannot be located or
// parsed and the recovery strategy permits, it falls back to Repair.
func Load(ctx context.Context, r io.ReaderAt, cfg Config) (*Table, error) {
	cfg = cfg.withDefaults()
	data := readAll(r)

	t := &Table{entries: make(map[int]entry)}
	start, err := findStartXRef(data)
	if err == nil {
		err = t.loadChain(ctx, data, start, cfg)
	}
	if err != nil {
		action := cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
		if action == recovery.ActionFail {
			return nil, err
		}
		cfg.Logger.Warn("xref chain unusable, rebuilding by linear scan",
			observability.Error("cause", err))
		rep, rerr := repairScan(ctx, data, cfg)
		if rerr != nil {
			return nil, err
		}
		return rep, nil
	}
	cfg.Logger.Debug("xref chain loaded",
		observability.String("kind", t.kind),
		observability.Int("objects", len(t.entries)))
	return t, nil
}

// loadChain walks offset, then each /Prev, merging newest-first.
func (t *Table) loadChain(ctx context.Context, data []byte, offset int64, cfg Config) error {
	visited := make(map[int64]bool)
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth >= cfg.Limits.MaxXRefDepth {
			return fmt.Errorf("xref chain exceeds %d sections", cfg.Limits.MaxXRefDepth)
		}
		if visited[offset] {
			return errors.New("xref chain loops")
		}
		visited[offset] = true

		sec, err := loadSection(ctx, data, offset, cfg)
		if err != nil {
			return fmt.Errorf("xref section at %d: %w", offset, err)
		}
		// The table kind reflects the section startxref names, not a hybrid
		// stream merged ahead of it.
		if t.kind == "" {
			t.kind = sec.kind
		}
		// A hybrid table names a cross-reference stream holding rows for
		// objects the classic section hides; those take precedence within
		// the revision, so merge them first.
		if sec.xrefStm >= 0 && !visited[sec.xrefStm] {
			visited[sec.xrefStm] = true
			hybrid, herr := loadSection(ctx, data, sec.xrefStm, cfg)
			if herr != nil {
				action := cfg.Recovery.OnError(ctx, herr, recovery.Location{
					ByteOffset: sec.xrefStm, Component: "xref",
				})
				if action == recovery.ActionFail {
					return fmt.Errorf("hybrid xref stream at %d: %w", sec.xrefStm, herr)
				}
				cfg.Logger.Warn("hybrid xref stream unusable",
					observability.Error("cause", herr))
			} else {
				t.merge(hybrid)
			}
		}
		t.merge(sec)

		if sec.prev < 0 {
			return nil
		}
		if sec.prev >= int64(len(data)) {
			return fmt.Errorf("prev offset %d out of range", sec.prev)
		}
		offset = sec.prev
	}
}

func (t *Table) merge(sec *section) {
	for _, num := range sec.order {
		if _, ok := t.entries[num]; ok {
			continue
		}
		t.entries[num] = sec.entries[num]
	}
	if t.kind == "" {
		t.kind = sec.kind
	}
	if sec.trailer == nil {
		return
	}
	if t.trailer == nil {
		t.trailer = sec.trailer
		return
	}
	// Update trailers often carry only Size/Prev/Root; pick up Info, ID,
	// Encrypt and friends from the original revision.
	for _, key := range sec.trailer.Keys() {
		if _, ok := t.trailer.Get(key); !ok {
			val, _ := sec.trailer.Get(key)
			t.trailer.Set(key, val)
		}
	}
}

// loadSection parses the section at offset, sniffing classic tables by their
// leading xref keyword; anything else must be a cross-reference stream.
func loadSection(ctx context.Context, data []byte, offset int64, cfg Config) (*section, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	sc := scanner.New(bytes.NewReader(data), scanConfig(cfg))
	if err := sc.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(sc)
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return parseClassicSection(ctx, tr, cfg)
	}
	tr.unread(tok)
	return parseStreamSection(ctx, tr, cfg)
}

func scanConfig(cfg Config) scanner.Config {
	return scanner.Config{
		Recovery:        cfg.Recovery,
		MaxStringLength: cfg.Limits.MaxStringLength,
		MaxArrayDepth:   cfg.Limits.MaxIndirectDepth,
		MaxDictDepth:    cfg.Limits.MaxIndirectDepth,
		MaxStreamLength: cfg.Limits.MaxStreamLength,
		MaxBufferSize:   cfg.Limits.MaxDecompressedSize,
	}
}

// findStartXRef returns the offset named by the last startxref keyword.
func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	pos := idx + len("startxref")
	for pos < len(data) && isWhitespace(data[pos]) {
		pos++
	}
	begin := pos
	for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	if pos == begin {
		return 0, errors.New("startxref not followed by an offset")
	}
	var offset int64
	for _, c := range data[begin:pos] {
		offset = offset*10 + int64(c-'0')
		if offset < 0 {
			return 0, errors.New("startxref offset overflows")
		}
	}
	if offset <= 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("startxref offset %d out of range", offset)
	}
	return offset, nil
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(64 * 1024)
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
