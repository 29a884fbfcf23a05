// Package scanner lexes PDF syntax into typed tokens. It buffers the input
// in fixed-size windows from an io.ReaderAt so callers can seek to xref
// offsets without slurping the whole file, and it reports malformed
// constructs through a recovery.Strategy instead of deciding policy itself.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"unicode"

	"github.com/siftdocs/pdfsift/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // stream payload following the 'stream' keyword
	TokenInlineImage                  // inline image data following ID ... EI (content stream only)
	TokenKeyword                      // other keywords (obj, endobj, operators, >>, ], etc.)
)

// Token is a single lexed unit. Fields are populated by type: Str for names
// and keywords, Bytes for strings/streams/inline images, Int+IsInt or Float
// for numbers, Int+Gen for references, Bool for booleans. Pos is the byte
// offset of the token's first character.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	Gen   int
	IsInt bool
	Bool  bool
	Pos   int64
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxNameLength   int
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	MaxInlineImage  int64
	MaxBufferSize   int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// pdfScanner incrementally buffers PDF data from a ReaderAt in fixed-size windows.
type pdfScanner struct {
	reader        ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	arrayDepth    int
	dictDepth     int
	recLoc        recovery.Location
	lastAction    recovery.Action
}

// New returns a scanner that windows over r.
func New(r ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		if errors.Is(err, io.EOF) {
			return s.atEOF()
		}
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		return s.atEOF()
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	if isAlpha(c) {
		return s.scanKeyword()
	}
	// Fallback single char keyword (e.g. '{' '}' in Type 4 function bodies).
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

// atEOF closes dangling arrays through recovery before reporting io.EOF.
func (s *pdfScanner) atEOF() (Token, error) {
	if s.arrayDepth > 0 {
		if err := s.recover(errors.New("unclosed array at EOF"), "array"); err != nil {
			return Token{}, err
		}
		if s.lastAction == recovery.ActionFix || s.lastAction == recovery.ActionSkip {
			s.arrayDepth--
			return Token{Type: TokenKeyword, Str: "]", Pos: s.pos}, nil
		}
	}
	return Token{}, io.EOF
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if s.pos >= int64(len(s.data)) {
			if err := s.ensure(s.pos); err != nil {
				return err
			}
		}
		if s.pos >= int64(len(s.data)) {
			return io.EOF
		}
		c := s.data[s.pos]
		// whitespace per PDF spec (space 0x20, tab, CR, LF, FF, null 0x00)
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' { // comment runs to EOL
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if s.pos >= int64(len(s.data)) {
					return io.EOF
				}
				if s.data[s.pos] == '\n' || s.data[s.pos] == '\r' {
					break
				}
			}
			continue
		}
		return nil
	}
}

func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	if s.cfg.MaxBufferSize > 0 && int64(len(s.data)) >= s.cfg.MaxBufferSize {
		return errors.New("scanner buffer size exceeded")
	}
	buf := make([]byte, s.chunkSize)
	off := int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		s.eof = true
	}
	return nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isAlpha(c byte) bool      { return unicode.IsLetter(rune(c)) }

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' { // two-digit hex escape
			s.pos++
			a := s.hexNibble()
			b := s.hexNibble()
			out.WriteByte((a << 4) | b)
		} else {
			out.WriteByte(c)
			s.pos++
		}
		if s.cfg.MaxNameLength > 0 && out.Len() > s.cfg.MaxNameLength {
			if err := s.recover(errors.New("name too long"), "name"); err != nil {
				return Token{}, err
			}
			s.skipNonDelimiters()
			break
		}
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

// skipNonDelimiters drops the remainder of an oversized token.
func (s *pdfScanner) skipNonDelimiters() {
	for {
		if err := s.ensure(s.pos); err != nil || s.pos >= int64(len(s.data)) {
			return
		}
		if isDelimiter(s.data[s.pos]) {
			return
		}
		s.pos++
	}
}

func (s *pdfScanner) hexNibble() byte {
	if err := s.ensure(s.pos); err != nil || s.pos >= int64(len(s.data)) {
		return 0
	}
	c := s.data[s.pos]
	s.pos++
	return fromHex(c)
}

func (s *pdfScanner) scanLiteralString() (Token, error) { // PDF 7.3.4.2
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	discard := false
	put := func(b byte) {
		if !discard {
			buf.WriteByte(b)
		}
	}
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		if !discard && s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			if err := s.recover(errors.New("literal string too long"), "literal"); err != nil {
				return Token{}, err
			}
			// Keep consuming to the closing parenthesis, drop the excess.
			discard = true
		}
		c := s.data[s.pos]
		if c == '\\' {
			s.pos++
			if err := s.ensure(s.pos); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return Token{}, err
			}
			if s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			// Backslash followed by EOL is a line continuation.
			if esc == '\r' {
				s.pos++
				if err := s.ensure(s.pos); err == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			}
			if esc == '\n' {
				s.pos++
				continue
			}
			// Octal escape, up to 3 digits.
			if esc >= '0' && esc <= '7' {
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2; k++ {
					if err := s.ensure(s.pos); err != nil {
						if errors.Is(err, io.EOF) {
							break
						}
						return Token{}, err
					}
					if s.pos >= int64(len(s.data)) {
						break
					}
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = (val << 3) + int(d-'0')
					s.pos++
				}
				put(byte(val))
				continue
			}
			put(translateEscape(esc))
			s.pos++
			continue
		}
		if c == '(' {
			depth++
			put(c)
			s.pos++
			continue
		}
		if c == ')' {
			depth--
			if depth == 0 {
				s.pos++
				break
			}
			put(c)
			s.pos++
			continue
		}
		put(c)
		s.pos++
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	discard := false
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			closed = true
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if !discard && s.cfg.MaxStringLength > 0 && int64(len(hexbuf))/2 >= s.cfg.MaxStringLength {
			if err := s.recover(errors.New("hex string too long"), "hex"); err != nil {
				return Token{}, err
			}
			discard = true
		}
		if !discard {
			hexbuf = append(hexbuf, c)
		}
		s.pos++
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	// Odd nibble count pads with 0 per spec.
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, (fromHex(hexbuf[i])<<4)|fromHex(hexbuf[i+1]))
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// scanStream captures the stream payload. With a length hint it reads exactly
// that many bytes; otherwise it scans forward for an endstream keyword on a
// line boundary.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
		return Token{}, err
	}
	// PDF 7.3.8: the stream keyword must be followed by EOL before data.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
		if err := s.ensure(s.pos); err == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
			s.pos++
		}
	} else if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	} else {
		// On ActionFix the data begins directly after the keyword.
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, err
		}
	}
	dataStart := s.pos
	if s.nextStreamLen >= 0 {
		l := s.nextStreamLen
		s.nextStreamLen = -1
		if s.cfg.MaxStreamLength > 0 && l > s.cfg.MaxStreamLength {
			if err := s.recover(errors.New("stream too long"), "stream"); err != nil {
				return Token{}, err
			}
			return s.skipOversizedStream(start, dataStart)
		}
		if l > 0 {
			if err := s.ensure(dataStart + l - 1); err != nil && !errors.Is(err, io.EOF) {
				return Token{}, err
			} else if errors.Is(err, io.EOF) && dataStart+l > int64(len(s.data)) {
				if recErr := s.recover(errors.New("stream ended before declared length"), "stream"); recErr != nil {
					return Token{}, recErr
				}
			}
		}
		if dataStart+l > int64(len(s.data)) {
			l = int64(len(s.data)) - dataStart
		}
		end := dataStart + l
		payload := append([]byte(nil), s.data[dataStart:end]...)
		s.pos = end
		// Consume the optional EOL after the data.
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos < int64(len(s.data)) {
			if s.data[s.pos] == '\r' {
				s.pos++
				if err := s.ensure(s.pos); err == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			} else if s.data[s.pos] == '\n' {
				s.pos++
			}
		}
		needle := []byte("endstream")
		if s.pos+int64(len(needle)) <= int64(len(s.data)) && bytes.Equal(s.data[s.pos:s.pos+int64(len(needle))], needle) {
			s.pos += int64(len(needle))
		} else if idx := bytes.Index(s.data[s.pos:], needle); idx >= 0 {
			// Length hint disagreed with the marker; trust the marker position.
			s.pos += int64(idx + len(needle))
		}
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	needle := []byte("endstream")
	idx := int64(-1)
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil {
			if !errors.Is(err, io.EOF) {
				return Token{}, err
			}
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			break
		}
		if i+int64(len(needle)) > int64(len(s.data)) {
			break
		}
		if s.data[i] != 'e' {
			continue
		}
		if !bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			continue
		}
		prevOK := hasStreamBreakBefore(s.data, i, dataStart)
		followOK := i+int64(len(needle)) >= int64(len(s.data)) || isDelimiter(s.data[i+int64(len(needle))])
		if prevOK && followOK {
			idx = i
			break
		}
	}
	if idx < 0 {
		if s.cfg.MaxStreamScan > 0 && int64(len(s.data))-dataStart > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
		}
		payload := append([]byte(nil), s.data[dataStart:]...)
		if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
			if err := s.recover(errors.New("stream too long"), "stream"); err != nil {
				return Token{}, err
			}
			payload = nil
		}
		s.pos = int64(len(s.data))
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	// Trim the EOL that belongs to the endstream marker, not the data.
	end := idx
	if end > dataStart {
		if s.data[end-1] == '\n' {
			end--
			if end > dataStart && s.data[end-1] == '\r' {
				end--
			}
		} else if s.data[end-1] == '\r' {
			end--
		}
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
		if err := s.recover(errors.New("stream too long"), "stream"); err != nil {
			return Token{}, err
		}
		payload = nil
	}
	s.pos = idx + int64(len(needle))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

// skipOversizedStream advances past the nearest endstream marker and emits an
// empty payload so the surrounding object can still be parsed.
func (s *pdfScanner) skipOversizedStream(start, dataStart int64) (Token, error) {
	needle := []byte("endstream")
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if i+int64(len(needle)) > int64(len(s.data)) {
			s.pos = int64(len(s.data))
			return s.emit(Token{Type: TokenStream, Pos: start})
		}
		if s.data[i] == 'e' && bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			s.pos = i + int64(len(needle))
			return s.emit(Token{Type: TokenStream, Pos: start})
		}
	}
}

// scanInlineImage consumes bytes after the ID keyword until an EI delimiter
// preceded by a line break. Requiring the line break avoids false matches on
// the two-byte sequence inside binary sample data.
func (s *pdfScanner) scanInlineImage(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		if err := s.recover(errors.New("unterminated inline image"), "inline_image"); err != nil {
			return Token{}, err
		}
		return s.emit(Token{Type: TokenInlineImage, Pos: start})
	}
	if !isWhitespace(s.data[s.pos]) {
		// On ActionFix the data begins directly after ID.
		if err := s.recover(errors.New("inline image missing required whitespace after ID"), "inline_image"); err != nil {
			return Token{}, err
		}
	} else {
		s.pos++
		// An EOL right after the ID whitespace is not part of the data.
		if err := s.ensure(s.pos); err == nil && s.pos < int64(len(s.data)) {
			if s.data[s.pos] == '\r' {
				s.pos++
				if err := s.ensure(s.pos); err == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			} else if s.data[s.pos] == '\n' {
				s.pos++
			}
		}
	}
	dataStart := s.pos
	capped := false
	for {
		if err := s.ensure(s.pos + 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos+1 >= int64(len(s.data)) {
			if err := s.recover(errors.New("unterminated inline image"), "inline_image"); err != nil {
				return Token{}, err
			}
			payload := s.inlinePayload(dataStart, int64(len(s.data)), capped)
			s.pos = int64(len(s.data))
			return s.emit(Token{Type: TokenInlineImage, Bytes: payload, Pos: start})
		}
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' {
			lineBreakBefore := s.pos > dataStart && isEOL(s.data[s.pos-1])
			var nextOK bool
			if err := s.ensure(s.pos + 2); err != nil && !errors.Is(err, io.EOF) {
				return Token{}, err
			}
			if s.pos+2 >= int64(len(s.data)) {
				nextOK = true
			} else {
				nextOK = isDelimiter(s.data[s.pos+2])
			}
			if lineBreakBefore && nextOK {
				payload := s.inlinePayload(dataStart, s.pos, capped)
				s.pos += 2
				return s.emit(Token{Type: TokenInlineImage, Bytes: payload, Pos: start})
			}
		}
		s.pos++
		if !capped && s.cfg.MaxInlineImage > 0 && s.pos-dataStart > s.cfg.MaxInlineImage {
			if err := s.recover(errors.New("inline image too long"), "inline_image"); err != nil {
				return Token{}, err
			}
			// Keep searching for the EI delimiter, emit a capped payload.
			capped = true
		}
	}
}

func (s *pdfScanner) inlinePayload(dataStart, end int64, capped bool) []byte {
	if capped && s.cfg.MaxInlineImage > 0 && end-dataStart > s.cfg.MaxInlineImage {
		end = dataStart + s.cfg.MaxInlineImage
	}
	return append([]byte(nil), s.data[dataStart:end]...)
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *pdfScanner) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		// Operators like B*, f* and quote operators carry punctuation.
		buf.WriteByte(c)
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID": // inline image data; caller has parsed the image dict already
		return s.scanInlineImage(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1Str := s.scanNumberString()
	if num1Str == "" {
		s.pos++
		return Token{}, errors.New("invalid number")
	}

	if isIntString(num1Str) {
		if err := s.skipWSAndComments(); err == nil {
			secondStart := s.pos
			num2Str := s.scanNumberString()
			if num2Str != "" && isIntString(num2Str) {
				if err := s.skipWSAndComments(); err == nil &&
					s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
					(s.peekAhead(1) == 0 || isDelimiter(s.peekAhead(1))) {
					s.pos++
					n1, _ := strconv.Atoi(num1Str)
					n2, _ := strconv.Atoi(num2Str)
					return Token{Type: TokenRef, Int: int64(n1), Gen: n2, IsInt: true, Pos: start}, nil
				}
			}
			// Not a ref; leave the second number for the next call.
			s.pos = secondStart
		}
	}

	if i, err := strconv.ParseInt(num1Str, 10, 64); err == nil {
		return s.emit(Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start})
	}
	f, _ := strconv.ParseFloat(normalizeReal(num1Str), 64)
	return s.emit(Token{Type: TokenNumber, Float: f, Pos: start})
}

func isIntString(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '.' {
			return false
		}
		if (c == '+' || c == '-') && i > 0 {
			return false
		}
	}
	return true
}

// normalizeReal tolerates reals like "4." and ".5" that ParseFloat accepts,
// plus the occasional "--5" seen in damaged files.
func normalizeReal(v string) string {
	for len(v) > 1 && v[0] == '-' && v[1] == '-' {
		v = v[1:]
	}
	return v
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return ""
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			buf.WriteByte(c)
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

func (s *pdfScanner) recover(err error, loc string) error {
	s.lastAction = recovery.ActionFail
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	action := s.cfg.Recovery.OnError(nil, err, location)
	s.lastAction = action
	switch action {
	case recovery.ActionSkip, recovery.ActionFix:
		return nil
	default:
		return err
	}
}

// emit applies depth accounting before handing the token to the caller.
func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			err := errors.New("array depth exceeded")
			s.recover(err, "array") // reported, but depth caps are not skippable
			return Token{}, err
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			err := errors.New("dict depth exceeded")
			s.recover(err, "dict")
			return Token{}, err
		}
	case TokenKeyword:
		if tok.Str == "]" {
			if s.arrayDepth == 0 {
				if err := s.recover(errors.New("array depth underflow"), "array"); err != nil {
					return Token{}, err
				}
				// Dropped by recovery; hand back the next token instead.
				return s.Next()
			}
			s.arrayDepth--
		}
		if tok.Str == ">>" {
			if s.dictDepth == 0 {
				if err := s.recover(errors.New("dict depth underflow"), "dict"); err != nil {
					return Token{}, err
				}
				return s.Next()
			}
			s.dictDepth--
		}
	}
	return tok, nil
}

// hasStreamBreakBefore reports whether position i is preceded by a line break
// or whitespace boundary, making it a safe endstream candidate.
func hasStreamBreakBefore(data []byte, i, dataStart int64) bool {
	if i == dataStart {
		return true
	}
	if isEOL(data[i-1]) {
		return true
	}
	return isWhitespace(data[i-1])
}
