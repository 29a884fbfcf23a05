package fonts

import "testing"

func TestEncodingTables(t *testing.T) {
	cases := []struct {
		enc  string
		code byte
		want rune
	}{
		{"WinAnsiEncoding", 0x41, 'A'},
		{"WinAnsiEncoding", 0x80, '€'},
		{"WinAnsiEncoding", 0x91, '‘'},
		{"WinAnsiEncoding", 0x93, '“'},
		{"WinAnsiEncoding", 0xE9, 'é'},
		{"MacRomanEncoding", 0x8E, 'é'},
		{"MacRomanEncoding", 0xA1, '°'},
		{"MacRomanEncoding", 0xAA, '™'},
		{"MacRomanEncoding", 0xD5, '’'},
		{"StandardEncoding", 0x27, '’'},
		{"StandardEncoding", 0x60, '‘'},
		{"StandardEncoding", 0xA1, '¡'},
		{"StandardEncoding", 0xAE, 'ﬁ'},
		{"StandardEncoding", 0xFB, 'ß'},
	}
	for _, tc := range cases {
		tbl := encodingTable(tc.enc)
		if got, ok := tbl[tc.code]; !ok || got != tc.want {
			t.Errorf("%s[%#x] = %q, %v; want %q", tc.enc, tc.code, got, ok, tc.want)
		}
	}

	// Standard leaves most of the high half unassigned.
	std := encodingTable("StandardEncoding")
	if r, ok := std[0x80]; ok {
		t.Errorf("StandardEncoding[0x80] = %q, want unmapped", r)
	}

	// Each call hands out a fresh copy safe to mutate.
	a := encodingTable("WinAnsiEncoding")
	a[0x41] = 'Z'
	if b := encodingTable("WinAnsiEncoding"); b[0x41] != 'A' {
		t.Error("encodingTable returned a shared map")
	}
}

func TestRuneForGlyphName(t *testing.T) {
	cases := []struct {
		name string
		want rune
		ok   bool
	}{
		{"eacute", 'é', true},
		{"quoteright", '’', true},
		{"bullet", '•', true},
		{"fl", 'ﬂ', true},
		{"A", 'A', true},
		{"A.sc", 'A', true}, // suffix stripped
		{"uni20AC", '€', true},
		{"uniD800", 0, false}, // surrogates excluded
		{"u1F600", '\U0001F600', true},
		{"u0041", 'A', true},
		{"nosuchglyph", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := runeForGlyphName(tc.name)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("runeForGlyphName(%q) = %q, %v; want %q, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDecodeTextString(t *testing.T) {
	// UTF-16BE with BOM.
	if got := DecodeTextString([]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}); got != "Hi" {
		t.Errorf("UTF-16 decode = %q, want Hi", got)
	}
	// Surrogate pair survives.
	if got := DecodeTextString([]byte{0xFE, 0xFF, 0xD8, 0x3D, 0xDE, 0x00}); got != "\U0001F600" {
		t.Errorf("surrogate decode = %q", got)
	}
	// PDFDocEncoding: ASCII passthrough plus deviations.
	if got := DecodeTextString([]byte("plain")); got != "plain" {
		t.Errorf("ascii decode = %q", got)
	}
	if got := DecodeTextString([]byte{'a', 0x80, 'b'}); got != "a•b" {
		t.Errorf("pdfdoc decode = %q, want bullet at 0x80", got)
	}
	if got := DecodeTextString([]byte{0xA0}); got != "€" {
		t.Errorf("pdfdoc 0xA0 = %q, want euro", got)
	}
}
