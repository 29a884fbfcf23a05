package fonts

import "testing"

func TestParseToUnicodeCMap(t *testing.T) {
	data := []byte(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
3 beginbfchar
<0003> <0020>
<0005> <D83DDE00>
<0006> /fl
endbfchar
2 beginbfrange
<0010> <0012> <0061>
<0020> <0021> [<00660066> <00660069>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end
`)
	cm, err := parseCMap(data)
	if err != nil {
		t.Fatalf("parseCMap failed: %v", err)
	}
	if !cm.HasCodespaces() {
		t.Fatal("expected a codespace range")
	}
	if n := cm.CodeLen([]byte{0x00, 0x03}); n != 2 {
		t.Errorf("CodeLen = %d, want 2", n)
	}

	lookups := []struct {
		code uint32
		want string
	}{
		{0x03, " "},
		{0x05, "\U0001F600"}, // surrogate pair
		{0x06, "ﬂ"},     // glyph name destination
		{0x10, "a"},
		{0x11, "b"},
		{0x12, "c"},
		{0x20, "ff"},
		{0x21, "fi"},
	}
	for _, tc := range lookups {
		got, ok := cm.Lookup(tc.code)
		if !ok || got != tc.want {
			t.Errorf("Lookup(%#x) = %q, %v; want %q", tc.code, got, ok, tc.want)
		}
	}
	if _, ok := cm.Lookup(0x99); ok {
		t.Error("Lookup(0x99) should miss")
	}
}

func TestParseCIDCMap(t *testing.T) {
	data := []byte(`%!PS-Adobe-3.0 Resource-CMap
/CIDInit /ProcSet findresource begin
begincmap
/CIDSystemInfo << /Registry (Test) /Ordering (Mixed) /Supplement 0 >> def
/CMapName /Test-Mixed-V def
/WMode 1 def
2 begincodespacerange
<00> <80>
<8140> <FFFF>
endcodespacerange
1 begincidchar
<20> 1
endcidchar
2 begincidrange
<21> <7E> 10
<8140> <817E> 633
endcidrange
endcmap
`)
	cm, err := parseCMap(data)
	if err != nil {
		t.Fatalf("parseCMap failed: %v", err)
	}
	if cm.WMode() != 1 {
		t.Errorf("WMode = %d, want 1", cm.WMode())
	}

	// Mixed single- and double-byte segmentation.
	if n := cm.CodeLen([]byte{0x20, 0x41}); n != 1 {
		t.Errorf("CodeLen(one-byte region) = %d, want 1", n)
	}
	if n := cm.CodeLen([]byte{0x81, 0x40}); n != 2 {
		t.Errorf("CodeLen(two-byte region) = %d, want 2", n)
	}
	// No codespace matches: consume the shortest declared width.
	if n := cm.CodeLen([]byte{0x90}); n != 1 {
		t.Errorf("CodeLen(unmatched) = %d, want 1", n)
	}

	cids := []struct {
		code uint32
		want uint32
	}{
		{0x20, 1},
		{0x21, 10},
		{0x7E, 10 + 0x7E - 0x21},
		{0x8140, 633},
		{0x8141, 634},
	}
	for _, tc := range cids {
		got, ok := cm.CID(tc.code)
		if !ok || got != tc.want {
			t.Errorf("CID(%#x) = %d, %v; want %d", tc.code, got, ok, tc.want)
		}
	}
	if _, ok := cm.CID(0x9999); ok {
		t.Error("CID(0x9999) should miss")
	}
}

func TestParseCMapUseCMapVertical(t *testing.T) {
	data := []byte(`begincmap
/Identity-V usecmap
1 begincidrange
<0000> <FFFF> 0
endcidrange
endcmap
`)
	cm, err := parseCMap(data)
	if err != nil {
		t.Fatalf("parseCMap failed: %v", err)
	}
	if cm.WMode() != 1 {
		t.Errorf("WMode = %d, want 1 via usecmap parent", cm.WMode())
	}
	if cm.HasCodespaces() {
		t.Error("no own codespaces were declared")
	}
	if cid, ok := cm.CID(0x4E2D); !ok || cid != 0x4E2D {
		t.Errorf("CID = %d, %v; want identity", cid, ok)
	}
}

func TestParseCMapLaterDefinitionWins(t *testing.T) {
	data := []byte(`begincmap
1 beginbfrange
<0000> <00FF> <0041>
endbfrange
1 beginbfchar
<0005> <005A>
endbfchar
endcmap
`)
	cm, err := parseCMap(data)
	if err != nil {
		t.Fatalf("parseCMap failed: %v", err)
	}
	if got, _ := cm.Lookup(0x05); got != "Z" {
		t.Errorf("Lookup(5) = %q, want the bfchar override Z", got)
	}
	if got, _ := cm.Lookup(0x04); got != "E" {
		t.Errorf("Lookup(4) = %q, want E from the range", got)
	}
}
