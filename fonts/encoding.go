package fonts

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// encodingTable returns a fresh byte→rune table for a named base encoding.
// Callers own the copy and may overlay /Differences entries. Codes absent
// from the table have no text mapping and fall through to the raw code.
func encodingTable(name string) map[byte]rune {
	t := make(map[byte]rune, 224)
	for c := 0x20; c <= 0x7E; c++ {
		t[byte(c)] = rune(c)
	}
	switch name {
	case "WinAnsiEncoding":
		for c := 0xA0; c <= 0xFF; c++ {
			t[byte(c)] = rune(c)
		}
		overlay(t, winAnsiHigh)
	case "MacRomanEncoding":
		overlay(t, macRomanHigh)
	case "MacExpertEncoding":
		// Expert sets map to small caps and figure variants; no useful
		// plain-text recovery, so only ASCII survives.
	default: // StandardEncoding
		overlay(t, standardDeviations)
	}
	return t
}

func overlay(dst map[byte]rune, src map[byte]rune) {
	for c, r := range src {
		dst[c] = r
	}
}

// DecodeTextString decodes a PDF text string: UTF-16BE when the BOM is
// present, PDFDocEncoding otherwise. Used for metadata, outline titles,
// annotation contents and similar non-content strings.
func DecodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := pdfDocDeviations[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// runeForGlyphName resolves a glyph name from a /Differences array or a
// bfchar destination: the common-name table first, then single-character
// names, then the uniXXXX and uXXXX[XX] forms.
func runeForGlyphName(name string) (rune, bool) {
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	if r, ok := glyphNameRunes[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			if v < 0xD800 || v >= 0xE000 {
				return rune(v), true
			}
		}
	}
	if len(name) >= 5 && len(name) <= 7 && name[0] == 'u' {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			if v <= 0x10FFFF && (v < 0xD800 || v >= 0xE000) {
				return rune(v), true
			}
		}
	}
	return 0, false
}

// standardDeviations holds where Adobe StandardEncoding departs from ASCII,
// plus its sparse high half.
var standardDeviations = map[byte]rune{
	0x27: '’', // quoteright
	0x60: '‘', // quoteleft
	0xA1: '¡', // exclamdown
	0xA2: '¢', // cent
	0xA3: '£', // sterling
	0xA4: '⁄', // fraction
	0xA5: '¥', // yen
	0xA6: 'ƒ', // florin
	0xA7: '§', // section
	0xA8: '¤', // currency
	0xA9: '\'',     // quotesingle
	0xAA: '“', // quotedblleft
	0xAB: '«', // guillemotleft
	0xAC: '‹', // guilsinglleft
	0xAD: '›', // guilsinglright
	0xAE: 'ﬁ', // fi
	0xAF: 'ﬂ', // fl
	0xB1: '–', // endash
	0xB2: '†', // dagger
	0xB3: '‡', // daggerdbl
	0xB4: '·', // periodcentered
	0xB6: '¶', // paragraph
	0xB7: '•', // bullet
	0xB8: '‚', // quotesinglbase
	0xB9: '„', // quotedblbase
	0xBA: '”', // quotedblright
	0xBB: '»', // guillemotright
	0xBC: '…', // ellipsis
	0xBD: '‰', // perthousand
	0xBF: '¿', // questiondown
	0xC1: '`',      // grave
	0xC2: '´', // acute
	0xC3: 'ˆ', // circumflex
	0xC4: '˜', // tilde
	0xC5: '¯', // macron
	0xC6: '˘', // breve
	0xC7: '˙', // dotaccent
	0xC8: '¨', // dieresis
	0xCA: '˚', // ring
	0xCB: '¸', // cedilla
	0xCD: '˝', // hungarumlaut
	0xCE: '˛', // ogonek
	0xCF: 'ˇ', // caron
	0xD0: '—', // emdash
	0xE1: 'Æ', // AE
	0xE3: 'ª', // ordfeminine
	0xE8: 'Ł', // Lslash
	0xE9: 'Ø', // Oslash
	0xEA: 'Œ', // OE
	0xEB: 'º', // ordmasculine
	0xF1: 'æ', // ae
	0xF5: 'ı', // dotlessi
	0xF8: 'ł', // lslash
	0xF9: 'ø', // oslash
	0xFA: 'œ', // oe
	0xFB: 'ß', // germandbls
}

// winAnsiHigh holds the CP1252 0x80–0x9F block; 0xA0 and up is Latin-1.
var winAnsiHigh = map[byte]rune{
	0x80: '€', // Euro
	0x82: '‚',
	0x83: 'ƒ',
	0x84: '„',
	0x85: '…',
	0x86: '†',
	0x87: '‡',
	0x88: 'ˆ',
	0x89: '‰',
	0x8A: 'Š',
	0x8B: '‹',
	0x8C: 'Œ',
	0x8E: 'Ž',
	0x91: '‘',
	0x92: '’',
	0x93: '“',
	0x94: '”',
	0x95: '•',
	0x96: '–',
	0x97: '—',
	0x98: '˜',
	0x99: '™',
	0x9A: 'š',
	0x9B: '›',
	0x9C: 'œ',
	0x9E: 'ž',
	0x9F: 'Ÿ',
}

// macRomanHigh is the full 0x80–0xFF Mac OS Roman block.
var macRomanHigh = map[byte]rune{
	0x80: 'Ä', 0x81: 'Å', 0x82: 'Ç', 0x83: 'É',
	0x84: 'Ñ', 0x85: 'Ö', 0x86: 'Ü', 0x87: 'á',
	0x88: 'à', 0x89: 'â', 0x8A: 'ä', 0x8B: 'ã',
	0x8C: 'å', 0x8D: 'ç', 0x8E: 'é', 0x8F: 'è',
	0x90: 'ê', 0x91: 'ë', 0x92: 'í', 0x93: 'ì',
	0x94: 'î', 0x95: 'ï', 0x96: 'ñ', 0x97: 'ó',
	0x98: 'ò', 0x99: 'ô', 0x9A: 'ö', 0x9B: 'õ',
	0x9C: 'ú', 0x9D: 'ù', 0x9E: 'û', 0x9F: 'ü',
	0xA0: '†', 0xA1: '°', 0xA2: '¢', 0xA3: '£',
	0xA4: '§', 0xA5: '•', 0xA6: '¶', 0xA7: 'ß',
	0xA8: '®', 0xA9: '©', 0xAA: '™', 0xAB: '´',
	0xAC: '¨', 0xAD: '≠', 0xAE: 'Æ', 0xAF: 'Ø',
	0xB0: '∞', 0xB1: '±', 0xB2: '≤', 0xB3: '≥',
	0xB4: '¥', 0xB5: 'µ', 0xB6: '∂', 0xB7: '∑',
	0xB8: '∏', 0xB9: 'π', 0xBA: '∫', 0xBB: 'ª',
	0xBC: 'º', 0xBD: 'Ω', 0xBE: 'æ', 0xBF: 'ø',
	0xC0: '¿', 0xC1: '¡', 0xC2: '¬', 0xC3: '√',
	0xC4: 'ƒ', 0xC5: '≈', 0xC6: '∆', 0xC7: '«',
	0xC8: '»', 0xC9: '…', 0xCA: ' ', 0xCB: 'À',
	0xCC: 'Ã', 0xCD: 'Õ', 0xCE: 'Œ', 0xCF: 'œ',
	0xD0: '–', 0xD1: '—', 0xD2: '“', 0xD3: '”',
	0xD4: '‘', 0xD5: '’', 0xD6: '÷', 0xD7: '◊',
	0xD8: 'ÿ', 0xD9: 'Ÿ', 0xDA: '⁄', 0xDB: '€',
	0xDC: '‹', 0xDD: '›', 0xDE: 'ﬁ', 0xDF: 'ﬂ',
	0xE0: '‡', 0xE1: '·', 0xE2: '‚', 0xE3: '„',
	0xE4: '‰', 0xE5: 'Â', 0xE6: 'Ê', 0xE7: 'Á',
	0xE8: 'Ë', 0xE9: 'È', 0xEA: 'Í', 0xEB: 'Î',
	0xEC: 'Ï', 0xED: 'Ì', 0xEE: 'Ó', 0xEF: 'Ô',
	0xF0: '', 0xF1: 'Ò', 0xF2: 'Ú', 0xF3: 'Û',
	0xF4: 'Ù', 0xF5: 'ı', 0xF6: 'ˆ', 0xF7: '˜',
	0xF8: '¯', 0xF9: '˘', 0xFA: '˙', 0xFB: '˚',
	0xFC: '¸', 0xFD: '˝', 0xFE: '˛', 0xFF: 'ˇ',
}

// pdfDocDeviations holds where PDFDocEncoding departs from Latin-1.
var pdfDocDeviations = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙',
	0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰',
	0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł',
	0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}

// glyphNameRunes covers the glyph names used by the standard Latin text
// encodings plus the symbols that show up in /Differences arrays in
// practice. Letters resolve through the single-character path.
var glyphNameRunes = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@',
	"bracketleft": '[', "backslash": '\\', "bracketright": ']',
	"asciicircum": '^', "underscore": '_', "grave": '`',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',

	"quoteleft": '‘', "quoteright": '’',
	"quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„',
	"guillemotleft": '«', "guillemotright": '»',
	"guilsinglleft": '‹', "guilsinglright": '›',

	"exclamdown": '¡', "cent": '¢', "sterling": '£',
	"currency": '¤', "yen": '¥', "brokenbar": '¦',
	"section": '§', "dieresis": '¨', "copyright": '©',
	"ordfeminine": 'ª', "logicalnot": '¬', "registered": '®',
	"macron": '¯', "degree": '°', "plusminus": '±',
	"twosuperior": '²', "threesuperior": '³', "acute": '´',
	"mu": 'µ', "paragraph": '¶', "periodcentered": '·',
	"cedilla": '¸', "onesuperior": '¹', "ordmasculine": 'º',
	"onequarter": '¼', "onehalf": '½', "threequarters": '¾',
	"questiondown": '¿', "multiply": '×', "divide": '÷',

	"endash": '–', "emdash": '—', "bullet": '•',
	"dagger": '†', "daggerdbl": '‡', "ellipsis": '…',
	"perthousand": '‰', "fraction": '⁄', "Euro": '€',
	"trademark": '™', "minus": '−', "lozenge": '◊',
	"florin": 'ƒ', "circumflex": 'ˆ', "caron": 'ˇ',
	"breve": '˘', "dotaccent": '˙', "ring": '˚',
	"ogonek": '˛', "tilde": '˜', "hungarumlaut": '˝',
	"fi": 'ﬁ', "fl": 'ﬂ',

	"Agrave": 'À', "Aacute": 'Á', "Acircumflex": 'Â',
	"Atilde": 'Ã', "Adieresis": 'Ä', "Aring": 'Å',
	"AE": 'Æ', "Ccedilla": 'Ç', "Egrave": 'È',
	"Eacute": 'É', "Ecircumflex": 'Ê', "Edieresis": 'Ë',
	"Igrave": 'Ì', "Iacute": 'Í', "Icircumflex": 'Î',
	"Idieresis": 'Ï', "Eth": 'Ð', "Ntilde": 'Ñ',
	"Ograve": 'Ò', "Oacute": 'Ó', "Ocircumflex": 'Ô',
	"Otilde": 'Õ', "Odieresis": 'Ö', "Oslash": 'Ø',
	"Ugrave": 'Ù', "Uacute": 'Ú', "Ucircumflex": 'Û',
	"Udieresis": 'Ü', "Yacute": 'Ý', "Thorn": 'Þ',
	"germandbls": 'ß',
	"agrave":     'à', "aacute": 'á', "acircumflex": 'â',
	"atilde": 'ã', "adieresis": 'ä', "aring": 'å',
	"ae": 'æ', "ccedilla": 'ç', "egrave": 'è',
	"eacute": 'é', "ecircumflex": 'ê', "edieresis": 'ë',
	"igrave": 'ì', "iacute": 'í', "icircumflex": 'î',
	"idieresis": 'ï', "eth": 'ð', "ntilde": 'ñ',
	"ograve": 'ò', "oacute": 'ó', "ocircumflex": 'ô',
	"otilde": 'õ', "odieresis": 'ö', "oslash": 'ø',
	"ugrave": 'ù', "uacute": 'ú', "ucircumflex": 'û',
	"udieresis": 'ü', "yacute": 'ý', "thorn": 'þ',
	"ydieresis": 'ÿ',

	"Lslash": 'Ł', "lslash": 'ł', "OE": 'Œ', "oe": 'œ',
	"Scaron": 'Š', "scaron": 'š', "Ydieresis": 'Ÿ',
	"Zcaron": 'Ž', "zcaron": 'ž', "dotlessi": 'ı',
	"nbspace": ' ', "sfthyphen": '­', "middot": '·',
}
