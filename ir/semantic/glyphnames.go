package semantic

import "strconv"

// glyphNames covers the Adobe glyph names seen in practice in /Differences
// arrays for Latin text. uniXXXX and uXXXX forms are handled separately.
var glyphNames = map[string]rune{
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
	"endash": '–', "emdash": '—', "bullet": '•',
	"ellipsis": '…', "dagger": '†', "daggerdbl": '‡',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ',
	"ffi": 'ﬃ', "ffl": 'ﬄ',
	"adieresis": 'ä', "odieresis": 'ö', "udieresis": 'ü',
	"Adieresis": 'Ä', "Odieresis": 'Ö', "Udieresis": 'Ü',
	"germandbls": 'ß', "eacute": 'é', "egrave": 'è', "agrave": 'à',
	"ccedilla": 'ç', "ntilde": 'ñ', "aring": 'å', "oslash": 'ø',
	"ae": 'æ', "oe": 'œ', "Euro": '€', "sterling": '£',
	"yen": '¥', "cent": '¢', "section": '§', "paragraph": '¶',
	"copyright": '©', "registered": '®', "trademark": '™',
	"degree": '°', "plusminus": '±', "multiply": '×', "divide": '÷',
	"exclamdown": '¡', "questiondown": '¿',
}

// glyphNameToRune resolves a glyph name to its Unicode codepoint. Single
// letters and digits map to themselves; uniXXXX/uXXXX names carry their
// codepoint in hex.
func glyphNameToRune(name string) (rune, bool) {
	if len(name) == 1 {
		c := name[0]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return rune(c), true
		}
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 7 && name[:3] == "uni" {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if len(name) >= 5 && len(name) <= 7 && name[0] == 'u' {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}
