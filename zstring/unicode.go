package zstring

import "github.com/brinkhall/goz/zcore"

// DefaultUnicodeTranslationTable is the standard ZSCII-to-Unicode mapping
// for codes 155-223, used whenever a story does not supply its own
// unicode translation table extension.
var DefaultUnicodeTranslationTable = map[rune]uint8{
	'ä': 155, 'ö': 156, 'ü': 157, 'Ä': 158, 'Ö': 159, 'Ü': 160, 'ß': 161,
	'»': 162, '«': 163, 'ë': 164, 'ï': 165, 'ÿ': 166, 'Ë': 167, 'Ï': 168,
	'á': 169, 'é': 170, 'í': 171, 'ó': 172, 'ú': 173, 'ý': 174, 'Á': 175,
	'É': 176, 'Í': 177, 'Ó': 178, 'Ú': 179, 'Ý': 180, 'à': 181, 'è': 182,
	'ì': 183, 'ò': 184, 'ù': 185, 'À': 186, 'È': 187, 'Ì': 188, 'Ò': 189,
	'Ù': 190, 'â': 191, 'ê': 192, 'î': 193, 'ô': 194, 'û': 195, 'Â': 196,
	'Ê': 197, 'Î': 198, 'Ô': 199, 'Û': 200, 'å': 201, 'Å': 202, 'ø': 203,
	'Ø': 204, 'ã': 205, 'ñ': 206, 'õ': 207, 'Ã': 208, 'Ñ': 209, 'Õ': 210,
	'æ': 211, 'Æ': 212, 'ç': 213, 'Ç': 214, 'þ': 215, 'ð': 216, 'Þ': 217,
	'Ð': 218, '£': 219, 'œ': 220, 'Œ': 221, '¡': 222, '¿': 223,
}

func unicodeTable(core *zcore.Core) map[rune]uint8 {
	if core == nil || core.UnicodeExtensionTableBaseAddress == 0 {
		return DefaultUnicodeTranslationTable
	}
	table, err := parseUnicodeTranslationTable(core)
	if err != nil {
		return DefaultUnicodeTranslationTable
	}
	return table
}

// unicodeToZscii maps a rune to its ZSCII code in the 155-223 extension
// range. core may be nil, in which case the default table is used.
func unicodeToZscii(r rune, core *zcore.Core) (uint8, bool) {
	zchr, ok := unicodeTable(core)[r]
	return zchr, ok
}

// ZsciiToUnicode maps a ZSCII code in the 155-223 extension range back
// to a rune. core may be nil, in which case the default table is used.
func ZsciiToUnicode(zchr uint8, core *zcore.Core) (rune, bool) {
	for r, ix := range unicodeTable(core) {
		if ix == zchr {
			return r, true
		}
	}
	return 0, false
}

// parseUnicodeTranslationTable reads a story-supplied unicode translation
// table from the header extension table.
func parseUnicodeTranslationTable(core *zcore.Core) (map[rune]uint8, error) {
	result := make(map[rune]uint8)

	n, err := core.ReadByte(uint32(core.UnicodeExtensionTableBaseAddress))
	if err != nil {
		return nil, err
	}
	start := uint32(core.UnicodeExtensionTableBaseAddress) + 1
	for i := 0; i < int(n); i++ {
		r, err := core.ReadWord(start + uint32(i*2))
		if err != nil {
			return nil, err
		}
		result[rune(r)] = uint8(i + 155)
	}

	return result, nil
}
