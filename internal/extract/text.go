package extract

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText converts raw file bytes to NFC-normalised UTF-8. A UTF-8 or
// UTF-16 byte-order mark selects the encoding; otherwise valid UTF-8 is kept
// and anything else is read as Windows-1252.
func DecodeText(raw []byte) string {
	var s string
	switch {
	case bytes.HasPrefix(raw, bomUTF8), bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return ""
		}
		s = string(out)
	case utf8.Valid(raw):
		s = string(raw)
	default:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			return ""
		}
		s = string(out)
	}
	return norm.NFC.String(s)
}
