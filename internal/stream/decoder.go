package stream

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts a sequence of byte chunks into text. An incomplete multi-byte sequence at the end of
// a chunk is held back and completed by the next chunk. Invalid bytes are replaced with U+FFFD.
type Decoder struct {
	dec     *encoding.Decoder
	pending []byte
	buf     []byte
}

// NewDecoder returns a UTF-8 decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		dec: unicode.UTF8.NewDecoder(),
	}
}

// Decode returns the text of chunk, preceded by whatever fragment the previous call held back.
func (d *Decoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush decodes any held-back fragment at end of stream. A fragment that never got completed decodes to
// replacement characters.
func (d *Decoder) Flush() string {
	return d.decode(nil, true)
}

func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	// Every source byte expands to at most one replacement character.
	if need := len(src)*utf8.RuneLen(utf8.RuneError) + utf8.UTFMax; len(d.buf) < need {
		d.buf = make([]byte, need)
	}

	var sb strings.Builder
	for {
		nDst, nSrc, err := d.dec.Transform(d.buf, src, atEOF)
		sb.Write(d.buf[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return sb.String()
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return sb.String()
		case errors.Is(err, transform.ErrShortDst) && nSrc > 0:
			continue
		default:
			// Unreachable for UTF-8 with the buffer sized above; degrade to the standard conversion.
			sb.WriteString(strings.ToValidUTF8(string(src), string(utf8.RuneError)))
			return sb.String()
		}
	}
}
