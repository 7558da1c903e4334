package stream

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const replacementChar = "�"

// Decoder turns raw body fragments into text. A multi-byte character cut
// by a fragment boundary is held back until the rest of it arrives.
// Malformed bytes are replaced with U+FFFD, never reported.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

// NewDecoder returns a UTF-8 decoder with an empty carry-over.
func NewDecoder() *Decoder {
	return &Decoder{
		t:   unicode.UTF8.NewDecoder(),
		dst: make([]byte, 4096),
	}
}

// Decode converts one fragment. Trailing bytes of an incomplete sequence
// are kept for the next call.
func (d *Decoder) Decode(fragment []byte) string {
	if len(d.pending) == 0 && len(fragment) == 0 {
		return ""
	}
	src := make([]byte, 0, len(d.pending)+len(fragment))
	src = append(src, d.pending...)
	src = append(src, fragment...)
	d.pending = nil
	return d.run(src, false)
}

// Flush decodes whatever is held back. Call it once at end of stream.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	src := d.pending
	d.pending = nil
	out := d.run(src, true)
	d.t.Reset()
	return out
}

// Pending reports how many bytes are waiting for the rest of a character.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) run(src []byte, atEOF bool) string {
	var out []byte
	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out = append(out, d.dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			if nSrc == 0 && len(src) > 0 {
				// no progress without an error; never loop forever
				out = append(out, replacementChar...)
				src = src[1:]
			}
		case transform.ErrShortDst:
			if nDst == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case transform.ErrShortSrc:
			if atEOF {
				out = append(out, replacementChar...)
				src = nil
				break
			}
			d.pending = append([]byte(nil), src...)
			return string(out)
		default:
			out = append(out, replacementChar...)
			src = src[1:]
		}
	}
	return string(out)
}
