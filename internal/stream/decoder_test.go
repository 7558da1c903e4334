package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func decodeAll(fragments [][]byte) string {
	d := NewDecoder()
	var out strings.Builder
	for _, f := range fragments {
		out.WriteString(d.Decode(f))
	}
	out.WriteString(d.Flush())
	return out.String()
}

func TestDecoder_SplitCharacters(t *testing.T) {
	doc := []byte("Документ 📄 ok")

	tests := []struct {
		name      string
		fragments [][]byte
		want      string
	}{
		{
			name:      "single fragment",
			fragments: [][]byte{doc},
			want:      "Документ 📄 ok",
		},
		{
			name:      "cyrillic split in the middle",
			fragments: [][]byte{doc[:1], doc[1:]},
			want:      "Документ 📄 ok",
		},
		{
			name: "emoji split across three fragments",
			fragments: [][]byte{
				[]byte("a\xf0"),
				[]byte("\x9f"),
				[]byte("\x93\x84b"),
			},
			want: "a📄b",
		},
		{
			name:      "one byte per fragment",
			fragments: bytesOneByOne([]byte("привет")),
			want:      "привет",
		},
		{
			name:      "empty fragments are ignored",
			fragments: [][]byte{{}, []byte("x"), {}},
			want:      "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeAll(tt.fragments))
		})
	}
}

func TestDecoder_HoldsBackIncompleteTail(t *testing.T) {
	d := NewDecoder()

	out := d.Decode([]byte("ab\xd0"))
	assert.Equal(t, "ab", out)
	assert.Equal(t, 1, d.Pending())

	out = d.Decode([]byte("\x94"))
	assert.Equal(t, "Д", out)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoder_MalformedBytesAreReplaced(t *testing.T) {
	tests := []struct {
		name      string
		fragments [][]byte
		want      string
	}{
		{"stray continuation byte", [][]byte{[]byte("a\x80b")}, "a�b"},
		{"invalid lead byte", [][]byte{[]byte("\xffz")}, "�z"},
		{"dangling tail at end of stream", [][]byte{[]byte("ok\xe2\x82")}, "ok�"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeAll(tt.fragments)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecoder_FlushResets(t *testing.T) {
	d := NewDecoder()
	_ = d.Decode([]byte("\xd0"))
	assert.NotEmpty(t, d.Flush())
	assert.Equal(t, "", d.Flush())
	assert.Equal(t, "ё", d.Decode([]byte("ё")))
}

func TestDecoder_ConcatenationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		raw := []byte(s)
		fragments := splitAt(raw, rapid.SliceOf(rapid.IntRange(0, len(raw))).Draw(t, "cuts"))

		if got := decodeAll(fragments); got != s {
			t.Fatalf("decoded %q, want %q", got, s)
		}
	})
}

func TestDecoder_ArbitraryBytesMatchOneShot(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
		fragments := splitAt(raw, rapid.SliceOf(rapid.IntRange(0, len(raw))).Draw(t, "cuts"))

		want := decodeAll([][]byte{raw})
		if got := decodeAll(fragments); got != want {
			t.Fatalf("chunked %q, one-shot %q", got, want)
		}
	})
}

func bytesOneByOne(b []byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = b[i : i+1]
	}
	return out
}

// splitAt cuts raw at the given offsets; offsets may repeat or be unsorted.
func splitAt(raw []byte, cuts []int) [][]byte {
	marks := make([]bool, len(raw)+1)
	for _, c := range cuts {
		marks[c] = true
	}
	var out [][]byte
	prev := 0
	for i := 1; i <= len(raw); i++ {
		if marks[i] || i == len(raw) {
			out = append(out, raw[prev:i])
			prev = i
		}
	}
	if len(out) == 0 {
		out = append(out, raw)
	}
	return out
}
