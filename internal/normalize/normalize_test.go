package normalize

import (
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label string

func (l label) String() string { return string(l) }

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"int", 42, ""},
		{"float", 3.14, ""},
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"nul", "a\x00b", "a b"},
		{"controls", "a\x01\x02\x1Fb\x7Fc", "a b c"},
		{"newlines and tabs", "line one\n\n\tline two\r\n", "line one line two"},
		{"trim", "   padded   ", "padded"},
		{"nbsp", "a  b", "a b"},
		{"bytes", []byte("  x\x00y  "), "x y"},
		{"stringer", label(" tagged\ttext "), "tagged text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestStringTruncatesToMaxLength(t *testing.T) {
	long := strings.Repeat("ab ", 5000)
	got := String(long)
	require.LessOrEqual(t, utf8.RuneCountInString(got), MaxLength)
	assert.False(t, strings.HasSuffix(got, " "))

	multi := strings.Repeat("é", MaxLength+10)
	got = String(multi)
	assert.Equal(t, MaxLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestStringInvalidUTF8(t *testing.T) {
	got := String("ok\xffok")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, got, String(got))
}

func TestStringIdempotent(t *testing.T) {
	f := func(s string) bool {
		once := String(s)
		return String(once) == once
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))

	samples := []string{
		"\x00\x00  lead",
		strings.Repeat("x", MaxLength) + "   tail",
		strings.Repeat(" ", MaxLength-1) + "yz",
		"mixed separators here",
	}
	for _, s := range samples {
		once := String(s)
		assert.Equal(t, once, String(once), "sample %q", s)
	}
}

func TestStringLengthBound(t *testing.T) {
	f := func(s string, n uint16) bool {
		in := strings.Repeat(s+"w", int(n%64)+1)
		return utf8.RuneCountInString(String(in)) <= MaxLength
	}
	require.NoError(t, quick.Check(f, nil))
}
