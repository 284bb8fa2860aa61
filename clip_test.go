package inkwell

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestClip(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		require.Equal(t, "hello", Clip("hello", 10))
		require.Equal(t, "hello", Clip("hello", 5))
	})

	t.Run("ascii clips at exactly n bytes", func(t *testing.T) {
		require.Equal(t, "hel", Clip("hello", 3))
	})

	t.Run("never splits a multi-byte rune", func(t *testing.T) {
		s := "café au lait" // the e-acute spans bytes 3 and 4
		clipped := Clip(s, 4)
		require.Equal(t, "caf", clipped)
		require.True(t, utf8.ValidString(clipped))

		for n := 0; n <= len(s); n++ {
			require.True(t, utf8.ValidString(Clip(s, n)), "clip at %d bytes", n)
		}
	})

	t.Run("clipped cjk text stays valid", func(t *testing.T) {
		s := strings.Repeat("日本語", 10) // 3 bytes per rune
		clipped := Clip(s, 10)
		require.True(t, utf8.ValidString(clipped))
		require.Equal(t, 9, len(clipped))
	})
}

func TestClipTail(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		require.Equal(t, "hello", ClipTail("hello", 10))
	})

	t.Run("keeps the trailing bytes", func(t *testing.T) {
		require.Equal(t, "llo", ClipTail("hello", 3))
	})

	t.Run("never starts inside a rune", func(t *testing.T) {
		s := "naïve ending"
		for n := 0; n <= len(s); n++ {
			tail := ClipTail(s, n)
			require.True(t, utf8.ValidString(tail), "tail of %d bytes", n)
			require.True(t, strings.HasSuffix(s, tail))
		}
	})
}
