package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTextProcessor(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("truncate keeps short text", func(t *testing.T) {
		assert.Equal(t, "olá", tp.TruncateText("olá", 3))
		assert.Equal(t, "olá mundo", tp.TruncateText("olá mundo", 0))
	})

	t.Run("truncate counts runes", func(t *testing.T) {
		out := tp.TruncateText("ação rápida", 4)
		assert.Equal(t, "ação"+TruncationMarker, out)
		assert.True(t, utf8.ValidString(out))
	})

	t.Run("sanitize drops invalid bytes", func(t *testing.T) {
		assert.Equal(t, "abc", tp.SanitizeUTF8("a\xffb\x00c"))
	})

	t.Run("process text", func(t *testing.T) {
		out := tp.ProcessText("  linha 1\r\nlinha 2\r  ", 0)
		assert.Equal(t, "linha 1\nlinha 2", out)

		long := strings.Repeat("é", 50)
		assert.True(t, strings.HasSuffix(tp.ProcessText(long, 10), TruncationMarker))
	})
}
