package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	color "git.handmade.network/hmn/forumwiki/src/ansicolor"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.Disable()
}

func TestPrettyWriter(t *testing.T) {
	t.Run("single line", func(t *testing.T) {
		var out bytes.Buffer
		logger := zerolog.New(NewPrettyZerologWriterTo(&out))
		logger.Info().Msg("hello")
		assert.Equal(t, " INFO: hello\n", out.String())
	})
	t.Run("fields and errors", func(t *testing.T) {
		var out bytes.Buffer
		logger := zerolog.New(NewPrettyZerologWriterTo(&out))
		logger.Error().Err(errors.New("boom")).Int("thread", 3).Msg("failed to post")
		s := out.String()
		assert.Contains(t, s, "---------------------------------------\n")
		assert.Contains(t, s, "ERROR: failed to post\n")
		assert.Contains(t, s, "  ERROR: boom\n")
		assert.Contains(t, s, "    thread: 3\n")
	})
	t.Run("stack traces", func(t *testing.T) {
		var out bytes.Buffer
		logger := zerolog.New(NewPrettyZerologWriterTo(&out))
		logger.Error().Stack().Err(oops.New(nil, "bad")).Msg("with stack")
		assert.Contains(t, out.String(), "Stack trace:")
		assert.Contains(t, out.String(), "TestPrettyWriter")
	})
	t.Run("not json", func(t *testing.T) {
		var out bytes.Buffer
		w := NewPrettyZerologWriterTo(&out)
		n, err := w.Write([]byte("plain text\n"))
		assert.NoError(t, err)
		assert.Equal(t, 11, n)
		assert.Equal(t, "plain text\n", out.String())
	})
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, GlobalLogger(), ExtractLogger(context.Background()))

	logger := zerolog.Nop()
	ctx := AttachLoggerToContext(&logger, context.Background())
	assert.Same(t, &logger, ExtractLogger(ctx))
}
