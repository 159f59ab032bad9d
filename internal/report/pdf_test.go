package report

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fontOrSkip(t *testing.T) string {
	t.Helper()
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("DejaVuSans not installed, skipping PDF rendering test")
	return ""
}

func TestRenderer_RenderPDF(t *testing.T) {
	font := fontOrSkip(t)
	r := sampleReport()
	r.Narrative = strings.Repeat("1. Summary: the candidate explored the pain well but did not safety-net. ", 40) +
		"\n\n2. Score: 6/10"
	r.Duplicates = []string{"Where is the pain?"}

	data, err := NewRenderer(font).RenderPDF(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderer_MissingFont(t *testing.T) {
	_, err := NewRenderer("/nonexistent/DejaVuSans.ttf").RenderPDF(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttf-dejavu")
}
