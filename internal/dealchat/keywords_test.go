package dealchat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeywords(t *testing.T) {
	kw, err := DefaultKeywords()
	require.NoError(t, err)
	assert.Equal(t, "new deal", kw.RestartHint())
	assert.Contains(t, kw.FieldSynonyms[StepStage], "status")
	for _, st := range Stages {
		assert.Equal(t, []string{string(st)}, kw.StageNames[st])
	}
}

func TestLoadKeywords_LocalizedStageNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	data, err := os.ReadFile("keywords.yaml")
	require.NoError(t, err)
	localized := strings.Replace(string(data), "  negotiation:\n", "  negotiation:\n    - negociaci\u00f3n\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(localized), 0o600))

	kw, err := LoadKeywords(path)
	require.NoError(t, err)
	st, ok := kw.stageIn("Estamos en NEGOCIACI\u00d3N")
	require.True(t, ok)
	assert.Equal(t, StageNegotiation, st)
}

func TestPhraseSet_WholeWords(t *testing.T) {
	ps := newPhraseSet([]string{"close date", "set", "?"})

	assert.True(t, ps.contains(newUtterance("move the CLOSE-DATE please")))
	assert.True(t, ps.contains(newUtterance("set it")))
	assert.True(t, ps.contains(newUtterance("really?")))
	assert.False(t, ps.contains(newUtterance("the settlement")))
	assert.False(t, ps.contains(newUtterance("closed dates")))

	assert.True(t, ps.equals(newUtterance(" Set! ")))
	assert.False(t, ps.equals(newUtterance("set it")))
}

func TestLoadKeywords_Override(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	data, err := os.ReadFile("keywords.yaml")
	require.NoError(t, err)
	localized := strings.Replace(string(data), "restart:\n", "restart:\n  - nuevo trato\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(localized), 0o600))

	kw, err := LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, "nuevo trato", kw.RestartHint())
	assert.True(t, kw.restart.equals(newUtterance("Nuevo trato")))
}

func TestParseKeywords_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "restart: [unclosed"},
		{name: "empty tables", yaml: "restart: []"},
		{name: "missing stage names", yaml: strings.Replace(string(defaultKeywordsYAML), "stages:", "unused_stages:", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeywords([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := LoadKeywords(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
