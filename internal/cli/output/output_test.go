package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"table", ModeText},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mode(tt.in), tt.in)
	}
}

func TestEffectiveMode(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &out, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &out, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &out, true, ModeJSON).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRenderer(&out, &out, ModeAuto).EffectiveMode(), "buffers are not terminals")
}

func TestTable(t *testing.T) {
	rows := [][]any{{"value", "float64", "string"}}

	var md bytes.Buffer
	NewRendererWithTTY(&md, &md, false, ModeMarkdown).Table([]string{"Column", "Expected", "Observed"}, rows)
	assert.Contains(t, md.String(), "| Column | Expected | Observed |")
	assert.Contains(t, md.String(), "| value | float64 | string |")

	var txt bytes.Buffer
	NewRendererWithTTY(&txt, &txt, true, ModeText).Table([]string{"Column"}, [][]any{{"id"}})
	assert.Contains(t, txt.String(), "┌")
	assert.Contains(t, txt.String(), "id")
}

func TestHeaderAndColors(t *testing.T) {
	var md bytes.Buffer
	r := NewRendererWithTTY(&md, &md, false, ModeAuto)
	r.Header(2, "Runs")
	r.Success("ok")
	assert.Equal(t, "## Runs\n\n✓ ok\n", md.String())

	var txt bytes.Buffer
	r = NewRendererWithTTY(&txt, &txt, true, ModeText)
	r.Failure("bad")
	assert.True(t, strings.Contains(txt.String(), "✗ bad"))
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &out, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]any{"status": "passed"}))
	assert.JSONEq(t, `{"status":"passed"}`, out.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "### Rules", FormatHeader(3, "Rules"))
	assert.Equal(t, "- **Model:** Observation", FormatKeyValue("Model", "Observation"))
}
