package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/agora/internal/core"
)

func sampleTranscript() *Transcript {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	completed := created.Add(3 * time.Minute)
	return &Transcript{
		Debate: &core.Debate{
			ID:          "0f3c2a9e-1111-2222-3333-444455556666",
			Topic:       "Should cities ban cars?",
			Rounds:      2,
			Status:      core.StatusComplete,
			Plan:        core.RotationPlan{core.ConsumedSlot, core.ConsumedSlot},
			CreatedAt:   created,
			CompletedAt: &completed,
		},
		Turns: []*core.Turn{
			{Number: 1, ParticipantID: "p1", Speaker: "Optimist", Kind: core.KindAI, Content: "Yes, cities breathe easier.", CreatedAt: created},
			{Number: 2, Kind: core.KindUser, Content: "What about deliveries?", CreatedAt: created},
			{Number: 3, ParticipantID: "gone", Speaker: "Skeptic", Kind: core.KindAI, Content: "Deliveries need roads — obviously.", CreatedAt: created},
			{Number: 4, Kind: core.KindSystem, Content: "Generation failed: boom", CreatedAt: created},
		},
		Names: map[string]string{"p1": "Optimist"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"md", FormatMarkdown},
		{"Markdown", FormatMarkdown},
		{"json", FormatJSON},
		{" pdf ", FormatPDF},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestGetExporter(t *testing.T) {
	for format, ext := range map[Format]string{FormatMarkdown: "md", FormatJSON: "json", FormatPDF: "pdf"} {
		e, err := GetExporter(format)
		require.NoError(t, err)
		assert.Equal(t, ext, e.FileExtension())
		assert.NotEmpty(t, e.ContentType())
	}

	_, err := GetExporter(Format("html"))
	assert.Error(t, err)
}

func TestGenerateFilename(t *testing.T) {
	tr := sampleTranscript()
	assert.Equal(t, "debate_20260314_Should_cities_ban_cars.md", GenerateFilename(tr.Debate, "md"))

	tr.Debate.Topic = strings.Repeat("a/b ", 20)
	name := GenerateFilename(tr.Debate, "json")
	assert.NotContains(t, name, "/")
	assert.True(t, strings.HasSuffix(name, ".json"))
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(sampleTranscript(), &buf))
	out := buf.String()

	assert.Contains(t, out, "# Should cities ban cars?")
	assert.Contains(t, out, "- **Status:** COMPLETE")
	assert.Contains(t, out, "- **Rotation:** [-, -]")
	assert.Contains(t, out, "- **Duration:** 3 minutes")
	assert.Contains(t, out, "#### Turn 1 - Optimist")
	assert.Contains(t, out, "#### Turn 2 - User (interjection)")
	assert.Contains(t, out, "> What about deliveries?")
	assert.Contains(t, out, "#### Turn 3 - Skeptic")
	assert.Contains(t, out, "#### Turn 4 - System (error)")
	assert.Contains(t, out, "*Exported from agora*")
}

func TestMarkdownExporterEmpty(t *testing.T) {
	tr := sampleTranscript()
	tr.Turns = nil
	tr.Debate.CompletedAt = nil

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(tr, &buf))
	assert.Contains(t, buf.String(), "*No turns recorded.*")
	assert.NotContains(t, buf.String(), "Duration")
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(sampleTranscript(), &buf))

	var decoded struct {
		Debate struct {
			Topic string    `json:"topic"`
			Plan  []*string `json:"participant_order"`
		} `json:"debate"`
		Turns []struct {
			Number          int    `json:"number"`
			Type            string `json:"turn_type"`
			ParticipantName string `json:"participant_name"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "Should cities ban cars?", decoded.Debate.Topic)
	assert.Equal(t, []*string{nil, nil}, decoded.Debate.Plan)
	require.Len(t, decoded.Turns, 4)
	assert.Equal(t, "Optimist", decoded.Turns[0].ParticipantName)
	assert.Equal(t, "User", decoded.Turns[1].ParticipantName)
	assert.Equal(t, "USER", decoded.Turns[1].Type)
	assert.Equal(t, "Skeptic", decoded.Turns[2].ParticipantName)
	assert.Equal(t, "System", decoded.Turns[3].ParticipantName)
}

func TestPDFExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PDFExporter{}).Export(sampleTranscript(), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSanitizeText(t *testing.T) {
	e := &PDFExporter{}
	assert.Equal(t, "\"quoted\" -- it's...", e.sanitizeText("“quoted” — it’s…"))
}
