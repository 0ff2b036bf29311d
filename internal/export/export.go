// Package export handles exporting debate transcripts to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/prompt"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Transcript is a debate with its turns in creation order. Names maps
// participant ids to their current names.
type Transcript struct {
	Debate *core.Debate
	Turns  []*core.Turn
	Names  map[string]string
}

// Speaker returns the label for a turn.
func (t *Transcript) Speaker(turn *core.Turn) string {
	return prompt.SpeakerName(turn, t.Names)
}

// Exporter defines the interface for exporting transcripts.
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(debate *core.Debate, ext string) string {
	// Sanitize topic for filename
	topic := debate.Topic
	if len(topic) > 50 {
		topic = topic[:50]
	}

	// Replace unsafe characters
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", "_",
	)
	topic = replacer.Replace(topic)

	timestamp := debate.CreatedAt.Format("20060102")
	return fmt.Sprintf("debate_%s_%s.%s", timestamp, topic, ext)
}

// kindLabel annotates non-AI turns in headers.
func kindLabel(turn *core.Turn) string {
	switch turn.Kind {
	case core.KindUser:
		return " (interjection)"
	case core.KindSystem:
		return " (error)"
	default:
		return ""
	}
}

// Helper to format duration
func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
