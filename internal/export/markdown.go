package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/agora/internal/core"
)

// MarkdownExporter exports transcripts to Markdown format.
type MarkdownExporter struct{}

// Export writes the transcript as Markdown.
func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	debate := t.Debate
	var sb strings.Builder

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", debate.Topic))

	// Metadata
	sb.WriteString("## Debate Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", debate.ID))
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", debate.Status))
	sb.WriteString(fmt.Sprintf("- **Rounds:** %d\n", debate.Rounds))
	sb.WriteString(fmt.Sprintf("- **Rotation:** %s\n", core.FormatPlan(debate.Plan, t.Names)))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if debate.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed:** %s\n", debate.CompletedAt.Format("January 2, 2006 at 3:04 PM")))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(debate.CreatedAt, *debate.CompletedAt)))
	}
	sb.WriteString("\n")

	// Transcript
	sb.WriteString("## Transcript\n\n")

	if len(t.Turns) == 0 {
		sb.WriteString("*No turns recorded.*\n\n")
	} else {
		for _, turn := range t.Turns {
			sb.WriteString(fmt.Sprintf("#### Turn %d - %s%s\n\n", turn.Number, t.Speaker(turn), kindLabel(turn)))
			sb.WriteString(fmt.Sprintf("*%s*\n\n", turn.CreatedAt.Format("3:04 PM")))
			if turn.Kind == core.KindUser {
				sb.WriteString("> ")
				sb.WriteString(strings.ReplaceAll(turn.Content, "\n", "\n> "))
			} else {
				sb.WriteString(turn.Content)
			}
			sb.WriteString("\n\n---\n\n")
		}
	}

	// Footer
	sb.WriteString("*Exported from agora*\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
