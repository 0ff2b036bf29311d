package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/agora/internal/core"
)

// JSONExporter exports transcripts to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Debate *core.Debate `json:"debate"`
	Turns  []ExportTurn `json:"turns"`
}

// ExportTurn is a turn with its resolved speaker label.
type ExportTurn struct {
	*core.Turn
	ParticipantName string `json:"participant_name"`
}

// Export writes the transcript as JSON.
func (e *JSONExporter) Export(t *Transcript, w io.Writer) error {
	data := ExportData{
		Debate: t.Debate,
		Turns:  make([]ExportTurn, 0, len(t.Turns)),
	}
	for _, turn := range t.Turns {
		data.Turns = append(data.Turns, ExportTurn{Turn: turn, ParticipantName: t.Speaker(turn)})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
