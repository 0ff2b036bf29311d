package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/agora/internal/core"
)

// PDFExporter exports transcripts to PDF format.
type PDFExporter struct{}

// speakerPalette cycles header colors across participants.
var speakerPalette = [][3]int{
	{200, 230, 255}, // Light blue
	{200, 255, 200}, // Light green
	{255, 235, 200}, // Light orange
	{235, 210, 255}, // Light purple
}

// Export writes the transcript as PDF.
func (e *PDFExporter) Export(t *Transcript, w io.Writer) error {
	debate := t.Debate
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(debate.Topic), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	e.addMetadataRow(pdf, "ID:", core.ShortID(debate.ID)+"...")
	e.addMetadataRow(pdf, "Status:", string(debate.Status))
	e.addMetadataRow(pdf, "Rounds:", fmt.Sprintf("%d", debate.Rounds))
	e.addMetadataRow(pdf, "Created:", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if debate.CompletedAt != nil {
		e.addMetadataRow(pdf, "Completed:", debate.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		e.addMetadataRow(pdf, "Duration:", formatDuration(debate.CreatedAt, *debate.CompletedAt))
	}
	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, "Rotation:")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, e.sanitizeText(core.FormatPlan(debate.Plan, t.Names)), "", "", false)
	pdf.Ln(5)

	// Transcript
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Transcript")
	pdf.Ln(8)

	if len(t.Turns) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No turns recorded.")
		pdf.Ln(6)
	} else {
		colors := make(map[string][3]int)
		for _, turn := range t.Turns {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			r, g, b := e.headerColor(turn, colors)
			pdf.SetFillColor(r, g, b)

			pdf.SetFont("Arial", "B", 10)
			header := fmt.Sprintf("Turn %d - %s%s (%s)", turn.Number, t.Speaker(turn), kindLabel(turn), turn.CreatedAt.Format("3:04 PM"))
			pdf.CellFormat(0, 7, e.sanitizeText(header), "", 1, "", true, 0, "")

			if turn.Kind == core.KindUser {
				pdf.SetFont("Arial", "I", 9)
			} else {
				pdf.SetFont("Arial", "", 9)
			}
			pdf.SetFillColor(255, 255, 255)
			pdf.MultiCell(0, 5, e.sanitizeText(turn.Content), "", "", false)
			pdf.Ln(5)
		}
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from agora", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

func (e *PDFExporter) headerColor(turn *core.Turn, assigned map[string][3]int) (int, int, int) {
	switch {
	case turn.Kind == core.KindSystem:
		return 255, 200, 200 // Light red
	case !turn.HasParticipant():
		return 230, 230, 230 // Light gray
	}
	c, ok := assigned[turn.ParticipantID]
	if !ok {
		c = speakerPalette[len(assigned)%len(speakerPalette)]
		assigned[turn.ParticipantID] = c
	}
	return c[0], c[1], c[2]
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

// gofpdf's core fonts use Windows-1252.
var pdfReplacer = strings.NewReplacer(
	"\u2018", "'",   // Left single quote
	"\u2019", "'",   // Right single quote
	"\u201C", "\"",  // Left double quote
	"\u201D", "\"",  // Right double quote
	"\u2013", "-",   // En dash
	"\u2014", "--",  // Em dash
	"\u2026", "...", // Ellipsis
	"\u2022", "*",   // Bullet
	"\u00A0", " ",   // Non-breaking space
)

func (e *PDFExporter) sanitizeText(text string) string {
	return pdfReplacer.Replace(text)
}
