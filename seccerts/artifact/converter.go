package artifact

import (
	"strings"
)

// Converter turns a PDF into plain text and, when supported, structured
// segments. Implementations wrap external tooling; the pipeline only depends
// on this capability.
type Converter interface {
	// Convert reads the PDF at pdfPath and writes extracted text to txtPath.
	// When segmentsPath is non-empty the converter may also emit structured
	// segments (blocks, tables, spans) as JSON.
	Convert(pdfPath, txtPath, segmentsPath string) error
}

// tombstoneRatioLimit is the fraction of replacement characters above which
// extracted text is considered garbage and the OCR fallback is attempted.
const tombstoneRatioLimit = 0.005

func textLooksGarbled(text string) bool {
	if len(text) == 0 {
		return true
	}
	tombstones := strings.Count(text, "�")
	return float64(tombstones)/float64(len([]rune(text))) > tombstoneRatioLimit
}
