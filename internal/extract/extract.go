// Package extract implements the extraction fallback: converting uploaded
// documents to plain text for models without native file support.
package extract

import (
	"fmt"
	"os"
	"strings"

	"docuchat/internal/filerouter"
)

// Result holds the extracted text and a page count (slides for PPTX, 1 for
// plain text).
type Result struct {
	Text  string
	Pages int
}

// maxTextBytes guards against pathological documents; text past the cap is
// dropped with a truncation marker.
const maxTextBytes = 500 << 10

// FromFile extracts text from a stored upload based on its detected type.
func FromFile(path string, fileType filerouter.FileType) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read upload: %w", err)
	}
	return FromBytes(data, fileType)
}

// FromBytes extracts text from in-memory file content.
func FromBytes(data []byte, fileType filerouter.FileType) (Result, error) {
	var res Result
	var err error
	switch fileType {
	case filerouter.TypePDF:
		res, err = fromPDF(data)
	case filerouter.TypeDOCX:
		res, err = fromDOCX(data)
	case filerouter.TypePPTX:
		res, err = fromPPTX(data)
	default:
		return Result{}, fmt.Errorf("no extraction for file type %s", fileType)
	}
	if err != nil {
		return Result{}, err
	}
	res.Text = truncate(strings.TrimSpace(res.Text))
	return res, nil
}

func truncate(text string) string {
	if len(text) <= maxTextBytes {
		return text
	}
	return text[:maxTextBytes] + "\n\n[truncated]"
}
