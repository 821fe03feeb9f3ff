package pdfextract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ExtractText extracts plain text from raw PDF bytes. A readable PDF with
// no extractable text yields an empty string, not an error.
func ExtractText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty pdf payload")
	}
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return buf.String(), nil
}
