package domain

import "strings"

// ParseFormat normalises a declared format string (typically a file
// extension) into a DocumentFormat. Unknown values fail closed with
// ErrUnsupportedFormat.
func ParseFormat(s string) (DocumentFormat, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch DocumentFormat(s) {
	case FormatPDF, FormatDOCX, FormatDOC, FormatText, FormatMarkdown:
		return DocumentFormat(s), nil
	default:
		return "", ErrUnsupportedFormat
	}
}
