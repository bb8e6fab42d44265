// Package docext extracts plain text from uploaded PDF documents.
package docext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Separator splits user-authored note content from text extracted out of an
// attached document. The store persists the concatenated body verbatim;
// display logic truncates at this marker.
const Separator = "\n\n----- attached document -----\n"

// ErrNoText is returned when a document parses but yields no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

// Text extracts the plain text of a PDF document.
func Text(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// UserContent returns the user-authored part of a note body, dropping any
// document-extracted tail.
func UserContent(body string) string {
	if idx := strings.Index(body, Separator); idx >= 0 {
		return body[:idx]
	}
	return body
}

// Append joins user content and extracted document text behind the marker.
func Append(content, extracted string) string {
	if extracted == "" {
		return content
	}
	return content + Separator + extracted
}
