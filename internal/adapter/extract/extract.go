// Package extract pulls plain text out of uploaded study documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"studyforge/internal/domain"
	"studyforge/internal/logger"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Supported document extensions.
const (
	ExtPDF  = ".pdf"
	ExtTXT  = ".txt"
	ExtDOCX = ".docx"
	ExtPPTX = ".pptx"
)

// Supported reports whether filename has an extension Text can read.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtPDF, ExtTXT, ExtDOCX, ExtPPTX:
		return true
	}
	return false
}

// Text extracts and cleans the text of a document. The format is chosen by
// the file extension.
func Text(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtPDF:
		text, err = pdfText(data)
	case ExtTXT:
		text, err = plainText(data)
	case ExtDOCX:
		text, err = docxText(data)
	case ExtPPTX:
		text, err = pptxText(data)
	default:
		return "", domain.NewUnsupportedDocumentError(filename)
	}
	if err != nil {
		logger.Get().Warn("Failed to extract document text", zap.String("filename", filename), zap.Error(err))
		return "", domain.NewError(domain.CodeInvalidInput, fmt.Sprintf("Error processing document %s", filename), err)
	}

	text = Clean(text)
	logger.Get().Debug("Extracted document text",
		zap.String("filename", filename),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

// pdfText reads every page of a PDF. The reader panics on some malformed
// files, which is reported as an ordinary error.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	pt, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, pt); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// plainText decodes UTF-8, dropping a byte order mark. Anything that is not
// valid UTF-8 is read as Windows-1252, a superset of Latin-1 for printable text.
func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(decoded), nil
}

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes line endings, collapses runs of spaces and keeps at most
// one blank line between paragraphs.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
