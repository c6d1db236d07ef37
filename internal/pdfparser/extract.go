// Package pdfparser turns bank/card statement PDFs into Observations using a
// text-table heuristic parser. Text extraction is grounded on
// seemantshankar-spherical's pdf-extractor library, which wraps
// github.com/gen2brain/go-fitz for page-level text access; the
// scanned/encrypted detection generalizes that library's
// internal/pdf/validator.go input checks.
package pdfparser

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ledgermesh/ledgermesh/internal/common"
)

const minCharsPerPage = 20

// extractPages opens content as a PDF and returns each page's text, sorted
// by glyph position the way go-fitz's text layer already is.
func extractPages(content []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		if looksLikePasswordError(err) {
			return nil, common.ErrEncryptedPDF
		}
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]string, 0, pageCount)
	totalChars := 0

	for i := 0; i < pageCount; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", i+1, err)
		}
		pages = append(pages, text)
		totalChars += countNonWhitespace(text)
	}

	if totalChars < pageCount*minCharsPerPage {
		return nil, common.ErrScannedPDF
	}

	return pages, nil
}

func looksLikePasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

func countNonWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !isSpace(r) {
			n++
		}
	}
	return n
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
