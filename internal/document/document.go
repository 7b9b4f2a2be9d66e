// Package document adapts PDF files to the page/fragment model used by the
// session: an Engine reports its page count and hands out pages whose text
// content is an ordered list of fragments.
package document

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

var (
	// ErrNoDocument is returned by operations that need a loaded PDF.
	ErrNoDocument = errors.New("no PDF document loaded")
	// ErrPageOutOfRange is returned for page numbers outside 1..NumPages.
	ErrPageOutOfRange = errors.New("invalid page number")
	// ErrNotPDF is returned when the selected file is not a PDF.
	ErrNotPDF = errors.New("please select a PDF file")
)

// Fragment is one run of text on a page. HasEOL marks the last fragment of a
// visual line.
type Fragment struct {
	Str    string
	HasEOL bool
}

// Page exposes the text content of a single page.
type Page interface {
	TextContent() ([]Fragment, error)
}

// Engine is a loaded document.
type Engine interface {
	NumPages() int
	Page(num int) (Page, error)
	Close() error
}

const sniffLen = 512

// checkPDF sniffs the leading bytes of path and rejects anything that does not
// look like a PDF.
func checkPDF(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return sniffPDF(head[:n])
}

func sniffPDF(head []byte) error {
	if http.DetectContentType(head) != "application/pdf" {
		return ErrNotPDF
	}
	return nil
}
