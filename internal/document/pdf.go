package document

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

const (
	lineBreakRatio = 0.5
	wordGapRatio   = 0.15
)

// File is an Engine backed by github.com/ledongthuc/pdf.
type File struct {
	path string

	mu     sync.RWMutex
	file   *os.File
	reader *pdf.Reader
}

// Open loads a PDF from disk.
func Open(path string) (*File, error) {
	if err := checkPDF(path); err != nil {
		return nil, err
	}
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &File{path: path, file: file, reader: reader}, nil
}

// Path returns the file the document was opened from.
func (d *File) Path() string {
	return d.path
}

func (d *File) NumPages() int {
	if d == nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.reader == nil {
		return 0
	}
	return d.reader.NumPage()
}

// Page returns page num. Its content is read lazily, so callers must not use
// the page after Close.
func (d *File) Page(num int) (Page, error) {
	if d == nil {
		return nil, ErrNoDocument
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.reader == nil {
		return nil, ErrNoDocument
	}
	if num < 1 || num > d.reader.NumPage() {
		return nil, fmt.Errorf("page %d: %w", num, ErrPageOutOfRange)
	}
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d has no content object", num)
	}
	return pdfPage{num: num, page: page}, nil
}

func (d *File) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.reader = nil
	return err
}

type pdfPage struct {
	num  int
	page pdf.Page
}

// TextContent walks the page content stream. The pdf package panics on
// malformed streams, so those panics are turned into errors here.
func (p pdfPage) TextContent() (fragments []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			fragments = nil
			err = fmt.Errorf("page %d: malformed content stream: %v", p.num, r)
		}
	}()
	return fragmentsFromGlyphs(p.page.Content().Text), nil
}

// fragmentsFromGlyphs groups positioned glyphs into runs. A vertical jump
// larger than half the font size ends a line; a horizontal gap wider than a
// fraction of the font size, or an explicit space, ends a word.
func fragmentsFromGlyphs(glyphs []pdf.Text) []Fragment {
	var (
		fragments []Fragment
		current   strings.Builder
		prev      *pdf.Text
	)
	flush := func(eol bool) {
		if current.Len() > 0 {
			fragments = append(fragments, Fragment{Str: current.String(), HasEOL: eol})
			current.Reset()
			return
		}
		if eol && len(fragments) > 0 {
			fragments[len(fragments)-1].HasEOL = true
		}
	}

	for i := range glyphs {
		glyph := glyphs[i]
		if prev != nil {
			size := math.Max(math.Max(prev.FontSize, glyph.FontSize), 1)
			switch {
			case math.Abs(glyph.Y-prev.Y) > size*lineBreakRatio:
				flush(true)
			case glyph.X-(prev.X+prev.W) > size*wordGapRatio:
				flush(false)
			}
		}
		prev = &glyphs[i]
		if strings.TrimSpace(glyph.S) == "" {
			flush(strings.Contains(glyph.S, "\n"))
			continue
		}
		current.WriteString(glyph.S)
	}
	flush(false)
	return fragments
}
