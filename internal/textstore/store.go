package textstore

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const pageSeparator = "\n\n"

// Store holds the extracted text of each page, keyed by 1-indexed page number.
// Aggregate views are derived from the map on demand and always follow page
// order, never insertion order.
type Store struct {
	mu    sync.RWMutex
	pages map[int]string
}

// New returns an empty store.
func New() *Store {
	return &Store{pages: map[int]string{}}
}

// SetPageText inserts or overwrites the text for a page.
func (s *Store) SetPageText(page int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page] = text
}

// PageText returns the stored text for page, or "" when absent.
func (s *Store) PageText(page int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages[page]
}

// Has reports whether the page has an entry, even an empty one.
func (s *Store) Has(page int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pages[page]
	return ok
}

// Len reports how many pages have an entry.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Pages returns the stored page numbers in ascending order.
func (s *Store) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPages()
}

// AllText joins every stored page in ascending page order.
func (s *Store) AllText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.sortedPages()
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		texts = append(texts, s.pages[page])
	}
	return strings.Join(texts, pageSeparator)
}

// TotalCharacters sums the character count of every stored page.
func (s *Store) TotalCharacters() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, text := range s.pages {
		total += utf8.RuneCountInString(text)
	}
	return total
}

// Reset drops every entry; used when a new document replaces the old one.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = map[int]string{}
}

func (s *Store) sortedPages() []int {
	pages := make([]int, 0, len(s.pages))
	for page := range s.pages {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}
