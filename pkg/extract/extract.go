// Package extract defines the collectors that turn requirement documents and
// code trees into read-only evidence for estimation. Implementations handle
// the specifics of file formats and source layouts.
package extract

import (
	"context"
	"sort"
)

// DocumentCollector gathers requirement text from a directory of documents.
type DocumentCollector interface {
	// Collect reads every supported document below dir.
	Collect(ctx context.Context, dir string) (*Documents, error)
}

// CodeSummarizer produces file and line metrics for a source tree.
type CodeSummarizer interface {
	// Summarize scans root and returns its metrics.
	Summarize(ctx context.Context, root string) (*CodeSummary, error)
}

// Documents is the collected requirement text plus visual complexity hints.
type Documents struct {
	Text    string       `json:"-"`
	Files   []string     `json:"files"`             // documents that contributed text
	Skipped []string     `json:"skipped,omitempty"` // documents in formats that need external extraction
	Images  ImageSummary `json:"images"`
}

// ImageSummary counts visual elements found in the documents.
type ImageSummary struct {
	Total       int `json:"total"`
	Diagrams    int `json:"diagrams"`
	Tables      int `json:"tables"`
	Forms       int `json:"forms"`
	Screenshots int `json:"screenshots"`
	OCRChars    int `json:"ocr_chars"`
}

// Complexity returns a 0-5 visual complexity hint.
func (s ImageSummary) Complexity() int {
	score := 0
	if s.Diagrams > 0 {
		score += 2
	}
	if s.Tables > 0 {
		score++
	}
	if s.Forms > 0 {
		score++
	}
	if s.Screenshots > 0 {
		score++
	}
	return min(score, 5)
}

// CodeSummary is the per-language metrics of a source tree.
type CodeSummary struct {
	Root            string         `json:"root"`
	Files           int            `json:"files"`
	Lines           int            `json:"lines"`
	FilesByLanguage map[string]int `json:"files_by_language"`
	LinesByLanguage map[string]int `json:"lines_by_language"`
	LargeFiles      []FileStat     `json:"large_files,omitempty"` // files above the large-file threshold
	KeyFiles        []string       `json:"key_files,omitempty"`   // relative paths of entry points and manifests
	Paths           []string       `json:"-"`                     // relative paths of every counted file
}

// FileStat is a file with its line count.
type FileStat struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
}

// Languages returns the languages present, most lines first.
func (c *CodeSummary) Languages() []string {
	if c == nil {
		return nil
	}
	langs := make([]string, 0, len(c.LinesByLanguage))
	for l := range c.LinesByLanguage {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if c.LinesByLanguage[langs[i]] != c.LinesByLanguage[langs[j]] {
			return c.LinesByLanguage[langs[i]] > c.LinesByLanguage[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}
