// Package code summarizes source trees into per-language file and line counts.
package code

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/storysize/storysize/pkg/extract"
)

// DefaultLargeFileLines is the line count above which a file is reported as large.
const DefaultLargeFileLines = 500

var languages = map[string]string{
	".go":     "go",
	".py":     "python",
	".cs":     "csharp",
	".java":   "java",
	".kt":     "kotlin",
	".swift":  "swift",
	".dart":   "dart",
	".ts":     "typescript",
	".tsx":    "typescript",
	".js":     "javascript",
	".jsx":    "javascript",
	".vue":    "vue",
	".svelte": "svelte",
	".html":   "html",
	".css":    "css",
	".scss":   "css",
	".php":    "php",
	".rb":     "ruby",
	".rs":     "rust",
	".sql":    "sql",
	".yml":    "yaml",
	".yaml":   "yaml",
	".tf":     "terraform",
	".sh":     "shell",
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true, "build": true,
	"bin": true, "obj": true, "target": true, ".venv": true, "__pycache__": true,
}

// keyFiles are entry points and manifests worth naming in a summary.
var keyFiles = map[string]bool{
	"package.json": true, "tsconfig.json": true, "vite.config.js": true, "webpack.config.js": true,
	"app.tsx": true, "index.tsx": true, "main.tsx": true, "router.tsx": true,
	"go.mod": true, "program.cs": true, "startup.cs": true, "requirements.txt": true,
	"server.js": true, "app.js": true, "appsettings.json": true,
	"pubspec.yaml": true, "main.dart": true, "appdelegate.swift": true, "mainactivity.kt": true,
	"dockerfile": true, "docker-compose.yml": true, "jenkinsfile": true, "azure-pipelines.yml": true,
}

// Summarizer implements extract.CodeSummarizer.
type Summarizer struct {
	LargeFileLines int
	logger         *zap.Logger
	paths          []string
	languages      map[string]bool
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithPaths limits each walk to the given subpaths of the summarized root.
// Subpaths missing under a root are skipped; when none exist the whole
// root is summarized.
func WithPaths(paths ...string) Option {
	return func(s *Summarizer) {
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			s.paths = append(s.paths, filepath.ToSlash(filepath.Clean(p)))
		}
	}
}

// WithLanguages counts only files of the named languages, for example
// "typescript" or "csharp".
func WithLanguages(langs ...string) Option {
	return func(s *Summarizer) {
		for _, l := range langs {
			l = strings.ToLower(strings.TrimSpace(l))
			if l == "" {
				continue
			}
			if s.languages == nil {
				s.languages = make(map[string]bool)
			}
			s.languages[l] = true
		}
	}
}

// Languages returns the language names a summarizer recognizes, sorted.
func Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range languages {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// NewSummarizer returns a summarizer. A nil logger disables logging.
func NewSummarizer(logger *zap.Logger, opts ...Option) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Summarizer{LargeFileLines: DefaultLargeFileLines, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate rejects subpaths that leave the root and unknown language names.
func (s *Summarizer) Validate() error {
	for _, p := range s.paths {
		if filepath.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return fmt.Errorf("code path %q must be relative to the code dir", p)
		}
	}
	known := make(map[string]bool)
	for _, l := range languages {
		known[l] = true
	}
	for l := range s.languages {
		if !known[l] {
			return fmt.Errorf("unknown language %q (valid: %s)", l, strings.Join(Languages(), ", "))
		}
	}
	return nil
}

var _ extract.CodeSummarizer = (*Summarizer)(nil)

// Summarize walks root and counts files and lines per language.
func (s *Summarizer) Summarize(ctx context.Context, root string) (*extract.CodeSummary, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading code dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("code path %s is not a directory", root)
	}

	sum := &extract.CodeSummary{
		Root:            root,
		FilesByLanguage: make(map[string]int),
		LinesByLanguage: make(map[string]int),
	}
	for _, start := range s.starts(root) {
		if err := s.walk(ctx, root, start, sum); err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", root, err)
		}
	}

	sort.Slice(sum.LargeFiles, func(i, j int) bool {
		return sum.LargeFiles[i].Lines > sum.LargeFiles[j].Lines
	})
	s.logger.Info("summarized code",
		zap.String("root", root),
		zap.Int("files", sum.Files),
		zap.Int("lines", sum.Lines),
		zap.Int("large_files", len(sum.LargeFiles)),
	)
	return sum, nil
}

// starts returns the directories to walk below root.
func (s *Summarizer) starts(root string) []string {
	var found []string
	for _, p := range s.paths {
		dir := filepath.Join(root, filepath.FromSlash(p))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			s.logger.Debug("code path not found", zap.String("root", root), zap.String("path", p))
			continue
		}
		found = append(found, dir)
	}
	if len(found) == 0 {
		return []string{root}
	}

	// Drop starts nested in another so no file is counted twice.
	sort.Strings(found)
	out := found[:1]
	for _, dir := range found[1:] {
		last := out[len(out)-1]
		if dir == last || strings.HasPrefix(dir, last+string(filepath.Separator)) {
			continue
		}
		out = append(out, dir)
	}
	return out
}

func (s *Summarizer) walk(ctx context.Context, root, start string, sum *extract.CodeSummary) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != start && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if keyFiles[strings.ToLower(d.Name())] {
			sum.KeyFiles = append(sum.KeyFiles, rel)
		}
		lang, ok := languages[strings.ToLower(filepath.Ext(path))]
		if !ok || (s.languages != nil && !s.languages[lang]) {
			return nil
		}

		lines, err := countLines(path)
		if err != nil {
			s.logger.Debug("skipping unreadable file", zap.String("file", rel), zap.Error(err))
			return nil
		}
		sum.Files++
		sum.Lines += lines
		sum.FilesByLanguage[lang]++
		sum.LinesByLanguage[lang] += lines
		sum.Paths = append(sum.Paths, rel)
		if lines > s.LargeFileLines {
			sum.LargeFiles = append(sum.LargeFiles, extract.FileStat{Path: rel, Lines: lines})
		}
		return nil
	})
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	buf := make([]byte, 32*1024)
	count := 0
	var last byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != 0 && last != '\n' {
		count++
	}
	return count, nil
}
