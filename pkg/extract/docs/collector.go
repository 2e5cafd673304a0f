// Package docs collects requirement text from markdown and plain-text
// documents. Markdown is parsed with goldmark so tables and embedded images
// feed the visual complexity summary.
package docs

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/storysize/storysize/pkg/extract"
)

const defaultMaxFileBytes = 5 << 20

var (
	markdownExts = map[string]bool{".md": true, ".markdown": true}
	textExts     = map[string]bool{".txt": true, ".text": true}
	imageExts    = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true}
	// binary formats whose text needs an external extractor
	binaryExts = map[string]bool{".pdf": true, ".docx": true, ".doc": true, ".xlsx": true, ".xls": true, ".pptx": true}
)

// Collector implements extract.DocumentCollector.
type Collector struct {
	md           goldmark.Markdown
	maxFileBytes int64
	logger       *zap.Logger
}

// NewCollector returns a collector. A nil logger disables logging.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		md:           goldmark.New(goldmark.WithExtensions(extension.Table)),
		maxFileBytes: defaultMaxFileBytes,
		logger:       logger,
	}
}

var _ extract.DocumentCollector = (*Collector)(nil)

// Collect reads every supported document below dir in lexical order.
func (c *Collector) Collect(ctx context.Context, dir string) (*extract.Documents, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading docs dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs path %s is not a directory", dir)
	}

	docs := &extract.Documents{}
	var sb strings.Builder
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(dir, path)
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case markdownExts[ext], textExts[ext]:
			content, err := c.readFile(path)
			if err != nil {
				return err
			}
			body := string(content)
			if markdownExts[ext] {
				body = c.markdownText(content, &docs.Images)
			}
			body = strings.TrimSpace(body)
			if body == "" {
				return nil
			}
			fmt.Fprintf(&sb, "# %s\n%s\n\n", filepath.ToSlash(rel), body)
			docs.Files = append(docs.Files, filepath.ToSlash(rel))
		case imageExts[ext]:
			classifyImage(strings.ToLower(d.Name()), &docs.Images)
		case binaryExts[ext]:
			c.logger.Debug("skipping document that needs external extraction", zap.String("file", rel))
			docs.Skipped = append(docs.Skipped, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting documents: %w", err)
	}

	docs.Text = strings.TrimSpace(sb.String())
	c.logger.Info("collected documents",
		zap.Int("files", len(docs.Files)),
		zap.Int("skipped", len(docs.Skipped)),
		zap.Int("chars", len(docs.Text)),
		zap.Int("images", docs.Images.Total),
	)
	return docs, nil
}

func (c *Collector) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > c.maxFileBytes {
		return nil, fmt.Errorf("document %s is larger than %d bytes", path, c.maxFileBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// markdownText renders a markdown document to plain text and records its
// tables and images.
func (c *Collector) markdownText(source []byte, images *extract.ImageSummary) string {
	doc := c.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote, *east.TableRow, *east.TableHeader:
				buf.WriteByte('\n')
			case *east.TableCell:
				buf.WriteByte('\t')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *east.Table:
			images.Tables++
		case *ast.Image:
			alt := childText(node, source)
			images.OCRChars += len(alt)
			classifyImage(strings.ToLower(alt+" "+string(node.Destination)), images)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func childText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

var (
	diagramHints    = []string{"diagram", "flow", "architecture", "sequence", "chart", "workflow", "entity relationship"}
	formHints       = []string{"form", "input", "signup", "login", "checkout"}
	screenshotHints = []string{"screenshot", "screen", "mockup", "wireframe", "user interface"}
	tableHints      = []string{"table", "grid", "spreadsheet"}
)

// classifyImage counts one image and classifies it from its name or alt text.
func classifyImage(hint string, s *extract.ImageSummary) {
	s.Total++
	switch {
	case containsAny(hint, diagramHints):
		s.Diagrams++
	case containsAny(hint, formHints):
		s.Forms++
	case containsAny(hint, tableHints):
		s.Tables++
	case containsAny(hint, screenshotHints):
		s.Screenshots++
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
