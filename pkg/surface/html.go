package surface

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/storysize/storysize/pkg/estimation"
)

// HTMLRenderer converts the Markdown report into a standalone HTML page.
type HTMLRenderer struct{}

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem}
table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:.25rem .5rem}
blockquote{color:#8a5a00;border-left:4px solid #f0b400;margin-left:0;padding-left:1rem}`

func (r *HTMLRenderer) Render(w io.Writer, est *estimation.Estimation) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(BuildMarkdown(est)), &body); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(Title(est)), pageStyle, body.String())
	return err
}
