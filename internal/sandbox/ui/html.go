package ui

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var voidTags = map[string]bool{
	"area": true, "br": true, "col": true, "hr": true, "img": true,
	"input": true, "source": true, "track": true, "wbr": true,
}

// policy is safe for concurrent use once built.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return p
}()

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// SanitizeHTML strips scripts, handlers and unsafe URLs from markup.
func SanitizeHTML(s string) string {
	return policy.Sanitize(s)
}

// MarkdownHTML renders Markdown (GFM) to sanitized HTML.
func MarkdownHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return SanitizeHTML(buf.String()), nil
}

// HTML serializes n. Text and attribute values are escaped.
func HTML(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	if n.Tag == "" {
		b.WriteString(html.EscapeString(n.Text))
		for _, c := range n.Children {
			writeNode(b, c)
		}
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		if a.Bare {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if voidTags[n.Tag] {
		return
	}
	if n.InnerHTML != "" {
		b.WriteString(n.InnerHTML)
	} else {
		for _, c := range n.Children {
			writeNode(b, c)
		}
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

// Document wraps body markup in a standalone page.
func Document(title, body string) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n<script src=\"https://cdn.tailwindcss.com\"></script>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
