package capture

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// collapsible is CSS "white-space: normal" whitespace; NBSP is kept
	collapsible = regexp.MustCompile(`[ \t\n\r\f]+`)

	blockElements = map[atom.Atom]bool{
		atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
		atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
		atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
		atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
		atom.Tr: true, atom.Ul: true,
	}

	hiddenElements = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Noscript: true,
		atom.Template: true, atom.Head: true, atom.Title: true,
	}
)

// ExtractText returns the rendered text of the first element matched by the
// first selector that yields non-empty text, or "" when none does.
func ExtractText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		first := doc.Find(selector).First()
		if len(first.Nodes) == 0 {
			continue
		}
		if text := InnerText(first.Nodes[0]); text != "" {
			return text
		}
	}
	return ""
}

// InnerText approximates the browser's innerText: <br> and block elements
// break lines, other whitespace collapses, hidden elements are skipped.
func InnerText(n *html.Node) string {
	var b strings.Builder
	writeText(&b, n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(collapsible.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapsible.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
		if hiddenElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
