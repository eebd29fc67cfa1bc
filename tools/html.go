package tools

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	skipElements = map[string]bool{
		"script": true, "style": true, "img": true, "figure": true,
		"sup": true, "noscript": true, "svg": true,
	}
	headingLevel = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}
	// wiki edit links and coordinates leak into headings
	headingNoise = []string{"编辑", "[编辑]", "坐标"}

	extraNewlines = regexp.MustCompile(`\n{3,}`)
	spaceRuns     = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// HTMLToMarkdown converts a page to plain markdown: headings, paragraphs and
// list items, with scripts, styles and images dropped. Wikipedia pages are
// narrowed to their article body.
func HTMLToMarkdown(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", err
	}
	root := findByID(doc, "div", "mw-content-text")
	if root == nil {
		root = doc
	}

	var b strings.Builder
	walkBlocks(root, &b)
	out := extraNewlines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

func walkBlocks(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			walkBlocks(c, b)
			continue
		}
		if skipElements[c.Data] {
			continue
		}
		if level, ok := headingLevel[c.Data]; ok {
			text := textOf(c)
			if text != "" && !containsAny(text, headingNoise) {
				b.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
			}
			continue
		}
		switch c.Data {
		case "p":
			if text := textOf(c); text != "" {
				b.WriteString(text + "\n\n")
			}
		case "ul", "ol":
			for li := c.FirstChild; li != nil; li = li.NextSibling {
				if li.Type == html.ElementNode && li.Data == "li" {
					if text := textOf(li); text != "" {
						b.WriteString("- " + text + "\n")
					}
				}
			}
			b.WriteString("\n")
		default:
			walkBlocks(c, b)
		}
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(spaceRuns.ReplaceAllString(b.String(), " "))
}

func findByID(n *html.Node, tag, id string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, tag, id); found != nil {
			return found
		}
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
