package fetch

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var pypiProjectPattern = regexp.MustCompile(`^https?://pypi\.org/project/([^/]+)/?`)

// PyPIPackageName reports whether a URL points at a PyPI project page and
// returns the package name when it does.
func PyPIPackageName(pageURL string) (string, bool) {
	if m := pypiProjectPattern.FindStringSubmatch(pageURL); m != nil {
		return m[1], true
	}
	return "", false
}

// FormatPyPIPackage renders a PyPI project page as structured study material:
// the sidebar metadata sections plus the project description converted to
// markdown. Returns false when the page carries no recognizable description,
// so the caller can fall back to generic extraction.
func FormatPyPIPackage(pageHTML, packageName string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return "", false
	}

	description := findByClass(doc, "project-description")
	if description == nil {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s PyPI Package\n\n", packageName)

	if sidebar := findByClass(doc, "sidebar"); sidebar != nil {
		if sections := renderSidebarSections(sidebar); sections != "" {
			b.WriteString("## Package Information\n\n")
			b.WriteString(sections)
		}
	}

	b.WriteString("## Documentation\n\n")
	b.WriteString(renderProjectDescription(description))
	return strings.TrimRight(b.String(), "\n") + "\n", true
}

// renderSidebarSections turns each sidebar section into a titled bullet list.
func renderSidebarSections(sidebar *html.Node) string {
	var sections []*html.Node
	collectByClass(sidebar, "sidebar-section", &sections)

	var b strings.Builder
	for _, section := range sections {
		heading := findFirstElement(section, "h3", "h4")
		if heading == nil {
			continue
		}
		title := nodeText(heading)
		if title == "" {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", title)

		var paragraphs []*html.Node
		collectElements(section, "p", &paragraphs)
		for _, p := range paragraphs {
			if text := nodeText(p); text != "" {
				fmt.Fprintf(&b, "- %s\n", text)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderProjectDescription converts the description's top-level elements to
// markdown: headings, paragraphs, code blocks and bullet lists. Anything else
// is dropped, matching how little structure package pages reliably share.
func renderProjectDescription(description *html.Node) string {
	var b strings.Builder
	for c := description.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "h1", "h2", "h3", "h4":
			level := int(c.Data[1] - '0')
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", level), nodeText(c))
		case "p":
			if text := nodeText(c); text != "" {
				b.WriteString(text + "\n\n")
			}
		case "pre":
			language := ""
			if code := findFirstElement(c, "code"); code != nil &&
				strings.Contains(strings.ToLower(attrValue(code, "class")), "python") {
				language = "python"
			}
			fmt.Fprintf(&b, "```%s\n%s\n```\n\n", language, rawText(c))
		case "ul":
			for li := c.FirstChild; li != nil; li = li.NextSibling {
				if li.Type == html.ElementNode && li.Data == "li" {
					fmt.Fprintf(&b, "- %s\n", nodeText(li))
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, name := range strings.Fields(attrValue(n, "class")) {
		if name == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func collectByClass(n *html.Node, class string, out *[]*html.Node) {
	if n.Type == html.ElementNode && hasClass(n, class) {
		*out = append(*out, n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectByClass(c, class, out)
	}
}

func findFirstElement(n *html.Node, tags ...string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for _, tag := range tags {
				if c.Data == tag {
					return c
				}
			}
		}
		if found := findFirstElement(c, tags...); found != nil {
			return found
		}
	}
	return nil
}

func collectElements(n *html.Node, tag string, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			*out = append(*out, c)
		}
		collectElements(c, tag, out)
	}
}

// nodeText is the whitespace-collapsed text of a node's subtree.
func nodeText(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

// rawText keeps the subtree's text verbatim, trimmed; used for code blocks
// where collapsing whitespace would mangle the content.
func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
