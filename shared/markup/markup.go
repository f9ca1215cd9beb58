// Package markup renders post bodies to sanitized HTML.
package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// postRefRegex matches post references such as ANN1/3 in rendered text. The
// letter prefix is required so fractions like 1/2 stay plain text.
var postRefRegex = regexp.MustCompile(`\b([A-Za-z]{1,3}[0-9]+)/([0-9]+)\b`)

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	p := parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewListParser(), 300),
			util.Prioritized(parser.NewListItemParser(), 400),
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(parser.NewBlockquoteParser(), 800),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
		parser.WithInlineParsers(
			util.Prioritized(parser.NewCodeSpanParser(), 100),
			util.Prioritized(parser.NewLinkParser(), 200),
			util.Prioritized(parser.NewAutoLinkParser(), 300),
			util.Prioritized(parser.NewEmphasisParser(), 500),
		),
	)

	md := goldmark.New(
		goldmark.WithParser(p),
		goldmark.WithRendererOptions(html.WithHardWraps()),
		goldmark.WithExtensions(extension.Strikethrough),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile("^post-link$")).OnElements("a")
	policy.AllowAttrs("data-board", "data-post").OnElements("a")
	policy.AllowRelativeURLs(true)

	return &Renderer{md: md, policy: policy}
}

// Render converts a markdown body to HTML, links post references and strips
// anything outside the UGC policy. On a markdown failure the escaped raw body
// is returned.
func (r *Renderer) Render(body string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return r.policy.Sanitize(body)
	}
	linked := r.linkPostRefs(strings.TrimSpace(buf.String()))
	return r.policy.Sanitize(linked)
}

// linkPostRefs only rewrites text outside tags, so references inside
// attributes (e.g. an href) are left alone. Text within <code> and <pre> is
// copied verbatim.
func (r *Renderer) linkPostRefs(html string) string {
	var out strings.Builder
	verbatim := 0
	text := func(s string) {
		if verbatim > 0 {
			out.WriteString(s)
			return
		}
		out.WriteString(replacePostRefs(s))
	}
	for len(html) > 0 {
		open := strings.IndexByte(html, '<')
		if open < 0 {
			text(html)
			break
		}
		text(html[:open])
		end := strings.IndexByte(html[open:], '>')
		if end < 0 {
			out.WriteString(html[open:])
			break
		}
		tag := html[open : open+end+1]
		switch tagName(tag) {
		case "code", "pre":
			verbatim++
		case "/code", "/pre":
			if verbatim > 0 {
				verbatim--
			}
		}
		out.WriteString(tag)
		html = html[open+end+1:]
	}
	return out.String()
}

// tagName returns the lowercased element name of tag, with a leading slash for
// closing tags.
func tagName(tag string) string {
	name := strings.TrimPrefix(tag, "<")
	if i := strings.IndexAny(name, " \t\n/>"); i > 0 {
		name = name[:i]
	} else if strings.HasPrefix(name, "/") {
		if j := strings.IndexAny(name[1:], " \t\n>"); j >= 0 {
			name = name[:j+1]
		}
	}
	return strings.ToLower(name)
}

func replacePostRefs(text string) string {
	return postRefRegex.ReplaceAllStringFunc(text, func(match string) string {
		sub := postRefRegex.FindStringSubmatch(match)
		board, post := strings.ToUpper(sub[1]), sub[2]
		return `<a class="post-link" href="/v1/boards/` + board + `/read/` + post +
			`" data-board="` + board + `" data-post="` + post + `">` + match + `</a>`
	})
}
