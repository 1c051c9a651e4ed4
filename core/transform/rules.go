package transform

import (
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/marker"
	"golang.org/x/net/html"
)

var (
	commentSentinel = regexp.MustCompile(`<!--\s*-->`)
	shikiToken      = regexp.MustCompile(`--shiki-token-([\w-]+)`)
	cellEscaper     = strings.NewReplacer("|", `\|`, "\n", " ")
)

// builtinRules returns the rule list in priority order. Earlier rules
// pre-empt later, more generic ones.
func (e *Engine) builtinRules() []Rule {
	return []Rule{
		{Name: "callout", Match: matchCallout, Render: renderCallout},
		{Name: "taskListItem", Match: matchTaskListItem, Render: renderTaskListItem},
		{Name: "list", Match: tagMatcher("ul", "ol"), Render: renderList},
		{Name: "subtitle", Match: matchSubtitle, Render: renderSubtitle},
		{Name: "heading", Match: isHeading, Render: renderHeading, IgnoreContent: true},
		{Name: "numberedItem", Match: matchNumberedItem, Render: renderNumberedItem},
		{Name: "numberBadge", Match: matchNumberBadge, Render: renderNothing, IgnoreContent: true},
		{Name: "copyButton", Match: matchCopyButton, Render: renderNothing, IgnoreContent: true},
		{Name: "codeBlock", Match: matchCodeBlock, Render: renderCodeBlock, IgnoreContent: true},
		{Name: "table", Match: matchTable, Render: renderTable, IgnoreContent: true},
		{Name: "image", Match: tagMatcher("img"), Render: e.renderImage, IgnoreContent: true},
		{Name: "fileDownload", Match: matchFileDownload, Render: renderFileDownload, IgnoreContent: true},
		{Name: "listItem", Match: tagMatcher("li"), Render: renderListItem},
	}
}

func renderNothing(context.Context, string, *html.Node) string { return "" }

// - - - callout - - - //

func matchCallout(n *html.Node) bool {
	return hasClasses(n, "hint")
}

func renderCallout(_ context.Context, content string, n *html.Node) string {
	kind := "info"
	switch {
	case dom.HasClass(n, "bg-danger"):
		kind = "danger"
	case dom.HasClass(n, "bg-warning"):
		kind = "warning"
	case dom.HasClass(n, "bg-success"):
		kind = "success"
	}

	title := collapsedText(find(n, tagMatcher("h3")))

	var paragraphs []string
	for _, p := range findAll(n, tagMatcher("p")) {
		if closest(p, tagMatcher("h3")) != nil {
			continue
		}
		if t := text(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	if len(paragraphs) == 0 {
		paragraphs = calloutLines(content, title)
	}

	header := ">[!" + kind + "]"
	if title != "" {
		header += " " + title
	}
	return "\n\n" + header + "\n> " + strings.Join(paragraphs, "\n> ") + "\n\n"
}

// calloutLines returns the non-blank lines of content, without the
// heading line that carries the title.
func calloutLines(content, title string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title != "" && strings.TrimSpace(strings.TrimLeft(line, "#")) == title {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// - - - lists - - - //

func isCheckbox(n *html.Node) bool {
	return isElement(n, "button") && attrEquals(n, "role", "checkbox")
}

// ownCheckbox returns the first checkbox whose nearest list item is li,
// ignoring checkboxes of nested items.
func ownCheckbox(li *html.Node) *html.Node {
	return find(li, func(c *html.Node) bool {
		return isCheckbox(c) && closest(c.Parent, tagMatcher("li")) == li
	})
}

func matchTaskListItem(n *html.Node) bool {
	return isElement(n, "li") && ownCheckbox(n) != nil
}

func checkedValue(v string) bool {
	return v == "true" || v == "checked"
}

func renderTaskListItem(_ context.Context, content string, n *html.Node) string {
	box := ownCheckbox(n)
	bullet := "- [ ] "
	if checkedValue(dom.GetAttributeOr(box, "aria-checked", "")) ||
		checkedValue(dom.GetAttributeOr(box, "data-state", "")) {
		bullet = "- [x] "
	}

	indent := indentFor(n)
	return indent + bullet + itemBody(content, indent+"  ") + "\n"
}

func renderList(_ context.Context, content string, _ *html.Node) string {
	return "\n" + blankLinesRemoved(content) + "\n"
}

func renderListItem(_ context.Context, content string, n *html.Node) string {
	bullet := "- "
	if isElement(n.Parent, "ol") {
		bullet = strconv.Itoa(listItemNumber(n)) + ". "
	}

	indent := indentFor(n)
	return indent + bullet + itemBody(content, indent+"  ") + "\n"
}

func listItemNumber(n *html.Node) int {
	num, err := strconv.Atoi(dom.GetAttributeOr(n.Parent, "start", "1"))
	if err != nil {
		num = 1
	}
	for prev := dom.PrevSiblingElement(n); prev != nil; prev = dom.PrevSiblingElement(prev) {
		if isElement(prev, "li") {
			num++
		}
	}
	return num
}

// - - - subtitle & headings - - - //

func matchSubtitle(n *html.Node) bool {
	return isElement(n, "p") &&
		(dom.HasClass(n, "subtitle") || hasClasses(n, "text-lg", "text-tint"))
}

func renderSubtitle(_ context.Context, content string, _ *html.Node) string {
	return "\n*" + strings.TrimSpace(content) + "*\n\n"
}

func renderHeading(_ context.Context, _ string, n *html.Node) string {
	level := int(dom.NodeName(n)[1] - '0')

	var prefix string
	if num := badgeNumber(n); num != "" {
		prefix = num + ". "
	}
	return "\n\n" + strings.Repeat("#", level) + " " + prefix + collapsedText(n) + "\n\n"
}

// - - - steppers - - - //

func isNumberCandidate(n *html.Node) bool {
	return isElement(n, "p", "div", "li", "span") &&
		dom.PrevSiblingElement(n) == nil &&
		!dom.ContainsNode(n, isHeading)
}

// matchNumberedItem matches the first content line of a numbered group.
// An enclosing candidate inside the same group takes the number instead,
// so a step is numbered once.
func matchNumberedItem(n *html.Node) bool {
	if !isNumberCandidate(n) || badgeNumber(n) == "" {
		return false
	}
	group := closest(n, classMatcher("flex-1"))
	for p := n.Parent; p != nil && p != group; p = p.Parent {
		if isNumberCandidate(p) {
			return false
		}
	}
	return n != group
}

func renderNumberedItem(_ context.Context, content string, n *html.Node) string {
	return "\n\n" + badgeNumber(n) + ". " + strings.TrimSpace(content) + "\n\n"
}

func matchNumberBadge(n *html.Node) bool {
	return hasClasses(n, "can-override-text") && isDigits(text(n))
}

func matchCopyButton(n *html.Node) bool {
	return isElement(n, "button") && text(n) == "Copy"
}

// - - - code - - - //

func matchCodeBlock(n *html.Node) bool {
	if isElement(n, "pre") && find(n, tagMatcher("code")) != nil {
		return true
	}
	return hasClasses(n, "group/codeblock")
}

func renderCodeBlock(_ context.Context, _ string, n *html.Node) string {
	code := find(n, tagMatcher("code"))
	if code == nil {
		return ""
	}

	body := strings.TrimSpace(commentSentinel.ReplaceAllString(dom.CollectText(code), ""))
	if body == "" {
		return ""
	}

	filename := text(find(n, classMatcher("inline-flex", "items-center", "justify-center")))

	lang := shikiLanguage(code)
	if lang == "" {
		lang = extensionLanguage(filename)
	}
	if lang == "" {
		lang = classLanguage(code)
	}

	info := ""
	if lang != "" || filename != "" {
		info = " " + lang
		if filename != "" {
			info += "(" + filename + ")"
		}
	}

	// Protect blank lines inside the code from the newline trimming.
	body = strings.ReplaceAll(body, "\n", string(marker.MarkerCodeBlockNewline))

	return "\n\n```" + info + "\n" + body + "\n```\n\n"
}

// shikiLanguage reads the highlighter token name from the inline style of
// the code element or one of its descendants.
func shikiLanguage(code *html.Node) string {
	nodes := append([]*html.Node{code}, findAll(code, tagMatcher())...)
	for _, n := range nodes {
		style, ok := dom.GetAttribute(n, "style")
		if !ok {
			continue
		}
		if m := shikiToken.FindStringSubmatch(style); m != nil {
			return m[1]
		}
	}
	return ""
}

func extensionLanguage(filename string) string {
	ext := path.Ext(filename)
	if len(ext) < 2 {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func classLanguage(code *html.Node) string {
	for _, class := range dom.GetClasses(code) {
		if lang, ok := strings.CutPrefix(class, "language-"); ok && lang != "" {
			return lang
		}
	}
	return ""
}

// - - - tables - - - //

func roleMatcher(role string) func(*html.Node) bool {
	return func(n *html.Node) bool { return isElement(n) && attrEquals(n, "role", role) }
}

func matchTable(n *html.Node) bool {
	return isElement(n) && attrEquals(n, "role", "table")
}

func renderTable(_ context.Context, _ string, n *html.Node) string {
	rows := findAll(n, roleMatcher("row"))
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n")

	if headers := findAll(rows[0], roleMatcher("columnheader")); len(headers) > 0 {
		cells := make([]string, len(headers))
		seps := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = cellEscaper.Replace(collapsedText(h))
			seps[i] = "---"
		}
		writeTableRow(&b, cells)
		writeTableRow(&b, seps)
	}

	for _, row := range rows[1:] {
		cellNodes := findAll(row, roleMatcher("cell"))
		if len(cellNodes) == 0 {
			continue
		}
		cells := make([]string, len(cellNodes))
		for i, c := range cellNodes {
			cells[i] = cellText(c)
		}
		writeTableRow(&b, cells)
	}

	b.WriteString("\n")
	return b.String()
}

func cellText(cell *html.Node) string {
	if code := find(cell, tagMatcher("code")); code != nil {
		return "`" + cellEscaper.Replace(text(code)) + "`"
	}
	return cellEscaper.Replace(collapsedText(cell))
}

func writeTableRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

// - - - file downloads - - - //

func matchFileDownload(n *html.Node) bool {
	if !isElement(n, "a") {
		return false
	}
	_, ok := dom.GetAttribute(n, "download")
	return ok
}

func renderFileDownload(_ context.Context, _ string, n *html.Node) string {
	href := dom.GetAttributeOr(n, "href", "")

	name := strings.TrimSpace(dom.GetAttributeOr(n, "download", ""))
	if name == "" {
		name = path.Base(strings.SplitN(href, "?", 2)[0])
	}
	if name == "" || name == "." || name == "/" {
		name = collapsedText(n)
	}

	var meta []string
	if kind := text(find(n, classMatcher("text-sm", "opacity-9"))); kind != "" {
		meta = append(meta, kind)
	}
	if size := text(find(n, classMatcher("text-xs", "text-tint"))); size != "" {
		meta = append(meta, size)
	}

	out := "[📎 " + name + "](" + href + ")"
	if len(meta) > 0 {
		out += " (" + strings.Join(meta, ", ") + ")"
	}
	if picture := closest(n, tagMatcher("picture")); picture != nil {
		if caption := collapsedText(find(picture, tagMatcher("figcaption"))); caption != "" {
			out += "\n> " + caption
		}
	}
	return "\n\n" + out + "\n\n"
}
