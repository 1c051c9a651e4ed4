package transform

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

func isElement(n *html.Node, names ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(names) == 0 {
		return true
	}
	name := dom.NodeName(n)
	for _, want := range names {
		if name == want {
			return true
		}
	}
	return false
}

func isHeading(n *html.Node) bool {
	return isElement(n) && dom.NameIsHeading(dom.NodeName(n))
}

func hasClasses(n *html.Node, classes ...string) bool {
	if !isElement(n) {
		return false
	}
	for _, c := range classes {
		if !dom.HasClass(n, c) {
			return false
		}
	}
	return true
}

func classMatcher(classes ...string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClasses(n, classes...) }
}

func tagMatcher(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool { return isElement(n, names...) }
}

func attrEquals(n *html.Node, key, value string) bool {
	v, ok := dom.GetAttribute(n, key)
	return ok && v == value
}

// closest returns n or its nearest ancestor matching fn.
func closest(n *html.Node, fn func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if fn(n) {
			return n
		}
	}
	return nil
}

// find returns the first descendant of n matching fn.
func find(n *html.Node, fn func(*html.Node) bool) *html.Node {
	return dom.FindFirstNode(n, fn)
}

func findAll(n *html.Node, fn func(*html.Node) bool) []*html.Node {
	return dom.FindAllNodes(n, fn)
}

func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(dom.CollectText(n))
}

// collapsedText returns the text of n with runs of whitespace folded.
func collapsedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(dom.CollectText(n)), " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// badgeNumber returns the stepper number associated with n: the
// closest "flex-1" group, its previous element sibling, and the first
// digits-only ".can-override-text" in it. Shapes that do not match
// yield "".
func badgeNumber(n *html.Node) string {
	group := closest(n, classMatcher("flex-1"))
	if group == nil {
		return ""
	}
	prev := dom.PrevSiblingElement(group)
	if prev == nil {
		return ""
	}

	badge := prev
	if !dom.HasClass(badge, "can-override-text") {
		badge = find(prev, classMatcher("can-override-text"))
	}
	if badge == nil {
		return ""
	}
	if num := text(badge); isDigits(num) {
		return num
	}
	return ""
}

// listDepth counts the ul/ol ancestors of n.
func listDepth(n *html.Node) int {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p, "ul", "ol") {
			depth++
		}
	}
	return depth
}

func indentFor(n *html.Node) string {
	return strings.Repeat("  ", max(0, listDepth(n)-1))
}

// itemBody lays out the rendered content of a list item after its marker.
// Lines already indented at least as deep as pad (nested lists) are kept;
// other continuation lines are aligned under the marker.
func itemBody(content, pad string) string {
	var lines []string
	for _, line := range strings.Split(strings.Trim(content, "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, " "))
		}
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	start := 0
	if !strings.HasPrefix(lines[0], pad) || pad == "" {
		b.WriteString(strings.TrimSpace(lines[0]))
		start = 1
	}
	for _, line := range lines[start:] {
		b.WriteString("\n")
		if pad != "" && strings.HasPrefix(line, pad) {
			b.WriteString(line)
		} else {
			b.WriteString(pad + strings.TrimSpace(line))
		}
	}
	return b.String()
}

func blankLinesRemoved(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
