package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText collects the concatenated text content of a node subtree.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CleanText strips non-printable runes, trims the edges and collapses
// inner whitespace runs into single spaces. rendered pages are full of
// layout whitespace that would otherwise leak into extracted fields.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// FindExactText returns the selections under root whose own cleaned
// text equals want. matching is exact rather than substring so labels
// like "Refund Total" don't collide with "Refund Total (estimated)".
func FindExactText(root *goquery.Selection, selector, want string) *goquery.Selection {
	return root.Find(selector).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return CleanText(sel.Text()) == want
	})
}
