package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestGetText(t *testing.T) {
	doc := parse(t, `<div>hello <b>big</b> world</div>`)
	require.Equal(t, "hello big world", GetText(doc.Find("div").Nodes[0]))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b", CleanText("  a \n\n  b\t"))
	require.Equal(t, "plain", CleanText("plain"))
}

func TestFindExactText(t *testing.T) {
	doc := parse(t, `
		<div>
			<span> Refund Total </span>
			<span>Refund Total (estimated)</span>
			<span>$4.20</span>
		</div>
	`)

	matches := FindExactText(doc.Selection, "span", "Refund Total")
	require.Equal(t, 1, matches.Length())
	require.Equal(t, "$4.20", CleanText(matches.First().Siblings().Last().Text()))
}
