package orders

import (
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// stripMarkup returns the text content of s with any HTML tags removed.
func stripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String()
			}
			return s
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}

type toxicityScorer struct {
	terms map[string]struct{}
}

func newToxicityScorer(terms []string) *toxicityScorer {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		for _, w := range words(t) {
			set[w] = struct{}{}
		}
	}
	return &toxicityScorer{terms: set}
}

// ratio is the share of words in text that are toxic terms.
func (t *toxicityScorer) ratio(text string) (decimal.Decimal, []string) {
	all := words(stripMarkup(text))
	if len(all) == 0 {
		return decimal.Zero, nil
	}
	var hits []string
	for _, w := range all {
		if _, ok := t.terms[w]; ok {
			hits = append(hits, w)
		}
	}
	return decimal.NewFromInt(int64(len(hits))).Div(decimal.NewFromInt(int64(len(all)))), hits
}
