package retrieval

import (
	"math"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

var englishStopwords = stopwords.MustGet("en")

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenize lowercases, strips punctuation, and drops stopwords -- the same
// shape of preprocessing the corpus's discovery/registry.go applies before
// candidate scoring, reused here for lexical search instead of entity
// discovery.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || englishStopwords.Contains(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// bm25Corpus precomputes the document-frequency statistics needed to score
// a query against a fixed set of documents.
type bm25Corpus struct {
	docTokens [][]string
	docLen    []int
	avgLen    float64
	df        map[string]int
	n         int
}

func newBM25Corpus(documents []string) *bm25Corpus {
	c := &bm25Corpus{df: map[string]int{}}
	c.n = len(documents)
	var total int
	for _, doc := range documents {
		toks := tokenize(doc)
		c.docTokens = append(c.docTokens, toks)
		c.docLen = append(c.docLen, len(toks))
		total += len(toks)
		seen := map[string]bool{}
		for _, t := range toks {
			if !seen[t] {
				c.df[t]++
				seen[t] = true
			}
		}
	}
	if c.n > 0 {
		c.avgLen = float64(total) / float64(c.n)
	}
	return c
}

func (c *bm25Corpus) idf(term string) float64 {
	df := c.df[term]
	return math.Log(1 + (float64(c.n)-float64(df)+0.5)/(float64(df)+0.5))
}

// score returns the BM25 score of queryTokens against an arbitrary
// document's tokens, using this corpus's idf/average-length statistics.
func (c *bm25Corpus) score(queryTokens, docTokens []string) float64 {
	if len(docTokens) == 0 {
		return 0
	}
	termFreq := map[string]int{}
	for _, t := range docTokens {
		termFreq[t]++
	}

	var score float64
	dl := float64(len(docTokens))
	for _, qt := range queryTokens {
		f := float64(termFreq[qt])
		if f == 0 {
			continue
		}
		idf := c.idf(qt)
		denom := f + bm25K1*(1-bm25B+bm25B*dl/maxF(c.avgLen, 1))
		score += idf * (f * (bm25K1 + 1)) / denom
	}
	return score
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
