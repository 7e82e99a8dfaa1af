package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Analyzer turns a document into the list of terms it contains (with repeats).
type Analyzer func(text string) []string

// preprocess applies Unicode compatibility normalisation and lower-casing.
func preprocess(text string) string {
	if text == "" {
		return ""
	}
	return strings.ToLower(norm.NFKC.String(text))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordTokens splits text into runs of letters, digits and underscores,
// keeping runs of at least minLen runes.
func wordTokens(text string, minLen int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// WordAnalyzer returns word n-grams in [ngram.Min, ngram.Max], tokens joined by a space.
func WordAnalyzer(ngram NGramRange, minTokenLength int) Analyzer {
	return func(text string) []string {
		tokens := wordTokens(preprocess(text), minTokenLength)
		if len(tokens) == 0 {
			return nil
		}

		var terms []string
		for n := ngram.Min; n <= ngram.Max; n++ {
			if n == 1 {
				terms = append(terms, tokens...)
				continue
			}
			for i := 0; i+n <= len(tokens); i++ {
				terms = append(terms, strings.Join(tokens[i:i+n], " "))
			}
		}
		return terms
	}
}

// CharWBAnalyzer returns character n-grams built inside word boundaries only.
// Every whitespace-delimited word is padded with one space on each side;
// a padded word shorter than n is emitted once as a whole.
func CharWBAnalyzer(ngram NGramRange) Analyzer {
	return func(text string) []string {
		words := strings.Fields(preprocess(text))
		if len(words) == 0 {
			return nil
		}

		var terms []string
		for _, w := range words {
			padded := []rune(" " + w + " ")
			for n := ngram.Min; n <= ngram.Max; n++ {
				if len(padded) <= n {
					terms = append(terms, string(padded))
					break
				}
				for i := 0; i+n <= len(padded); i++ {
					terms = append(terms, string(padded[i:i+n]))
				}
			}
		}
		return terms
	}
}
