// Package similarity ranks candidate documents against a target text.
//
// Two independent TF-IDF representations are fitted over the joint corpus
// (target plus candidates):
//
//   - Lexical: word n-grams (1..3 by default).
//   - Character: word-bounded character n-grams (3..5 by default), where each
//     whitespace-delimited word is padded with a single space on each side.
//
// The cosine similarities of both representations are blended into a single
// score (0.65 lexical, 0.35 character by default) and reported as a
// percentage in [0, 100].
//
// Usage:
//
//	ranker, err := similarity.NewRanker(similarity.DefaultConfig())
//	results := ranker.Rank(target, []similarity.Candidate{
//		{ID: "1", Name: "a.pdf", Text: "..."},
//	})
package similarity
