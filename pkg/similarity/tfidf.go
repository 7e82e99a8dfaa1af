package similarity

import "math"

// Vector is a sparse, L2-normalised term-weight vector.
type Vector map[string]float64

// Vectorizer fits TF-IDF weights over a corpus.
//
// Weights use raw term counts for tf and the smoothed inverse document
// frequency idf(t) = ln((1+n)/(1+df(t))) + 1, then each row is L2-normalised.
type Vectorizer struct {
	analyze    Analyzer
	minDocFreq int
}

// NewVectorizer creates a Vectorizer using the given analyzer.
func NewVectorizer(analyze Analyzer, minDocFreq int) *Vectorizer {
	if minDocFreq < 1 {
		minDocFreq = 1
	}
	return &Vectorizer{analyze: analyze, minDocFreq: minDocFreq}
}

// FitTransform returns one vector per corpus document, in order.
// Documents without any retained term get an empty (zero) vector.
func (v *Vectorizer) FitTransform(corpus []string) []Vector {
	counts := make([]map[string]int, len(corpus))
	docFreq := make(map[string]int)

	for i, doc := range corpus {
		tf := make(map[string]int)
		for _, term := range v.analyze(doc) {
			tf[term]++
		}
		for term := range tf {
			docFreq[term]++
		}
		counts[i] = tf
	}

	n := float64(len(corpus))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		if df < v.minDocFreq {
			continue
		}
		idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	vectors := make([]Vector, len(corpus))
	for i, tf := range counts {
		vec := make(Vector, len(tf))
		var norm float64
		for term, count := range tf {
			weight, ok := idf[term]
			if !ok {
				continue
			}
			w := float64(count) * weight
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// cosine returns the cosine similarity of two L2-normalised vectors, clamped to [0, 1].
func cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	return clamp01(dot)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
