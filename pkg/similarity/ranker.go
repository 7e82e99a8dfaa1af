package similarity

import "sort"

// Candidate is a document competing for similarity with the target.
type Candidate struct {
	ID   string
	Name string
	Text string
}

// Result is the similarity of one candidate to the target.
type Result struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Rank is the dense 0-based position after sorting.
	Rank int `json:"rank"`
	// Lexical and Char are the raw cosine sub-scores in [0, 1].
	Lexical float64 `json:"lexical"`
	Char    float64 `json:"char"`
	// Score is the blended similarity as a percentage in [0, 100].
	Score float64 `json:"score"`
}

// Ranker scores candidates against a target text.
// It holds no state between calls and is safe for concurrent use.
type Ranker struct {
	cfg  Config
	word *Vectorizer
	char *Vectorizer
}

// NewRanker creates a Ranker from a validated Config.
func NewRanker(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{
		cfg:  cfg,
		word: NewVectorizer(WordAnalyzer(cfg.WordNGram, cfg.MinTokenLength), cfg.MinDocFreq),
		char: NewVectorizer(CharWBAnalyzer(cfg.CharNGram), cfg.MinDocFreq),
	}, nil
}

// MustNewRanker is like NewRanker but panics if cfg is invalid.
// It simplifies building rankers from known-good configs such as DefaultConfig.
func MustNewRanker(cfg Config) *Ranker {
	r, err := NewRanker(cfg)
	if err != nil {
		panic("similarity: " + err.Error())
	}
	return r
}

// Config returns the configuration the Ranker was built with.
func (r *Ranker) Config() Config {
	return r.cfg
}

// Rank scores every candidate against target and returns the results sorted
// by score, highest first. Ties keep the original candidate order.
// An empty candidate list yields an empty result.
func (r *Ranker) Rank(target string, candidates []Candidate) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}

	corpus := make([]string, 0, len(candidates)+1)
	corpus = append(corpus, target)
	for _, c := range candidates {
		corpus = append(corpus, c.Text)
	}

	wordVecs := r.word.FitTransform(corpus)
	charVecs := r.char.FitTransform(corpus)
	wl, wc := r.cfg.weights()

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		lexical := cosine(wordVecs[0], wordVecs[i+1])
		char := cosine(charVecs[0], charVecs[i+1])
		combined := clamp01(wl*lexical + wc*char)
		results[i] = Result{
			ID:      c.ID,
			Name:    c.Name,
			Lexical: lexical,
			Char:    char,
			Score:   combined * 100,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i
	}
	return results
}

var defaultRanker = MustNewRanker(DefaultConfig())

// Rank scores candidates with the default configuration.
func Rank(target string, candidates []Candidate) []Result {
	return defaultRanker.Rank(target, candidates)
}
