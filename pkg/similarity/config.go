package similarity

import (
	"errors"
	"fmt"
)

// Default tuning values.
const (
	DefaultLexicalWeight  = 0.65
	DefaultCharWeight     = 0.35
	DefaultMinDocFreq     = 1
	DefaultMinTokenLength = 2
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid similarity config")

// NGramRange is an inclusive range of n-gram lengths.
type NGramRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Config holds the tunable parameters of the Ranker.
type Config struct {
	// LexicalWeight and CharWeight are the blend weights. They are normalised
	// to sum to 1, so the blend stays a convex combination.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	CharWeight    float64 `yaml:"char_weight" json:"char_weight"`

	WordNGram NGramRange `yaml:"word_ngram" json:"word_ngram"`
	CharNGram NGramRange `yaml:"char_ngram" json:"char_ngram"`

	// MinDocFreq drops terms that appear in fewer documents. 1 keeps everything.
	MinDocFreq int `yaml:"min_doc_freq" json:"min_doc_freq"`

	// MinTokenLength is the minimum rune length of a word token.
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		LexicalWeight:  DefaultLexicalWeight,
		CharWeight:     DefaultCharWeight,
		WordNGram:      NGramRange{Min: 1, Max: 3},
		CharNGram:      NGramRange{Min: 3, Max: 5},
		MinDocFreq:     DefaultMinDocFreq,
		MinTokenLength: DefaultMinTokenLength,
	}
}

// Validate checks ranges and weights.
func (c Config) Validate() error {
	if c.LexicalWeight < 0 || c.CharWeight < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}
	if c.LexicalWeight+c.CharWeight == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	}
	if err := c.WordNGram.validate("word_ngram"); err != nil {
		return err
	}
	if err := c.CharNGram.validate("char_ngram"); err != nil {
		return err
	}
	if c.MinDocFreq < 1 {
		return fmt.Errorf("%w: min_doc_freq must be >= 1", ErrInvalidConfig)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("%w: min_token_length must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func (r NGramRange) validate(name string) error {
	if r.Min < 1 || r.Max < r.Min {
		return fmt.Errorf("%w: %s must satisfy 1 <= min <= max (got %d..%d)", ErrInvalidConfig, name, r.Min, r.Max)
	}
	return nil
}

// weights returns the blend weights normalised to sum to 1.
func (c Config) weights() (lexical, char float64) {
	total := c.LexicalWeight + c.CharWeight
	return c.LexicalWeight / total, c.CharWeight / total
}
