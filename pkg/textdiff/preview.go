package textdiff

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Preview limits.
const (
	DefaultMaxLines  = 5
	DefaultMaxLength = 180
	ellipsis         = "…"
)

// Labels prefix preview lines. Match marks shared text; Added and Removed
// mark text present in only one of the documents.
type Labels struct {
	Match   string `yaml:"match" json:"match"`
	Added   string `yaml:"added" json:"added"`
	Removed string `yaml:"removed" json:"removed"`
}

var (
	EnglishLabels = Labels{Match: "Match", Added: "Added", Removed: "Removed"}
	RussianLabels = Labels{Match: "Совпадение", Added: "Добавлено", Removed: "Удалено"}
)

// LabelsFor returns the label set for a locale ("en", "ru"). Unknown locales get English.
func LabelsFor(locale string) Labels {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "ru", "ru-ru", "russian":
		return RussianLabels
	default:
		return EnglishLabels
	}
}

// WithDefaults returns l with every empty field taken from base.
func (l Labels) WithDefaults(base Labels) Labels {
	if l.Match == "" {
		l.Match = base.Match
	}
	if l.Added == "" {
		l.Added = base.Added
	}
	if l.Removed == "" {
		l.Removed = base.Removed
	}
	return l
}

func (l Labels) forKind(k Kind) string {
	switch k {
	case Added:
		return l.Added
	case Removed:
		return l.Removed
	default:
		return l.Match
	}
}

// Previewer renders bounded previews from diff segments.
type Previewer struct {
	MaxLines  int
	MaxLength int
	Labels    Labels
}

// NewPreviewer returns a Previewer with the default limits and English labels.
func NewPreviewer() Previewer {
	return Previewer{MaxLines: DefaultMaxLines, MaxLength: DefaultMaxLength, Labels: EnglishLabels}
}

// Build renders up to MaxLines lines, one per shared span. When the texts
// share nothing, it falls back to the first non-empty spans of any kind,
// labelled by kind. It returns "" when no segment has visible text.
func (p Previewer) Build(segments []Segment) string {
	maxLines := p.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	p.Labels = p.Labels.WithDefaults(EnglishLabels)

	var lines []string
	for _, s := range segments {
		if len(lines) == maxLines {
			break
		}
		if s.Kind != Equal {
			continue
		}
		if text := compressWhitespace(s.Text); text != "" {
			lines = append(lines, p.line(p.Labels.Match, text))
		}
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n")
	}

	for _, s := range segments {
		if len(lines) == maxLines {
			break
		}
		if text := compressWhitespace(s.Text); text != "" {
			lines = append(lines, p.line(p.Labels.forKind(s.Kind), text))
		}
	}
	return strings.Join(lines, "\n")
}

func (p Previewer) line(label, text string) string {
	return label + ": «" + truncate(text, p.MaxLength) + "»"
}

// BuildPreview renders a preview with the default Previewer.
func BuildPreview(segments []Segment) string {
	return NewPreviewer().Build(segments)
}

func compressWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at max runes, replacing the tail with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxLength
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	head := strings.TrimRightFunc(string(runes[:max-1]), unicode.IsSpace)
	return head + ellipsis
}
