package textdiff_test

import (
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/textdiff"
)

func TestSegments_Identical(t *testing.T) {
	for _, text := range []string{"", "a", "The quick brown fox.\nJumps over the lazy dog."} {
		segments := textdiff.Segments(text, text)
		var b strings.Builder
		for _, s := range segments {
			assert.Equal(t, textdiff.Equal, s.Kind)
			b.WriteString(s.Text)
		}
		assert.Equal(t, text, b.String())
	}
}

func TestSegments_Reconstruct(t *testing.T) {
	pairs := [][2]string{
		{"", "new text"},
		{"old text", ""},
		{"the cat sat on the mat", "the dog sat on a mat"},
		{"Привет, мир! Это тест.", "Привет, мир! Это другой тест."},
		{"line one\nline two\nline three\n", "line one\nline 2\nline three\nline four\n"},
	}
	for _, p := range pairs {
		segments := textdiff.Segments(p[0], p[1])
		assert.Equal(t, p[0], textdiff.Source(segments))
		assert.Equal(t, p[1], textdiff.Target(segments))
	}
}

func TestSegments_InvalidUTF8(t *testing.T) {
	source, target := "abc\xffdef", "abc\xfexyz"
	segments := textdiff.Segments(source, target)
	for _, seg := range segments {
		assert.True(t, utf8.ValidString(seg.Text), "segment %q", seg.Text)
	}
	assert.Equal(t, textdiff.Sanitize(source), textdiff.Source(segments))
	assert.Equal(t, textdiff.Sanitize(target), textdiff.Target(segments))
	assert.Equal(t, "abc\uFFFDdef", textdiff.Source(segments))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "héllo", textdiff.Sanitize("héllo"))
	assert.Equal(t, "a\uFFFDb", textdiff.Sanitize("a\xff\xfeb"))
	assert.Equal(t, "", textdiff.Sanitize(""))
}

func TestSegments_TimeoutStillValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	build := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		return b.String()
	}
	a, b := build(4000), build(4000)

	engine := textdiff.NewEngine(time.Millisecond)
	assert.Equal(t, time.Millisecond, engine.Timeout())

	segments := engine.Segments(a, b)
	assert.Equal(t, a, textdiff.Source(segments))
	assert.Equal(t, b, textdiff.Target(segments))
}

func TestNewEngine_DefaultTimeout(t *testing.T) {
	assert.Equal(t, textdiff.DefaultTimeout, textdiff.NewEngine(0).Timeout())
	assert.Equal(t, textdiff.DefaultTimeout, textdiff.NewEngine(-time.Second).Timeout())
}

func TestBuildPreview_Identical(t *testing.T) {
	text := "Shared   paragraph\n\nwith   odd spacing."
	preview := textdiff.BuildPreview(textdiff.Segments(text, text))
	assert.Equal(t, "Match: «Shared paragraph with odd spacing.»", preview)
}

func TestBuildPreview_Disjoint(t *testing.T) {
	preview := textdiff.BuildPreview(textdiff.Segments("abc", "xyz"))
	assert.Equal(t, "Removed: «abc»\nAdded: «xyz»", preview)
}

func TestBuildPreview_Empty(t *testing.T) {
	assert.Equal(t, "", textdiff.BuildPreview(nil))
	assert.Equal(t, "", textdiff.BuildPreview(textdiff.Segments("", "")))
	assert.Equal(t, "", textdiff.BuildPreview([]textdiff.Segment{
		{Kind: textdiff.Equal, Text: "   "},
		{Kind: textdiff.Added, Text: "\n\t"},
	}))
}

func TestBuildPreview_SkipsBlankEqualSpans(t *testing.T) {
	segments := []textdiff.Segment{
		{Kind: textdiff.Equal, Text: "  \n"},
		{Kind: textdiff.Removed, Text: "gone"},
		{Kind: textdiff.Added, Text: "new"},
	}
	assert.Equal(t, "Removed: «gone»\nAdded: «new»", textdiff.BuildPreview(segments))
}

func TestBuildPreview_FallbackSkipsEmptyThenTakesFive(t *testing.T) {
	var segments []textdiff.Segment
	for i := 0; i < 6; i++ {
		segments = append(segments, textdiff.Segment{Kind: textdiff.Added, Text: " "})
	}
	segments = append(segments, textdiff.Segment{Kind: textdiff.Removed, Text: "late"})

	assert.Equal(t, "Removed: «late»", textdiff.BuildPreview(segments))
}

func TestBuildPreview_Bounds(t *testing.T) {
	long := strings.Repeat("word ", 200)
	var segments []textdiff.Segment
	for i := 0; i < 8; i++ {
		segments = append(segments,
			textdiff.Segment{Kind: textdiff.Equal, Text: long},
			textdiff.Segment{Kind: textdiff.Added, Text: "x"},
		)
	}

	preview := textdiff.BuildPreview(segments)
	lines := strings.Split(preview, "\n")
	require.Len(t, lines, textdiff.DefaultMaxLines)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "Match: «"))
		require.True(t, strings.HasSuffix(line, "»"))
		quoted := strings.TrimSuffix(strings.TrimPrefix(line, "Match: «"), "»")
		assert.LessOrEqual(t, utf8.RuneCountInString(quoted), textdiff.DefaultMaxLength)
		assert.True(t, strings.HasSuffix(quoted, "…"))
		assert.False(t, strings.HasSuffix(strings.TrimSuffix(quoted, "…"), " "))
	}
}

func TestBuildPreview_ExactLengthNotTruncated(t *testing.T) {
	text := strings.Repeat("я", textdiff.DefaultMaxLength)
	preview := textdiff.BuildPreview([]textdiff.Segment{{Kind: textdiff.Equal, Text: text}})
	assert.Equal(t, "Match: «"+text+"»", preview)
}

func TestBuildPreview_RealDiffBounds(t *testing.T) {
	a := strings.Repeat("Common opening sentence shared by both. ", 20) + "Only in source."
	b := strings.Repeat("Common opening sentence shared by both. ", 20) + "Only in target!"

	preview := textdiff.BuildPreview(textdiff.Segments(a, b))
	lines := strings.Split(preview, "\n")
	assert.LessOrEqual(t, len(lines), textdiff.DefaultMaxLines)
	assert.Contains(t, lines[0], "Match: «Common opening sentence")
}

func TestPreviewer_Labels(t *testing.T) {
	p := textdiff.NewPreviewer()
	p.Labels = textdiff.LabelsFor("ru")

	assert.Equal(t, "Совпадение: «общий текст»",
		p.Build([]textdiff.Segment{{Kind: textdiff.Equal, Text: "общий текст"}}))
	assert.Equal(t, "Удалено: «а»\nДобавлено: «б»",
		p.Build([]textdiff.Segment{{Kind: textdiff.Removed, Text: "а"}, {Kind: textdiff.Added, Text: "б"}}))

	assert.Equal(t, textdiff.EnglishLabels, textdiff.LabelsFor("de"))
	assert.Equal(t, "Match: «x»", textdiff.Previewer{}.Build([]textdiff.Segment{{Kind: textdiff.Equal, Text: "x"}}))
}

func TestPreviewer_PartialLabels(t *testing.T) {
	p := textdiff.Previewer{Labels: textdiff.Labels{Match: "Shared"}}

	assert.Equal(t, "Shared: «x»", p.Build([]textdiff.Segment{{Kind: textdiff.Equal, Text: "x"}}))
	assert.Equal(t, "Removed: «a»\nAdded: «b»",
		p.Build([]textdiff.Segment{{Kind: textdiff.Removed, Text: "a"}, {Kind: textdiff.Added, Text: "b"}}))

	merged := textdiff.Labels{Added: "Neu"}.WithDefaults(textdiff.RussianLabels)
	assert.Equal(t, textdiff.Labels{Match: "Совпадение", Added: "Neu", Removed: "Удалено"}, merged)
}

func TestPreviewer_CustomLimits(t *testing.T) {
	p := textdiff.Previewer{MaxLines: 1, MaxLength: 5, Labels: textdiff.EnglishLabels}
	preview := p.Build([]textdiff.Segment{
		{Kind: textdiff.Equal, Text: "abcdefgh"},
		{Kind: textdiff.Equal, Text: "second"},
	})
	assert.Equal(t, "Match: «abcd…»", preview)
}
