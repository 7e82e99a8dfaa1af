package fs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
)

func TestSerializers(t *testing.T) {
	created := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	doc := core.Document{
		ID:        "r1",
		Name:      "Отчёт по практике",
		Content:   "Первая строка\nВторая строка",
		CreatedAt: created,
		Metadata: core.Metadata{
			core.MetaCloudLink:    "https://disk.yandex.ru/d/abc",
			core.MetaAddedToCloud: true,
			core.MetaPages:        3,
		},
	}

	for ext, s := range DefaultSerializers() {
		t.Run(ext, func(t *testing.T) {
			data, err := s.Serialize(doc)
			require.NoError(t, err)

			parsed, err := s.Parse(strings.NewReader(string(data)))
			require.NoError(t, err)

			assert.Equal(t, doc.Name, parsed.Name)
			assert.Equal(t, doc.Content, parsed.Content)
			assert.True(t, doc.CreatedAt.Equal(parsed.CreatedAt))
			assert.Equal(t, doc.CloudLink(), parsed.CloudLink())
			assert.True(t, parsed.AddedToCloud())
			assert.EqualValues(t, 3, parsed.Metadata[core.MetaPages])
		})
	}
}

func TestMarkdownSerializer_Parse(t *testing.T) {
	s := NewMarkdownSerializer()

	t.Run("Plain Body", func(t *testing.T) {
		doc, err := s.Parse(strings.NewReader("just text"))
		require.NoError(t, err)
		assert.Equal(t, "just text", doc.Content)
		assert.Empty(t, doc.Name)
	})

	t.Run("CRLF Line Endings", func(t *testing.T) {
		doc, err := s.Parse(strings.NewReader("---\r\nname: Report\r\n---\r\nbody\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "Report", doc.Name)
		assert.Equal(t, "body\r\n", doc.Content)
	})

	t.Run("CRLF Body Round Trip", func(t *testing.T) {
		in := core.Document{Name: "Win", Content: "line one\r\nline two\r\n\r\n---\r\nafter rule"}
		data, err := s.Serialize(in)
		require.NoError(t, err)

		doc, err := s.Parse(strings.NewReader(string(data)))
		require.NoError(t, err)
		assert.Equal(t, "Win", doc.Name)
		assert.Equal(t, in.Content, doc.Content)
	})

	t.Run("Empty Frontmatter", func(t *testing.T) {
		doc, err := s.Parse(strings.NewReader("---\n---\nbody"))
		require.NoError(t, err)
		assert.Equal(t, "body", doc.Content)
	})

	t.Run("Unterminated Frontmatter", func(t *testing.T) {
		_, err := s.Parse(strings.NewReader("---\nname: x\nbody"))
		assert.Error(t, err)
	})

	t.Run("Reserved Keys Stay Out Of Metadata", func(t *testing.T) {
		doc, err := s.Parse(strings.NewReader("---\nid: ignored\nname: N\ncreated_at: 2024-01-02T03:04:05Z\nsource: scan\n---\ntext"))
		require.NoError(t, err)
		assert.Equal(t, "N", doc.Name)
		assert.Equal(t, "scan", doc.Metadata["source"])
		assert.NotContains(t, doc.Metadata, "id")
		assert.NotContains(t, doc.Metadata, "name")
		assert.NotContains(t, doc.Metadata, "created_at")
	})
}
