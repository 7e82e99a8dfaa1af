package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rsc.io/pdf"
)

func TestExtract_Unreadable(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.4\n%%EOF")} {
		_, _, err := Extract(data)
		assert.ErrorIs(t, err, ErrUnreadable)
	}
}

func TestPageText_Layout(t *testing.T) {
	runs := []pdf.Text{
		{S: "H", X: 10, Y: 700, W: 6, FontSize: 12},
		{S: "i", X: 16, Y: 700, W: 3, FontSize: 12},
		{S: "t", X: 25, Y: 700, W: 4, FontSize: 12},
		{S: "o", X: 29, Y: 700, W: 6, FontSize: 12},
		{S: "N", X: 10, Y: 680, W: 8, FontSize: 12},
		{S: "o", X: 18, Y: 680, W: 6, FontSize: 12},
	}
	assert.Equal(t, "Hi to\nNo", pageText(runs))
}

func TestPageText_Empty(t *testing.T) {
	assert.Equal(t, "", pageText(nil))
}

func TestExtractor_Interface(t *testing.T) {
	var e interface {
		Extract([]byte) (string, int, error)
	} = Extractor{MaxPages: 2}
	_, pages, err := e.Extract([]byte("garbage"))
	require.Error(t, err)
	assert.Zero(t, pages)
}
