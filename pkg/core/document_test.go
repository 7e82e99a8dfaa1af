package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/verbatim/pkg/core"
)

func TestFormatSimilarity(t *testing.T) {
	assert.Equal(t, "-", core.FormatSimilarity(nil))

	score := 87.456
	assert.Equal(t, "87.46", core.FormatSimilarity(&score))

	zero := 0.0
	assert.Equal(t, "0.00", core.FormatSimilarity(&zero))
}
