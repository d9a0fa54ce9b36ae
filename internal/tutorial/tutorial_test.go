package tutorial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_Bundled(t *testing.T) {
	steps := Steps()
	require.NotEmpty(t, steps)
	assert.Equal(t, "welcome", steps[0].ID)
	assert.Equal(t, "export", steps[len(steps)-1].ID)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("steps: []"))
	assert.Error(t, err)

	_, err = Parse([]byte("steps:\n  - id: a\n    title: A\n  - id: a\n    title: B\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("steps:\n  - title: no id\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("steps: ["))
	assert.Error(t, err)
}
