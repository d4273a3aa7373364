package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/codegraph/internal/model"
)

func TestContentHashDeterministic(t *testing.T) {
	t.Parallel()

	a := model.ContentHash("fn main() {}")
	b := model.ContentHash("fn main() {}")
	assert.Equal(t, a, b)

	c := model.ContentHash("fn main() { /* v2 */ }")
	assert.NotEqual(t, a, c)
}

func TestFileIDStable(t *testing.T) {
	t.Parallel()

	a := model.FileID("go", "src/auth.go")
	b := model.FileID("go", "src/auth.go")
	assert.Equal(t, a, b)

	c := model.FileID("rust", "src/auth.go")
	assert.NotEqual(t, a, c)
}
