package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUID_New(t *testing.T) {
	g := UUID()

	a := g.New()
	b := g.New()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
