package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	after := time.Now()

	assert.True(t, !got.Before(before) && !got.After(after))
}

func TestFixed(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fixed(want)

	assert.Equal(t, want, c.Now())
	assert.Equal(t, want, c.Now(), "Fixed must not advance between calls")
}

func TestMock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMock(start)

	assert.Equal(t, start, m.Now())

	m.Advance(15 * time.Minute)
	assert.Equal(t, start.Add(15*time.Minute), m.Now())

	later := start.Add(1 * time.Hour)
	m.Set(later)
	assert.Equal(t, later, m.Now())
}
