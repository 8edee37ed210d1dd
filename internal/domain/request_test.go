package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]int{4, 6, 8}, 6))
	assert.False(t, Contains([]int{4, 6, 8}, 5))
	assert.False(t, Contains([]string(nil), ""))
}

func TestValidEnum(t *testing.T) {
	assert.True(t, ValidEnum(Lightings, ""))
	assert.True(t, ValidEnum(Lightings, LightingNeon))
	assert.False(t, ValidEnum(Lightings, Lighting("dark")))
}
