package linalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNorm2(t *testing.T) {
	v := []complex128{complex(3, 0), complex(0, 4)}
	assert.InDelta(t, 5, Norm2(v), 1e-9)
}

func TestNorm2Empty(t *testing.T) {
	assert.Equal(t, 0.0, Norm2(nil))
}

func TestMaxAbs(t *testing.T) {
	assert.Equal(t, 7.0, MaxAbs([]float64{1, -7, 3}))
	assert.Equal(t, 0.0, MaxAbs(nil))
}
