package sn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, uint32(0), Num(5).Distance(5, Width12))
	assert.Equal(t, uint32(1), Num(6).Distance(5, Width12))
	assert.Equal(t, uint32(4095), Num(4094).Distance(4095, Width12))
	assert.Equal(t, uint32(1), Num(0).Distance(4095, Width12))
}

func TestLessThan(t *testing.T) {
	assert.True(t, Num(5).LessThan(6, 5, Width12))
	assert.False(t, Num(6).LessThan(5, 5, Width12))
	assert.False(t, Num(5).LessThan(5, 5, Width12))

	// wraparound: base 4094, window extends past the 12-bit modulus
	assert.True(t, Num(4094).LessThan(0, 4094, Width12))
	assert.True(t, Num(0).LessThan(1, 4094, Width12))
}

func TestInWindow(t *testing.T) {
	w := Width12
	size := w.WindowSize()

	assert.True(t, Num(10).InWindow(10, size, w))
	assert.True(t, Num(10+size-1).InWindow(10, size, w))
	assert.False(t, Num(10+size).InWindow(10, size, w))

	// wraparound base near the top of the modulus
	base := Num(w.Modulus() - 1)
	assert.True(t, base.InWindow(base, size, w))
	assert.True(t, Num(0).InWindow(base, size, w))
}

func TestAdd(t *testing.T) {
	assert.Equal(t, Num(0), Num(4095).Add(1, Width12))
	assert.Equal(t, Num(5), Num(0).Add(5, Width12))
}

func TestWindowSizeAndModulus(t *testing.T) {
	assert.Equal(t, uint32(1024), Width10.Modulus())
	assert.Equal(t, uint32(512), Width10.WindowSize())
	assert.Equal(t, uint32(4096), Width12.Modulus())
	assert.Equal(t, uint32(2048), Width12.WindowSize())
	assert.Equal(t, uint32(262144), Width18.Modulus())
	assert.Equal(t, uint32(131072), Width18.WindowSize())
}

func TestValid(t *testing.T) {
	assert.True(t, Width10.Valid())
	assert.True(t, Width12.Valid())
	assert.True(t, Width18.Valid())
	assert.False(t, Width(11).Valid())
}
