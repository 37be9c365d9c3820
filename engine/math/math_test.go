package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInverseOfTranslation(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	inv := m.Inverse()
	assert.True(t, m.Mul(inv).Equal(NewMat4Identity(), 1e-5))

	p := NewVec3(1, 2, 3).Transform(inv)
	assert.InDelta(t, 0, p.Length(), 1e-5)
}

func TestMulAppliesLeftFirst(t *testing.T) {
	scale := NewMat4Scale(NewVec3(2, 2, 2))
	move := NewMat4Translation(NewVec3(1, 0, 0))

	p := NewVec3(1, 0, 0).Transform(scale.Mul(move))
	assert.InDelta(t, 3.0, p.X, 1e-6)
}

func TestClipToTexture(t *testing.T) {
	m := NewMat4ClipToTexture()
	v := m.MulVec4(NewVec4(-1, 1, 0, 1))
	assert.InDelta(t, 0.0, v.X, 1e-6)
	assert.InDelta(t, 1.0, v.Y, 1e-6)
}

func TestViewportScale(t *testing.T) {
	v := NewViewport(0, 0, 0.5, 1).Scale(800, 600)
	assert.Equal(t, Viewport{X: 0, Y: 0, Width: 400, Height: 600}, v)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}
