package bit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		high, low uint8
		expected  uint16
	}{
		{0xAB, 0xCD, 0xABCD},
		{0x00, 0x00, 0x0000},
		{0xFF, 0xFF, 0xFFFF},
		{0x12, 0x34, 0x1234},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Combine(tt.high, tt.low))
		assert.Equal(t, tt.high, High(tt.expected))
		assert.Equal(t, tt.low, Low(tt.expected))
	}
}

func TestIsSet(t *testing.T) {
	tests := []struct {
		value    uint8
		index    uint8
		expected bool
	}{
		{0b10101010, 0, false},
		{0b10101010, 1, true},
		{0b10101010, 2, false},
		{0b10101010, 7, true},
		{0b10101010, 8, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsSet(tt.index, tt.value), "IsSet(%d, %08b)", tt.index, tt.value)
	}
	assert.True(t, IsSet16(15, 0x8000))
	assert.False(t, IsSet16(14, 0x8000))
}

func TestSetReset(t *testing.T) {
	assert.Equal(t, uint8(0b00000100), Set(2, 0))
	assert.Equal(t, uint8(0b11111011), Reset(2, 0xFF))
	assert.Equal(t, uint8(0x81), SetTo(0, 0x80, true))
	assert.Equal(t, uint8(0x80), SetTo(0, 0x81, false))
	assert.Equal(t, uint8(1), Value(7, 0x80))
	assert.Equal(t, uint8(0), Value(6, 0x80))
	assert.Equal(t, uint8(1), Bool(true))
	assert.Equal(t, uint8(0), Bool(false))
}

func TestExtractBits(t *testing.T) {
	assert.Equal(t, uint8(0b101), ExtractBits(0b11010110, 6, 4))
	assert.Equal(t, uint8(0b11), ExtractBits(0b00000011, 1, 0))
	assert.Equal(t, uint8(0xFF), ExtractBits(0xFF, 7, 0))
}
