package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "Rs. 1250.00", Format(1250))
	assert.Equal(t, "Rs. 33.33", Format(33.333333))
	assert.Equal(t, "Rs. 0.00", Format(0))
	assert.Equal(t, "Rs. -50.25", Format(-50.25))
}
