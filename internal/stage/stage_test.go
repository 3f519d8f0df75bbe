package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(1))
	assert.NoError(t, Validate(8))
	assert.Error(t, Validate(0))
	assert.Error(t, Validate(9))
	assert.Error(t, Validate(-3))
}

func TestNamesFallback(t *testing.T) {
	names := Names{1: "Purchase Order", 2: "Proforma Invoice"}

	assert.Equal(t, "Purchase Order", names.Name(1))
	assert.Equal(t, "Stage 5", names.Name(5))
	assert.Equal(t, "Stage 3", Names(nil).Name(3))
}

func TestTransitionText(t *testing.T) {
	names := Names{1: "Purchase Order", 2: "Proforma Invoice"}

	assert.Equal(t, "Purchase Order → Proforma Invoice", TransitionText(names, 1, 2))
	assert.Equal(t, "Proforma Invoice → Purchase Order", TransitionText(names, 2, 1))
	assert.Equal(t, "Stage 4 → Stage 4", TransitionText(names, 4, 4))
}
