package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumbers(t *testing.T) {
	v := NumbersBetween(-5, 5)
	assert.NoError(t, v.Validate(0.0))
	assert.NoError(t, v.Validate(-5.0))
	assert.NoError(t, v.Validate(5))
	assert.Error(t, v.Validate(5.001))
	assert.Error(t, v.Validate("5"))
}

func TestInts(t *testing.T) {
	v := IntsBetween(50, 65535)
	assert.NoError(t, v.Validate(50))
	assert.NoError(t, v.Validate(65535))
	assert.Error(t, v.Validate(49))
	assert.Error(t, v.Validate(1.5))
	assert.NoError(t, v.Validate(100.0)) // integral float accepted
}

func TestEnum(t *testing.T) {
	v := OneOf("Off", "Fine", "Coarse")
	assert.NoError(t, v.Validate("Coarse"))
	assert.Error(t, v.Validate("FineCald"))
}

func TestBools(t *testing.T) {
	assert.NoError(t, Bools{}.Validate(true))
	assert.Error(t, Bools{}.Validate(1))
}

func TestStrings(t *testing.T) {
	v := Strings{MinLen: 1, MaxLen: 4}
	assert.NoError(t, v.Validate("ab"))
	assert.Error(t, v.Validate(""))
	assert.Error(t, v.Validate("abcde"))
}
