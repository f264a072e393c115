package scancode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseBatchCode(t *testing.T) {
	b, reason := ParseBatchCode("A:12345|O:P1|Q:40|B:box0000001|C:G")
	require.Equal(t, OK, reason)
	assert.Equal(t, "12345", b.Article)
	assert.Equal(t, "P1", b.ProcessCode)
	assert.Equal(t, 40, b.Quantity)
	assert.Equal(t, "BOX0000001", b.Token)
}

func TestParseBatchCode_Malformed(t *testing.T) {
	cases := map[string]string{
		"too short":         "A:12345|O:P1|Q:40|B:BOX01|C:G",
		"missing fields":    "A:12345|O:P1|Q:40000000000000000000",
		"article not 5 dig": "A:1234X|O:P1|Q:40|B:BOX0000001|C:G",
		"article too long":  "A:123456|O:P1|Q:40|B:BOX000001|C:G",
		"empty process":     "A:12345|O:|Q:40|B:BOX00000000001|C:G",
		"quantity not int":  "A:12345|O:P1|Q:4O|B:BOX0000001|C:G",
		"negative quantity": "A:12345|O:P1|Q:-4|B:BOX0000001|C:G",
		"token not alnum":   "A:12345|O:P1|Q:40|B:BOX-000001|C:G",
		"empty token":       "A:12345|O:P1|Q:40|B:|C:GGGGGGGGGGGGG",
	}
	for name, raw := range cases {
		b, reason := ParseBatchCode(raw)
		assert.Nil(t, b, name)
		assert.Equal(t, MalformedBatch, reason, name)
	}
}

func TestValidateContainerBatch(t *testing.T) {
	rule := baseRule()

	parse := func(raw string) *BatchCode {
		b, reason := ParseBatchCode(raw)
		require.Equal(t, OK, reason, raw)
		return b
	}

	assert.Equal(t, OK, ValidateContainerBatch(parse("A:12345|O:P2|Q:40|B:BOX0000001|C:G"), rule, 40))
	assert.Equal(t, WrongArticle, ValidateContainerBatch(parse("A:54321|O:P1|Q:40|B:BOX0000001|C:G"), rule, 40))
	assert.Equal(t, WrongQuantity, ValidateContainerBatch(parse("A:12345|O:P1|Q:39|B:BOX0000001|C:G"), rule, 40))
	assert.Equal(t, WrongProcess, ValidateContainerBatch(parse("A:12345|O:P9|Q:40|B:BOX0000001|C:G"), rule, 40))
}

func TestValidatePalletBatch(t *testing.T) {
	rule := baseRule()
	rule.ContainersPerPallet = intPtr(20)
	expected := rule.PalletQuantity()
	require.Equal(t, 800, expected)

	parse := func(raw string) *BatchCode {
		b, reason := ParseBatchCode(raw)
		require.Equal(t, OK, reason, raw)
		return b
	}

	assert.Equal(t, OK, ValidatePalletBatch(parse("A:12345|O:PL|Q:800|B:AA0F3C9B12|C:G"), rule, expected))
	assert.Equal(t, WrongQuantity, ValidatePalletBatch(parse("A:12345|O:PL|Q:799|B:AA0F3C9B12|C:G"), rule, expected))
	assert.Equal(t, WrongArticle, ValidatePalletBatch(parse("A:12346|O:PL|Q:800|B:AA0F3C9B12|C:G"), rule, expected))
	// equality, not substring membership
	assert.Equal(t, WrongProcess, ValidatePalletBatch(parse("A:12345|O:PLX|Q:800|B:AA0F3C9B12|C:G"), rule, expected))
	assert.Equal(t, MalformedBatch, ValidatePalletBatch(parse("A:12345|O:PL|Q:800|B:AA0F3C9B1|C:GG"), rule, expected))
}

func TestNewPalletLabel(t *testing.T) {
	rule := baseRule()
	rule.ContainersPerPallet = intPtr(20)

	label, err := NewPalletLabel(rule, bytes.NewReader([]byte{0x0f, 0x3c, 0x9b, 0x12}))
	require.NoError(t, err)
	assert.Equal(t, "A:12345|O:PL|Q:800|B:AA0F3C9B12|C:G", label)

	// generated labels pass the pallet checks of the same rule
	b, reason := ParseBatchCode(label)
	require.Equal(t, OK, reason)
	assert.Equal(t, OK, ValidatePalletBatch(b, rule, rule.PalletQuantity()))

	random, err := NewPalletLabel(rule, nil)
	require.NoError(t, err)
	assert.Len(t, random, len(label))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewPalletLabel_Errors(t *testing.T) {
	rule := baseRule()
	_, err := NewPalletLabel(rule, nil)
	assert.Error(t, err)

	rule.ContainersPerPallet = intPtr(20)
	_, err = NewPalletLabel(rule, failingReader{})
	assert.Error(t, err)

	rule.PalletProcessCode = ""
	_, err = NewPalletLabel(rule, nil)
	assert.Error(t, err)
}
