package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SortsObjectKeys(t *testing.T) {
	out, err := Encode([]byte(`{"zebra":1,"apple":2,"mango":3}`))
	require.NoError(t, err)
	assert.Equal(t, `{"apple":2,"mango":3,"zebra":1}`, string(out))
}

func TestEncode_NestedStructures(t *testing.T) {
	out, err := Encode([]byte(`{"b":{"y":1,"x":[3,2,1]},"a":null}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":{"x":[3,2,1],"y":1}}`, string(out))
}

func TestEncode_PreservesNumberText(t *testing.T) {
	// 2^53+1 is not representable as float64; the number text must survive.
	out, err := Encode([]byte(`{"n":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(out))
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	out, err := Encode([]byte(`{"s":"a<b>&c"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"s":"a<b>&c"}`, string(out))
}

func TestEncode_StripsInsignificantWhitespace(t *testing.T) {
	out, err := Encode([]byte("{\n  \"a\": [ 1 , 2 ]\n}"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, string(out))
}

func TestEncode_InvalidJSON(t *testing.T) {
	_, err := Encode([]byte(`{"unterminated`))
	require.Error(t, err)
}

func TestEncode_TrailingData(t *testing.T) {
	_, err := Encode([]byte(`{} {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing data")
}

func TestSize_MeasuresCanonicalForm(t *testing.T) {
	// Whitespace must not count toward the measured size.
	compactSize, err := Size([]byte(`{"a":1}`))
	require.NoError(t, err)

	paddedSize, err := Size([]byte("{  \"a\" :  1  }"))
	require.NoError(t, err)

	assert.Equal(t, compactSize, paddedSize)
	assert.Equal(t, 7, compactSize)
}

func TestEqual_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	eq, err := Equal(
		[]byte(`{"a":1,"b":2}`),
		[]byte("{ \"b\": 2, \"a\": 1 }"),
	)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestEqual_DetectsValueDifference(t *testing.T) {
	eq, err := Equal([]byte(`{"a":1}`), []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestEqual_ErrorOnInvalidOperand(t *testing.T) {
	_, err := Equal([]byte(`{`), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "left operand")
}
