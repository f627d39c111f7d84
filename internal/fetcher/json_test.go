package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
	City string `json:"city"`
}

func TestDecodeJSONArray(t *testing.T) {
	input := `[{"name":"Acme","city":"Mesa"},{"name":"Beta"}]`
	items, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(input), JSONOptions{}))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, item{Name: "Acme", City: "Mesa"}, items[0])
}

func TestDecodeJSONArray_WrappedObject(t *testing.T) {
	input := `{"meta":{"source":"x","n":[1,2]},"businesses":[{"name":"Acme"}]}`
	items, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(input), JSONOptions{ArrayKey: "businesses"}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme", items[0].Name)
}

func TestDecodeJSONArray_WrappedKeyMissing(t *testing.T) {
	input := `{"other":[]}`
	_, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(input), JSONOptions{ArrayKey: "businesses"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "businesses" not found`)
}

func TestDecodeJSONArray_ObjectWithoutKeyOption(t *testing.T) {
	_, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(`{"name":"x"}`), JSONOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONArray_DecodeError(t *testing.T) {
	_, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(`[{"name": 5}]`), JSONOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode element")
}

func TestDecodeJSONArray_EmptyInput(t *testing.T) {
	items, err := Collect(DecodeJSONArray[item](context.Background(), strings.NewReader(""), JSONOptions{}))
	require.NoError(t, err)
	assert.Empty(t, items)
}
