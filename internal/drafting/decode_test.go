package drafting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCleanJSON(t *testing.T) {
	raw := []byte(`{"summary":"Two days in town","days":[{"dayIndex":0,"narrative":"Start at the park"}]}`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Two days in town", got.Summary)
	require.Len(t, got.Days, 1)
	assert.Equal(t, "Start at the park", got.Days[0].Narrative)
}

func TestDecodeStripsCodeFence(t *testing.T) {
	raw := []byte("Here is your draft:\n```json\n{\"summary\":\"Fenced\"}\n```\nEnjoy!")
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Fenced", got.Summary)
}

func TestDecodeBalancesTruncatedObject(t *testing.T) {
	raw := []byte(`{"summary":"Cut off","days":[{"dayIndex":0,"narrative":"First day"}`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Cut off", got.Summary)
	require.Len(t, got.Days, 1)
	assert.Equal(t, "First day", got.Days[0].Narrative)
}

func TestDecodeIgnoresLeadingProse(t *testing.T) {
	raw := []byte(`Sure! Here's the itinerary you asked for: {"summary":"After prose"}`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "After prose", got.Summary)
}

func TestDecodeRepairsTrailingCommas(t *testing.T) {
	raw := []byte(`{"summary":"Commas","days":[{"dayIndex":0,"narrative":"Day one",},],}`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Commas", got.Summary)
	require.Len(t, got.Days, 1)
}

func TestDecodeSalvagesFromBrokenText(t *testing.T) {
	raw := []byte(`total garbage "summary": "Rescued" more garbage "narrative": "Day text" trailing`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Rescued", got.Summary)
	require.Len(t, got.Days, 1)
	assert.Equal(t, "Day text", got.Days[0].Narrative)
}

func TestDecodeUnquotedKeysTruncated(t *testing.T) {
	// Unquoted keys, single quotes and a mid-array cut: no layer can repair
	// this, so the caller gets the explicit malformed marker, never a panic.
	got, err := Decode([]byte(`{ items: [ {title: 'A', tags: [Nature] `))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Empty(t, got.Summary)
	assert.Empty(t, got.Days)
}

func TestDecodeUnrecoverable(t *testing.T) {
	_, err := Decode([]byte("no structure here at all"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeEscapedQuotes(t *testing.T) {
	raw := []byte(`nonsense "summary": "He said \"go\"" nonsense`)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, `He said "go"`, got.Summary)
}
