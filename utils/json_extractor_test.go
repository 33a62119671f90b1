package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"fence without language", "```\n{\"a\":\"b\"}\n```", `{"a":"b"}`},
		{"prose around", "Here you go:\n[{\"a\":\"x]y\"}]\nHope this helps!", `[{"a":"x]y"}]`},
		{"escaped quotes", `{"q":"say \"hi\" [now]"}`, `{"q":"say \"hi\" [now]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	for _, in := range []string{"", "   ", "I cannot help with that.", "[unterminated"} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrNoJSONFound, in)
	}
}

func TestDecodeStrictJSON(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}

	var ok []item
	require.NoError(t, DecodeStrictJSON("```json\n[{\"name\":\"go\"}]\n```", &ok))
	assert.Equal(t, []item{{Name: "go"}}, ok)

	var extra []item
	err := DecodeStrictJSON(`[{"name":"go","rating":5}]`, &extra)
	assert.Error(t, err)

	var wrongShape []item
	err = DecodeStrictJSON(`{"name":"go"}`, &wrongShape)
	assert.Error(t, err)
}
