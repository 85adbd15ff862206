package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRoadmapJSON = `{
	"title": "Learning Go",
	"categories": [
		{
			"title": "Basics",
			"description": "Syntax and tooling",
			"topics": [{"name": "Variables", "difficulty": 0}]
		}
	]
}`

func TestDecodeRoadmapJSONPlain(t *testing.T) {
	plan, err := decodeRoadmapJSON(validRoadmapJSON)

	require.NoError(t, err)
	assert.JSONEq(t, validRoadmapJSON, string(plan))
}

func TestDecodeRoadmapJSONStripsProseAndFences(t *testing.T) {
	reply := "Here is your roadmap:\n```json\n" + validRoadmapJSON + "\n```\nEnjoy!"

	plan, err := decodeRoadmapJSON(reply)

	require.NoError(t, err)
	assert.JSONEq(t, validRoadmapJSON, string(plan))
}

func TestDecodeRoadmapJSONRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no json object", "sorry, I cannot help with that"},
		{"broken json", `{"title": "x", "categories": [`},
		{"missing title", `{"categories": [{"title": "a", "description": "b"}]}`},
		{"empty categories", `{"title": "x", "categories": []}`},
		{"category missing description", `{"title": "x", "categories": [{"title": "a"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRoadmapJSON(tc.reply)
			assert.Error(t, err)
		})
	}
}
