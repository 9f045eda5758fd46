package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{"number", `7`, "7"},
		{"string", `"note-abc"`, "note-abc"},
		{"numeric string", `"18"`, "18"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestID_UnmarshalJSON_RejectsObjects(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))
}

func TestID_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}{A: "7", B: "tmp-x", C: "007"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":"tmp-x","c":"007"}`, string(b))
}

func TestNote_DecodesBackendRow(t *testing.T) {
	raw := `{"id":8,"text":"buzz buzz","created_at":"2023-04-02T10:00:00.123456+00:00","user_id":"u-1"}`

	var n Note
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, ID("8"), n.ID)
	assert.Equal(t, "buzz buzz", n.Text)
	assert.Equal(t, 2023, n.CreatedAt.Year())
	assert.Nil(t, n.Tags)
}
