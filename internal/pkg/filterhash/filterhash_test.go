package filterhash

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIgnoresKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "flat object",
			a:    `{"role":"user","emotion":"sad","start_date":"2024-01-01"}`,
			b:    `{"start_date":"2024-01-01","emotion":"sad","role":"user"}`,
		},
		{
			name: "nested object",
			a:    `{"range":{"from":1,"to":2},"tags":["a","b"]}`,
			b:    `{"tags":["a","b"],"range":{"to":2,"from":1}}`,
		},
		{
			name: "objects inside arrays",
			a:    `{"rules":[{"k":"x","v":1},{"v":2,"k":"y"}]}`,
			b:    `{"rules":[{"v":1,"k":"x"},{"k":"y","v":2}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a, b map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.a), &a))
			require.NoError(t, json.Unmarshal([]byte(tt.b), &b))

			ha, err := Hash(a)
			require.NoError(t, err)
			hb, err := Hash(b)
			require.NoError(t, err)

			assert.Equal(t, ha, hb)
			assert.Len(t, ha, 64)
		})
	}
}

func TestHashDistinguishesValues(t *testing.T) {
	ha, err := Hash(map[string]interface{}{"emotion": "sad"})
	require.NoError(t, err)
	hb, err := Hash(map[string]interface{}{"emotion": "happy"})
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestHashArrayOrderMatters(t *testing.T) {
	ha, _ := Hash(map[string]interface{}{"roles": []string{"user", "assistant"}})
	hb, _ := Hash(map[string]interface{}{"roles": []string{"assistant", "user"}})

	assert.NotEqual(t, ha, hb)
}

func TestCanonicalStructMatchesMap(t *testing.T) {
	type filter struct {
		Role    string `json:"role,omitempty"`
		Emotion string `json:"emotion,omitempty"`
		Topic   string `json:"topic,omitempty"`
	}

	fromStruct, err := Canonical(filter{Role: "user", Emotion: "sad"})
	require.NoError(t, err)
	fromMap, err := Canonical(map[string]interface{}{"emotion": "sad", "role": "user"})
	require.NoError(t, err)

	assert.Equal(t, `{"emotion":"sad","role":"user"}`, string(fromStruct))
	assert.Equal(t, string(fromMap), string(fromStruct))
}

func TestCanonicalKeepsNumberPrecision(t *testing.T) {
	canon, err := Canonical(map[string]interface{}{"min_intensity": 0.1, "limit": 1000000000000})
	require.NoError(t, err)

	assert.Equal(t, `{"limit":1000000000000,"min_intensity":0.1}`, string(canon))
}
