package canon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS(t *testing.T) {
	tts := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sorted_keys",
			in:   `{"b": 2, "a": 1}`,
			want: `{"a":1,"b":2}`,
		},
		{
			name: "nested",
			in:   `{"z": {"y": [1, 2], "x": "s"}, "a": null}`,
			want: `{"a":null,"z":{"x":"s","y":[1,2]}}`,
		},
		{
			name: "whitespace_stripped",
			in:   "{\n  \"k\" : true\n}",
			want: `{"k":true}`,
		},
		{
			name: "integral_float_normalized",
			in:   `{"n": 1.0}`,
			want: `{"n":1}`,
		},
		{
			name: "string_escapes",
			in:   `{"s": "line\nbreak"}`,
			want: `{"s":"line\nbreak"}`,
		},
		{
			name: "unicode_left_unescaped",
			in:   `{"s": "é"}`,
			want: "{\"s\":\"é\"}",
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JCS(context.Background(), tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJCSDeterminism(t *testing.T) {
	in := `{"credentialSubject": {"degree": {"name": "Bachelor", "type": "ExampleDegree"}, "id": "did:example:abcdef"}, "issuer": "https://university.example/issuers/565049"}`

	first, err := JCS(context.Background(), in, nil)
	require.NoError(t, err)

	second, err := JCS(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestJCSRejectsInvalidJSON(t *testing.T) {
	_, err := JCS(context.Background(), `{"broken`, nil)
	assert.Error(t, err)
}

func TestCachedResolver(t *testing.T) {
	calls := 0
	inner := func(iri string) (any, error) {
		calls++
		return map[string]any{"@context": map[string]any{}}, nil
	}

	r := NewCachedResolver(inner, 0)
	defer r.Stop()

	_, err := r.Resolve("https://www.w3.org/ns/credentials/v2")
	require.NoError(t, err)
	_, err = r.Resolve("https://www.w3.org/ns/credentials/v2")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
