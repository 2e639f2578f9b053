package conv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	kv, err := ParseKeyValues([]string{"errorCode=6", "query=a=b", "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"errorCode": "6", "query": "a=b", "empty": ""}, kv)

	_, err = ParseKeyValues([]string{"novalue"})
	require.Error(t, err)
	_, err = ParseKeyValues([]string{"=1"})
	require.Error(t, err)
}

func TestInferTypedMap(t *testing.T) {
	m := InferTypedMap(map[string]string{
		"int":    "6",
		"float":  "0.5",
		"bool":   "true",
		"quoted": `"10"`,
		"plain":  "10ms",
	})
	require.Equal(t, map[string]interface{}{
		"int":    int64(6),
		"float":  0.5,
		"bool":   true,
		"quoted": "10",
		"plain":  "10ms",
	}, m)
}
