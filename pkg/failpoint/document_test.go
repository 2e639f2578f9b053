package failpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentCopyIsDeep(t *testing.T) {
	orig := Document{
		"doc":     Document{"a": 1},
		"map":     map[string]interface{}{"b": 2},
		"list":    []interface{}{Document{"c": 3}},
		"strings": []string{"x"},
	}

	cp := orig.Copy()
	require.Equal(t, orig, cp)

	cp["doc"].(Document)["a"] = 10
	cp["map"].(map[string]interface{})["b"] = 20
	cp["list"].([]interface{})[0].(Document)["c"] = 30
	cp["strings"].([]string)[0] = "y"

	require.Equal(t, 1, orig["doc"].(Document)["a"])
	require.Equal(t, 2, orig["map"].(map[string]interface{})["b"])
	require.Equal(t, 3, orig["list"].([]interface{})[0].(Document)["c"])
	require.Equal(t, "x", orig["strings"].([]string)[0])

	require.Equal(t, Document{}, Document(nil).Copy())
}

func TestPRNGSequences(t *testing.T) {
	a, b := NewPRNG(1), NewPRNG(1)
	for i := 0; i < 100; i++ {
		v := a.NextPositiveInt32()
		require.GreaterOrEqual(t, v, int32(0))
		require.Equal(t, v, b.NextPositiveInt32())
	}

	ctx := WithRandomSeed(context.Background(), 3)
	p, ok := PRNGFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, NewPRNG(3).NextPositiveInt32(), p.NextPositiveInt32())

	_, ok = PRNGFromContext(context.Background())
	require.False(t, ok)
}
