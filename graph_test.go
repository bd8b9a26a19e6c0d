package partstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/partstore"
)

func TestDotGraph(t *testing.T) {
	var s partstore.Store
	_, err := partstore.Insert(&s, &A{})
	require.NoError(t, err)
	_, err = partstore.Insert(&s, &B{}, partstore.As[Namer]())
	require.NoError(t, err)

	want := `digraph G {
  rankdir=TB;
  compound=true;
  subgraph cluster_entries {
    label="Start order";
    style=dashed;
    e0 [label="0: *partstore_test.A"];
    e1 [label="1: *partstore_test.B"];
  }
  e0 -> e1;
  "partstore_test.Namer" [shape=box];
  "partstore_test.Namer" -> e1 [style=dotted];
}
`
	assert.Equal(t, want, s.DotGraph())
}

func TestDotGraphEmpty(t *testing.T) {
	var s partstore.Store
	assert.Equal(t, "digraph G {\n  rankdir=TB;\n  compound=true;\n}\n", s.DotGraph())
}
