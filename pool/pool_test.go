package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	Value int
}

func TestPoolResetsItems(t *testing.T) {
	p := NewPool(
		func() *item { return &item{} },
		func(v *item) { v.Value = 0 },
		nil,
	)

	v := p.Get()
	require.NotNil(t, v)
	v.Value = 42
	p.Put(v, nil)
	require.Equal(t, 0, v.Value)
}
