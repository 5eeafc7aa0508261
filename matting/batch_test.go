package matting

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgmatte/codec"
)

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, WithConcurrency(2))
	garbage := []byte("garbage")
	inputs := [][]byte{
		productPNG(t, 20, 20),
		garbage,
		codec.FormatDataURI("image/png", productPNG(t, 12, 12)),
		productPNG(t, 16, 8),
	}

	items := p.ProcessBatch(context.Background(), inputs, false)
	require.Len(t, items, len(inputs))

	for i, item := range items {
		assert.Equal(t, i, item.Index)
		require.NotNil(t, item.Result)
	}

	assert.NoError(t, items[0].Err)
	assert.True(t, items[0].Result.Matted)

	var de *codec.DecodeError
	assert.True(t, errors.As(items[1].Err, &de))
	assert.Equal(t, garbage, items[1].Result.Data)

	assert.NoError(t, items[2].Err)
	assert.True(t, items[2].Result.DataURI)

	assert.NoError(t, items[3].Err)
	assert.Equal(t, 16, items[3].Result.Width)
	assert.Equal(t, 8, items[3].Result.Height)
}

func TestProcessBatch_Empty(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	assert.Empty(t, p.ProcessBatch(context.Background(), nil, true))
}
