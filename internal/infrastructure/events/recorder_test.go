package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

func TestRecorder_KeepsMostRecent(t *testing.T) {
	r := NewRecorder(2, logger.Nop())

	require.NoError(t, r.Publish(context.Background(),
		star.Event{Type: star.EventMinted, StarID: 1},
		star.Event{Type: star.EventApproval, StarID: 1},
		star.Event{Type: star.EventTransferred, StarID: 1},
	))

	assert.Equal(t, []star.EventType{star.EventApproval, star.EventTransferred}, r.Types())
	assert.Len(t, r.Events(), 2)
}

func TestRecorder_Recent(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(0, logger.Nop())

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, r.Publish(ctx, star.Event{Type: star.EventMinted, StarID: i}))
	}

	recent, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].StarID)
	assert.Equal(t, int64(4), recent[1].StarID)

	all, err := r.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
