package stream

import (
	"context"
	"testing"

	"sitepulse/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	p, err := New("", "tracking-events", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), &models.TrackingEvent{SessionID: "s"}))
	p.Close()
}
