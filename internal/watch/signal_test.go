package watch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlag_SingleShotLatch(t *testing.T) {
	var f Flag

	assert.False(t, f.IsSet())

	f.Set()
	assert.True(t, f.IsSet())

	// Setting again is a no-op; the latch never resets.
	f.Set()
	assert.True(t, f.IsSet())
}

func TestContextStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := ContextStop(ctx)

	assert.False(t, stop.IsSet())

	cancel()
	assert.True(t, stop.IsSet())
}
