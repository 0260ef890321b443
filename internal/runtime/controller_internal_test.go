package runtime

import (
	"context"
	"testing"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_InconsistencyAbortsActivate(t *testing.T) {
	c := NewController()
	// Corrupt the machine directly; no public path can produce this.
	c.state = domain.StateHasPayment
	c.inventory = 0

	_, err := c.Activate(context.Background())
	require.ErrorIs(t, err, domain.ErrInternalInconsistency)
	assert.Equal(t, domain.StateHasPayment, c.state)
	assert.Equal(t, 0, c.inventory)
	assert.False(t, c.inFlight.Load())
}

func TestController_ReentrantTriggerPanics(t *testing.T) {
	c := NewController()
	c.inFlight.Store(true)

	assert.PanicsWithValue(t, domain.ErrReentrantTrigger, func() {
		c.InsertPayment(context.Background())
	})
	assert.PanicsWithValue(t, domain.ErrReentrantTrigger, func() {
		_ = c.Refill(context.Background(), 1)
	})
}
