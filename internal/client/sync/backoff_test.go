package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_ExponentialAndCapped(t *testing.T) {
	base := time.Second
	limit := 15 * time.Second

	assert.Equal(t, 1*time.Second, backoffDelay(1, base, limit))
	assert.Equal(t, 2*time.Second, backoffDelay(2, base, limit))
	assert.Equal(t, 4*time.Second, backoffDelay(3, base, limit))
	assert.Equal(t, 8*time.Second, backoffDelay(4, base, limit))
	assert.Equal(t, 15*time.Second, backoffDelay(5, base, limit))
	assert.Equal(t, 15*time.Second, backoffDelay(10, base, limit))
}
