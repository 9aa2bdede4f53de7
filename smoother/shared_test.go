package smoother

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDropSignalSetThenConsumeClears(t *testing.T) {
	var d DropSignal
	assert.False(t, d.Consume())
	d.Set()
	assert.True(t, d.Consume())
	assert.False(t, d.Consume())
}

func TestDurationFromSecondsNonPositiveIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), durationFromSeconds(0))
	assert.Equal(t, time.Duration(0), durationFromSeconds(-1))
	assert.Equal(t, 500*time.Millisecond, durationFromSeconds(0.5))
}
