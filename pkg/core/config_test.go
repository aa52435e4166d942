package core

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/go-drift/flowstate/pkg/metrics"
)

func TestMergeRightmostWins(t *testing.T) {
	loop := NewLoopDispatcher()
	defer loop.Dispose()
	logger := zerolog.Nop()

	left := Config{Name: "left", Dispatcher: Immediate(), FailurePolicy: FailCancel, Logger: &logger}
	right := Config{Name: "right", Dispatcher: loop}

	merged := Merge(left, right)
	assert.Equal(t, "right", merged.Name)
	assert.Same(t, loop, merged.Dispatcher)
	assert.Equal(t, FailCancel, merged.FailurePolicy)
	assert.Same(t, &logger, merged.Logger)
}

func TestMergeEmpty(t *testing.T) {
	assert.Equal(t, Config{}, Merge())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.NotNil(t, cfg.Dispatcher)
	assert.NotNil(t, cfg.Executor)
	assert.NotNil(t, cfg.Clock)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, metrics.Noop(), cfg.Metrics)
	assert.Nil(t, cfg.ErrorHandler)
}

func TestFailurePolicyString(t *testing.T) {
	assert.Equal(t, "report", FailReport.String())
	assert.Equal(t, "cancel", FailCancel.String())
}
