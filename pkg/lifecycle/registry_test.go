package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

type transitionRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *transitionRecorder) SubscriptionStarted(string) {}
func (r *transitionRecorder) SubscriptionStopped(string) {}
func (r *transitionRecorder) StoreWrite(string, error)   {}
func (r *transitionRecorder) LifecycleTransition(owner, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, owner+":"+state)
}

type misuseSink struct {
	errs []*flowerrors.FlowError
}

func (s *misuseSink) HandleError(err *flowerrors.FlowError) { s.errs = append(s.errs, err) }
func (s *misuseSink) HandlePanic(*flowerrors.PanicError)    {}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestRegistryNotifiesEveryIntermediateState(t *testing.T) {
	reg := NewRegistry()
	var log stateLog
	reg.AddObserver(log.observe)

	require.NoError(t, reg.SetState(Resumed))
	require.NoError(t, reg.SetState(Created))
	require.NoError(t, reg.SetState(Destroyed))

	assert.Equal(t, []State{
		Initialized,
		Created, Started, Resumed,
		Started, Created,
		Destroyed,
	}, log.get())
	assert.Equal(t, Destroyed, reg.CurrentState())
}

func TestRegistryAddObserverReplaysCurrentState(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.HandleEvent(OnStart))

	var log stateLog
	reg.AddObserver(log.observe)
	assert.Equal(t, []State{Started}, log.get())
}

func TestRegistrySameStateIsNoop(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.SetState(Started))
	var log stateLog
	reg.AddObserver(log.observe)
	require.NoError(t, reg.SetState(Started))
	assert.Equal(t, []State{Started}, log.get())
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	var log stateLog
	remove := reg.AddObserver(log.observe)
	other := reg.AddObserver(func(State) {})
	require.Equal(t, 2, reg.ObserverCount())

	remove()
	remove()
	assert.Equal(t, 1, reg.ObserverCount())

	require.NoError(t, reg.SetState(Created))
	assert.Equal(t, []State{Initialized}, log.get())
	other()
	assert.Zero(t, reg.ObserverCount())
}

func TestRegistryDestroyedIsTerminal(t *testing.T) {
	sink := &misuseSink{}
	reg := NewRegistry(WithName("screen"), WithErrorHandler(sink))
	require.NoError(t, reg.SetState(Destroyed))

	err := reg.SetState(Started)
	assert.ErrorIs(t, err, ErrDestroyed)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, flowerrors.KindMisuse, sink.errs[0].Kind)
	assert.Contains(t, sink.errs[0].Op, "screen")
}

func TestRegistryRejectsReturnToInitialized(t *testing.T) {
	sink := &misuseSink{}
	reg := NewRegistry(WithErrorHandler(sink))
	require.NoError(t, reg.SetState(Created))

	assert.ErrorIs(t, reg.SetState(Initialized), ErrInvalidTransition)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, flowerrors.KindLifecycle, sink.errs[0].Kind)
	assert.Equal(t, Created, reg.CurrentState())
}

func TestRegistryRecordsTransitions(t *testing.T) {
	rec := &transitionRecorder{}
	reg := NewRegistry(WithName("home"), WithMetrics(rec))
	require.NoError(t, reg.SetState(Started))
	require.NoError(t, reg.HandleEvent(OnStop))

	assert.Equal(t, []string{"home:created", "home:started", "home:created"}, rec.states)
}
