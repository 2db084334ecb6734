package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu       sync.Mutex
	states   map[int][]flow.State
	resets   map[int]int
	counters map[int]flow.Counters
	removed  map[int]int
}

func newRecorder() *recorder {
	return &recorder{
		states:   make(map[int][]flow.State),
		resets:   make(map[int]int),
		counters: make(map[int]flow.Counters),
		removed:  make(map[int]int),
	}
}

func (r *recorder) Transition(index int, state flow.State, reset bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[index] = append(r.states[index], state)
	if reset {
		r.resets[index]++
		r.counters[index] = flow.Counters{}
	}
}

func (r *recorder) Add(index int, delta flow.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[index] = r.counters[index].Add(delta)
}

func (r *recorder) Remove(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed[index]++
}

func (r *recorder) last(index int) flow.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.states[index]
	if len(h) == 0 {
		return flow.StateNone
	}
	return h[len(h)-1]
}

func (r *recorder) history(index int) []flow.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flow.State(nil), r.states[index]...)
}

func (r *recorder) counted(index int) flow.Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[index]
}

func (r *recorder) removals(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed[index]
}

func setup(t *testing.T, opts Options) (*Supervisor, *enginetest.Engine, *recorder) {
	t.Helper()
	eng := enginetest.New()
	rec := newRecorder()
	if opts.RetryBase == 0 {
		opts.RetryBase = 10 * time.Millisecond
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 40 * time.Millisecond
	}
	if opts.TeardownTimeout == 0 {
		opts.TeardownTimeout = 200 * time.Millisecond
	}
	sup := New(zap.NewNop(), eng, rec, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup, eng, rec
}

func pipeline(index int, timeout time.Duration) flow.Pipeline {
	return flow.Pipeline{Index: index, Location: fmt.Sprintf("test:%d", index), Timeout: timeout}
}

func nextHandle(t *testing.T, eng *enginetest.Engine) *enginetest.Handle {
	t.Helper()
	select {
	case h := <-eng.Built():
		return h
	case <-time.After(waitFor):
		t.Fatal("no pipeline built")
		return nil
	}
}

func waitState(t *testing.T, rec *recorder, index int, want flow.State) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.last(index) == want },
		waitFor, 5*time.Millisecond, "flow %d never reached %s (history %v)", index, want, rec.history(index))
}

func TestFourFlowsStartThenPlay(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	for i := 0; i < 4; i++ {
		sup.Apply(pipeline(i, time.Minute), false)
	}
	handles := make(map[int]*enginetest.Handle)
	for i := 0; i < 4; i++ {
		h := nextHandle(t, eng)
		handles[h.Pipeline().Index] = h
	}
	for i := 0; i < 4; i++ {
		waitState(t, rec, i, flow.StateStarting)
	}
	for i, h := range handles {
		require.True(t, h.FirstMedia())
		waitState(t, rec, i, flow.StatePlaying)
		assert.Equal(t, []flow.State{flow.StateStarting, flow.StatePlaying}, rec.history(i))
	}
}

func TestWatchdogFailsStartingThenRetries(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	sup.Apply(pipeline(0, 50*time.Millisecond), false)
	first := nextHandle(t, eng)

	waitState(t, rec, 0, flow.StateFailed)
	<-first.Done()

	second := nextHandle(t, eng)
	assert.NotSame(t, first, second)
	waitState(t, rec, 0, flow.StateStarting)

	h := rec.history(0)
	require.GreaterOrEqual(t, len(h), 3)
	assert.Equal(t, []flow.State{flow.StateStarting, flow.StateFailed, flow.StateStarting}, h[:3])
	assert.Equal(t, 0, eng.Overlaps())
}

func TestRetryResetsCounters(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	sup.Apply(pipeline(0, 80*time.Millisecond), false)
	h := nextHandle(t, eng)
	require.True(t, h.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)
	require.True(t, h.Packets(100, 2, 1))
	require.Eventually(t, func() bool { return rec.counted(0).Pushed == 100 }, waitFor, 5*time.Millisecond)

	// no more packets: the watchdog fails the flow and the retry resets counters
	waitState(t, rec, 0, flow.StateFailed)
	nextHandle(t, eng)
	waitState(t, rec, 0, flow.StateStarting)
	assert.Equal(t, flow.Counters{}, rec.counted(0))
}

func TestPacketsKeepPlayingFlowAlive(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	sup.Apply(pipeline(0, 100*time.Millisecond), false)
	h := nextHandle(t, eng)
	require.True(t, h.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)

	for i := 0; i < 10; i++ {
		time.Sleep(25 * time.Millisecond)
		require.True(t, h.Packets(10, 0, 0))
	}
	assert.Equal(t, flow.StatePlaying, rec.last(0))
	require.Eventually(t, func() bool { return rec.counted(0).Pushed == 100 }, waitFor, 5*time.Millisecond)
}

func TestSilenceAndErrorsFail(t *testing.T) {
	sup, eng, rec := setup(t, Options{RetryBase: time.Minute, RetryMax: time.Minute})

	sup.Apply(pipeline(0, time.Minute), false)
	sup.Apply(pipeline(1, time.Minute), false)
	sup.Apply(pipeline(2, time.Minute), false)
	handles := make(map[int]*enginetest.Handle)
	for i := 0; i < 3; i++ {
		h := nextHandle(t, eng)
		handles[h.Pipeline().Index] = h
	}

	require.True(t, handles[0].FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)
	require.True(t, handles[0].Silence())
	require.True(t, handles[1].Fail("not-negotiated"))
	handles[2].Crash()

	for i := 0; i < 3; i++ {
		waitState(t, rec, i, flow.StateFailed)
	}
	<-handles[0].Done()
	<-handles[1].Done()
	assert.Eventually(t, func() bool { return handles[2].Teardowns() == 1 }, waitFor, 5*time.Millisecond)
}

func TestBuildFailureRetries(t *testing.T) {
	sup, eng, rec := setup(t, Options{})
	eng.FailBuilds(0, errors.New("no such element"))

	sup.Apply(pipeline(0, time.Minute), false)
	waitState(t, rec, 0, flow.StateFailed)

	eng.FailBuilds(0, nil)
	h := nextHandle(t, eng)
	require.True(t, h.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)
}

func TestRestartRebuildsAfterTeardown(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	p := pipeline(0, time.Minute)
	sup.Apply(p, false)
	first := nextHandle(t, eng)
	require.True(t, first.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)

	p.Location = "test:other"
	sup.Apply(p, true)
	second := nextHandle(t, eng)

	select {
	case <-first.Done():
	default:
		t.Fatal("old pipeline still live after rebuild")
	}
	assert.Equal(t, "test:other", second.Pipeline().Location)
	assert.Equal(t, 0, eng.Overlaps())
	waitState(t, rec, 0, flow.StateStarting)
}

func TestLiveUpdate(t *testing.T) {
	sup, eng, rec := setup(t, Options{})
	eng.LiveUpdates = true

	p := pipeline(0, time.Minute)
	sup.Apply(p, false)
	h := nextHandle(t, eng)
	require.True(t, h.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)

	p.OverlayText = "Lobby"
	sup.Apply(p, false)
	require.Eventually(t, func() bool { return len(h.Updates()) == 1 }, waitFor, 5*time.Millisecond)

	assert.Equal(t, "Lobby", h.Pipeline().OverlayText)
	assert.Equal(t, 1, eng.Builds(0))
	assert.Equal(t, flow.StatePlaying, rec.last(0))
}

func TestLiveUpdateUnsupportedFallsBackToRestart(t *testing.T) {
	sup, eng, _ := setup(t, Options{})

	p := pipeline(0, time.Minute)
	sup.Apply(p, false)
	first := nextHandle(t, eng)

	p.OverlayText = "Lobby"
	sup.Apply(p, false)
	second := nextHandle(t, eng)

	<-first.Done()
	assert.Equal(t, "Lobby", second.Pipeline().OverlayText)
	assert.Equal(t, 0, eng.Overlaps())
}

func TestTeardownTimeoutBlocksRebuild(t *testing.T) {
	sup, eng, rec := setup(t, Options{TeardownTimeout: 30 * time.Millisecond})

	sup.Apply(pipeline(0, time.Minute), false)
	h := nextHandle(t, eng)
	release := eng.BlockTeardown(0)

	require.True(t, h.Fail("device lost"))
	waitState(t, rec, 0, flow.StateFailed)

	// retries keep failing on the stuck teardown without building
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, eng.Builds(0))
	assert.GreaterOrEqual(t, h.Teardowns(), 2)
	assert.Equal(t, flow.StateFailed, rec.last(0))

	release()
	next := nextHandle(t, eng)
	assert.NotSame(t, h, next)
	assert.Equal(t, 0, eng.Overlaps())
}

func TestRemoveAndReapply(t *testing.T) {
	sup, eng, rec := setup(t, Options{TeardownTimeout: time.Second})

	sup.Apply(pipeline(0, time.Minute), false)
	first := nextHandle(t, eng)
	release := eng.BlockTeardown(0)

	sup.Remove(0)
	assert.False(t, sup.Running(0))
	sup.Apply(pipeline(0, time.Minute), false)
	assert.True(t, sup.Running(0))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, eng.Builds(0), "rebuilt before old teardown finished")

	release()
	nextHandle(t, eng)
	<-first.Done()
	assert.Equal(t, 0, eng.Overlaps())
	assert.Equal(t, 1, rec.removals(0))
}

func TestRemoveWaitsOutTeardownTimeout(t *testing.T) {
	sup, eng, rec := setup(t, Options{TeardownTimeout: 30 * time.Millisecond})

	sup.Apply(pipeline(0, time.Minute), false)
	first := nextHandle(t, eng)
	release := eng.BlockTeardown(0)

	sup.Remove(0)
	time.Sleep(100 * time.Millisecond)
	sup.Apply(pipeline(0, time.Minute), false)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, eng.Builds(0), "rebuilt while the old pipeline was live")
	assert.GreaterOrEqual(t, first.Teardowns(), 2)

	release()
	nextHandle(t, eng)
	<-first.Done()
	assert.Equal(t, 0, eng.Overlaps())
	require.Eventually(t, func() bool { return rec.removals(0) == 1 }, waitFor, 5*time.Millisecond)
}

func TestLiveUpdateRearmsWatchdog(t *testing.T) {
	sup, eng, rec := setup(t, Options{RetryBase: time.Minute, RetryMax: time.Minute})
	eng.LiveUpdates = true

	p := pipeline(0, time.Minute)
	sup.Apply(p, false)
	h := nextHandle(t, eng)
	require.True(t, h.FirstMedia())
	waitState(t, rec, 0, flow.StatePlaying)

	p.Timeout = 30 * time.Millisecond
	sup.Apply(p, false)
	waitState(t, rec, 0, flow.StateFailed)
	assert.Len(t, h.Updates(), 1)
}

func TestEmptyLocationRemoves(t *testing.T) {
	sup, eng, rec := setup(t, Options{})

	sup.Apply(pipeline(0, time.Minute), false)
	h := nextHandle(t, eng)

	sup.Apply(flow.Pipeline{Index: 0}, true)
	<-h.Done()
	require.Eventually(t, func() bool { return rec.removals(0) == 1 }, waitFor, 5*time.Millisecond)
	assert.False(t, sup.Running(0))
}

func TestBuildSlotsBoundConcurrency(t *testing.T) {
	sup, eng, _ := setup(t, Options{BuildSlots: 2})
	eng.BuildDelay = 20 * time.Millisecond

	for i := 0; i < 8; i++ {
		sup.Apply(pipeline(i, time.Minute), false)
	}
	for i := 0; i < 8; i++ {
		nextHandle(t, eng)
	}
	assert.LessOrEqual(t, eng.MaxConcurrentBuilds(), 2)
}

func TestShutdownTearsDownEveryFlow(t *testing.T) {
	eng := enginetest.New()
	sup := New(zap.NewNop(), eng, newRecorder(), Options{})

	var handles []*enginetest.Handle
	for i := 0; i < 3; i++ {
		sup.Apply(pipeline(i, time.Minute), false)
	}
	for i := 0; i < 3; i++ {
		handles = append(handles, nextHandle(t, eng))
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatalf("flow %d still live", h.Pipeline().Index)
		}
	}

	sup.Apply(pipeline(5, time.Minute), false)
	assert.False(t, sup.Running(5))
}
