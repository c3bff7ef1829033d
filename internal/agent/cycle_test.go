package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/config"
	"github.com/quantumflow/cognicore/internal/events"
	"github.com/quantumflow/cognicore/internal/models"
)

func TestRunCycleFocusesOnIdleWithoutTasks(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	require.NoError(t, o.RunCycle(context.Background()))

	st := o.Status()
	assert.Equal(t, PhaseIdle, st.Cycle.Phase)
	assert.Equal(t, int64(1), st.Cycle.Ticks)
	assert.Equal(t, []string{"idle"}, st.State.Attention.Focus)
}

func TestRunCycleAttendsToHighestPriority(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	o.tasks.register(models.Task{ID: "low", Description: "tidy the wiki", Priority: 0.3, CreatedAt: t0}, t0)
	o.tasks.register(models.Task{ID: "high", Description: "restore the database", Priority: 0.9, CreatedAt: t0}, t0)
	require.NoError(t, o.RunCycle(context.Background()))

	st := o.State()
	assert.Equal(t, []string{"restore the database"}, st.Attention.Focus)
	assert.Contains(t, st.Attention.Distractions, "tidy the wiki")

	o.tasks.transition("low", StatusExecuting)
	require.NoError(t, o.RunCycle(context.Background()))
	assert.Equal(t, []string{"tidy the wiki"}, o.State().Attention.Focus, "active tasks take precedence")

	assert.Equal(t, TaskCounts{Active: 1, Queued: 1}, o.Status().Tasks)
}

func TestRunCycleReflects(t *testing.T) {
	o := newTestOrchestrator(t, func(c *config.Config) { c.Orchestrator.ReflectEvery = 2 })
	ctx := context.Background()

	_, err := o.Process(ctx, "learn the basics of accounting", nil)
	require.NoError(t, err)

	require.NoError(t, o.RunCycle(ctx))
	assert.Empty(t, o.Memory().Reflections(10))

	require.NoError(t, o.RunCycle(ctx))
	refl := o.Memory().Reflections(10)
	require.Len(t, refl, 1)
	assert.Equal(t, "task performance", refl[0].Topic)
	assert.Equal(t, 1.0, refl[0].Metrics["success_rate"])
}

func TestRunCyclePublishesTicks(t *testing.T) {
	bus := events.NewBus(100, zerolog.Nop())
	defer bus.Close()

	var (
		mu    sync.Mutex
		ticks []int64
	)
	bus.Subscribe(events.CycleTick, func(e events.Event) {
		mu.Lock()
		ticks = append(ticks, e.Data["tick"].(int64))
		mu.Unlock()
	})

	o := newTestOrchestrator(t, nil, WithBus(bus))
	for i := 0; i < 3; i++ {
		require.NoError(t, o.RunCycle(context.Background()))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{1, 2, 3}, ticks)
}

func TestStartRunsCycles(t *testing.T) {
	o := newTestOrchestrator(t, func(c *config.Config) { c.Orchestrator.CycleInterval = 5 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, o.Start(ctx))
	require.NoError(t, o.Start(ctx), "start is idempotent")

	require.Eventually(t, func() bool {
		return o.Status().Cycle.Ticks >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Close())
	ticks := o.Status().Cycle.Ticks
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, o.Status().Cycle.Ticks, "no cycles after close")
	assert.ErrorIs(t, o.Start(ctx), ErrClosed)
}
