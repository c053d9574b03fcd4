package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
)

func boolPtr(b bool) *bool { return &b }

func TestSupervisorStartAndStopTracksRunningState(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)

	app := domain.App{
		Host:  "sleepy.local",
		Start: `sh -c "sleep 5"`,
	}
	sup.Sync([]domain.App{app})

	require.NoError(t, sup.Start("sleepy.local"))
	require.Eventually(t, func() bool { return sup.IsRunning("sleepy.local") }, time.Second, 10*time.Millisecond)

	status, ok := sup.Status("sleepy.local")
	require.True(t, ok)
	require.True(t, status.Running)
	require.NotZero(t, status.PID)

	require.NoError(t, sup.Stop("sleepy.local"))
	require.Eventually(t, func() bool { return !sup.IsRunning("sleepy.local") }, time.Second, 10*time.Millisecond)

	status, ok = sup.Status("sleepy.local")
	require.True(t, ok)
	require.False(t, status.Running)
}

func TestSupervisorCapturesLogLines(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)

	app := domain.App{
		Host:  "echoer.local",
		Start: `sh -c "echo hello; echo world"`,
	}
	sup.Sync([]domain.App{app})
	require.NoError(t, sup.Start("echoer.local"))

	require.Eventually(t, func() bool {
		return len(sup.Logs("echoer.local", 0)) >= 2
	}, time.Second, 10*time.Millisecond)

	lines := sup.Logs("echoer.local", 0)
	require.Equal(t, "hello", lines[0].Line)
	require.Equal(t, "world", lines[1].Line)
}

func TestSupervisorAutoRestartsOnNonZeroExit(t *testing.T) {
	bus := eventbus.New()
	var exits []domain.EventKind
	bus.Subscribe(domain.EventAppExit, func(e domain.Event) { exits = append(exits, e.Kind) })

	sup := New(bus)
	app := domain.App{
		Host:        "flaky.local",
		Start:       `sh -c "exit 1"`,
		AutoRestart: boolPtr(true),
	}
	sup.Sync([]domain.App{app})
	require.NoError(t, sup.Start("flaky.local"))

	require.Eventually(t, func() bool {
		status, _ := sup.Status("flaky.local")
		return status.RestartCount >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSupervisorManualStopDoesNotAutoRestart(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)
	app := domain.App{
		Host:        "manual.local",
		Start:       `sh -c "sleep 5"`,
		AutoRestart: boolPtr(true),
	}
	sup.Sync([]domain.App{app})
	require.NoError(t, sup.Start("manual.local"))
	require.Eventually(t, func() bool { return sup.IsRunning("manual.local") }, time.Second, 10*time.Millisecond)

	require.NoError(t, sup.Stop("manual.local"))
	time.Sleep(200 * time.Millisecond)

	require.False(t, sup.IsRunning("manual.local"))
	status, _ := sup.Status("manual.local")
	require.Equal(t, 0, status.RestartCount)
}

func TestStopAllStopsEveryRunningChild(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)

	appA := domain.App{Host: "a2.local", Start: `sh -c "sleep 5"`}
	appB := domain.App{Host: "b2.local", Start: `sh -c "sleep 5"`}
	sup.Sync([]domain.App{appA, appB})

	require.NoError(t, sup.Start("a2.local"))
	require.NoError(t, sup.Start("b2.local"))
	require.Eventually(t, func() bool { return sup.IsRunning("a2.local") && sup.IsRunning("b2.local") }, time.Second, 10*time.Millisecond)

	sup.StopAll()

	require.Eventually(t, func() bool { return !sup.IsRunning("a2.local") && !sup.IsRunning("b2.local") }, time.Second, 10*time.Millisecond)
}

func TestSupervisorRejectsPortConflict(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)
	port := 39123

	appA := domain.App{Host: "a.local", Start: `sh -c "sleep 5"`, Port: &port}
	appB := domain.App{Host: "b.local", Start: `sh -c "sleep 5"`, Port: &port}
	sup.Sync([]domain.App{appA, appB})

	require.NoError(t, sup.Start("a.local"))
	require.Eventually(t, func() bool { return sup.IsRunning("a.local") }, time.Second, 10*time.Millisecond)

	err := sup.Start("b.local")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPortConflict)

	require.NoError(t, sup.Stop("a.local"))
}

func TestSupervisorRemoveStopsAndForgetsChild(t *testing.T) {
	bus := eventbus.New()
	sup := New(bus)
	app := domain.App{Host: "gone.local", Start: `sh -c "sleep 5"`}
	sup.Sync([]domain.App{app})
	require.NoError(t, sup.Start("gone.local"))
	require.Eventually(t, func() bool { return sup.IsRunning("gone.local") }, time.Second, 10*time.Millisecond)

	sup.Remove("gone.local")
	_, ok := sup.Status("gone.local")
	require.False(t, ok)
}
