package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
)

func TestProberReportsHealthyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New()
	p := New(bus, nil)
	p.Sync([]domain.App{{Host: "ok.local", HealthURL: srv.URL, HealthIntervalMs: 50}})
	defer p.Cancel("ok.local")

	require.Eventually(t, func() bool {
		state, ok := p.LastResult("ok.local")
		return ok && state.Healthy
	}, time.Second, 10*time.Millisecond)
}

func TestProberReportsUnhealthyOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := eventbus.New()
	p := New(bus, nil)
	p.Sync([]domain.App{{Host: "bad.local", HealthURL: srv.URL, HealthIntervalMs: 50}})
	defer p.Cancel("bad.local")

	require.Eventually(t, func() bool {
		state, ok := p.LastResult("bad.local")
		return ok && !state.Healthy && state.StatusCode == 500
	}, time.Second, 10*time.Millisecond)
}

func TestProberPublishesHealthEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New()
	received := make(chan domain.Event, 4)
	bus.Subscribe(domain.EventAppHealth, func(e domain.Event) { received <- e })

	p := New(bus, nil)
	p.Sync([]domain.App{{Host: "events.local", HealthURL: srv.URL, HealthIntervalMs: 50}})
	defer p.Cancel("events.local")

	select {
	case e := <-received:
		require.Equal(t, "events.local", e.Host)
		_, ok := e.Data.(domain.HealthState)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected a health event")
	}
}

func TestProberCancelStopsFurtherProbes(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New()
	p := New(bus, nil)
	p.Sync([]domain.App{{Host: "cancel.local", HealthURL: srv.URL, HealthIntervalMs: 30}})

	require.Eventually(t, func() bool {
		state, ok := p.LastResult("cancel.local")
		return ok && state.Healthy
	}, time.Second, 10*time.Millisecond)

	p.Cancel("cancel.local")
	_, ok := p.LastResult("cancel.local")
	require.False(t, ok)

	seenAfterCancel := count
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, seenAfterCancel, count, "no further probes after cancel")
}

func TestProberSyncRemovesAppsWithoutHealthURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New()
	p := New(bus, nil)
	p.Sync([]domain.App{{Host: "temp.local", HealthURL: srv.URL, HealthIntervalMs: 50}})

	require.Eventually(t, func() bool {
		_, ok := p.LastResult("temp.local")
		return ok
	}, time.Second, 10*time.Millisecond)

	p.Sync([]domain.App{{Host: "temp.local"}})
	_, ok := p.LastResult("temp.local")
	require.False(t, ok)
}
