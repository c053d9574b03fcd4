package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/eventbus"
)

func TestRouterLookupIsCaseInsensitiveAndStripsPort(t *testing.T) {
	bus := eventbus.New()
	r := New(bus)
	r.Replace([]domain.App{{Host: "App.Example.com"}})

	a, ok := r.Lookup("app.example.com:8443")
	require.True(t, ok)
	require.Equal(t, "App.Example.com", a.Host)

	_, ok = r.Lookup("other.example.com")
	require.False(t, ok)
}

func TestRouterRespondsToAppAddedEvent(t *testing.T) {
	bus := eventbus.New()
	r := New(bus)

	bus.Publish(domain.Event{Kind: domain.EventAppAdded, Host: "new.local", Data: domain.App{Host: "new.local"}})

	_, ok := r.Lookup("new.local")
	require.True(t, ok)
}

func TestRouterRespondsToAppRemovedEvent(t *testing.T) {
	bus := eventbus.New()
	r := New(bus)
	r.Replace([]domain.App{{Host: "gone.local"}})

	bus.Publish(domain.Event{Kind: domain.EventAppRemoved, Host: "gone.local"})

	_, ok := r.Lookup("gone.local")
	require.False(t, ok)
}

func TestRouterAppsReturnsSnapshot(t *testing.T) {
	bus := eventbus.New()
	r := New(bus)
	r.Replace([]domain.App{{Host: "a.local"}, {Host: "b.local"}})

	apps := r.Apps()
	require.Len(t, apps, 2)
}
