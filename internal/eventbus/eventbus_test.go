package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
)

func TestSubscribePublishAndCancel(t *testing.T) {
	b := New()

	var got []domain.Event
	cancel := b.Subscribe(domain.EventAppAdded, func(e domain.Event) {
		got = append(got, e)
	})

	b.Publish(domain.Event{Kind: domain.EventAppAdded, Host: "a.example.com"})
	require.Len(t, got, 1)
	require.Equal(t, "a.example.com", got[0].Host)
	require.NotEmpty(t, got[0].ID)
	require.WithinDuration(t, time.Now(), got[0].Timestamp, time.Second)

	cancel()
	b.Publish(domain.Event{Kind: domain.EventAppAdded, Host: "b.example.com"})
	require.Len(t, got, 1, "handler must not fire after cancel")
}

func TestPublishOnlyReachesMatchingKind(t *testing.T) {
	b := New()

	var addedCount, removedCount int
	b.Subscribe(domain.EventAppAdded, func(domain.Event) { addedCount++ })
	b.Subscribe(domain.EventAppRemoved, func(domain.Event) { removedCount++ })

	b.Publish(domain.Event{Kind: domain.EventAppAdded})
	require.Equal(t, 1, addedCount)
	require.Equal(t, 0, removedCount)
}
