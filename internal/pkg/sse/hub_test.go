package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesTopicSubscribers(t *testing.T) {
	hub := NewHub(4)
	runs, cleanupRuns := hub.Subscribe("payroll.runs")
	defer cleanupRuns()
	other, cleanupOther := hub.Subscribe("other")
	defer cleanupOther()

	hub.Publish("payroll.runs", Event{Name: "run.updated", Data: "r1"})

	select {
	case ev := <-runs:
		assert.Equal(t, "payroll.runs", ev.Topic)
		assert.Equal(t, "run.updated", ev.Name)
		assert.Equal(t, "r1", ev.Data)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	default:
	}
}

func TestHub_FullQueueDropsEvents(t *testing.T) {
	hub := NewHub(1)
	ch, cleanup := hub.Subscribe("t")
	defer cleanup()

	hub.Publish("t", Event{Name: "first"})
	hub.Publish("t", Event{Name: "second"})

	ev := <-ch
	assert.Equal(t, "first", ev.Name)
	assert.Len(t, ch, 0)
}

func TestHub_CleanupClosesAndCounts(t *testing.T) {
	hub := NewHub(0)
	ch1, cleanup1 := hub.Subscribe("t")
	_, cleanup2 := hub.Subscribe("t")
	require.Equal(t, 2, hub.SubscriberCount("t"))

	cleanup1()
	cleanup1()

	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, hub.SubscriberCount("t"))

	cleanup2()
	assert.Equal(t, 0, hub.SubscriberCount("t"))
}
