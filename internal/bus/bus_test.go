package bus

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tmarkou/agora/internal/config"
)

func TestBusStartStop(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	url := bus.ClientURL()
	if url == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0,
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe(TopicRunEvents("r1"), func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish(TopicRunEvents("r1"), []byte(`{"type":"input_request"}`)); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != `{"type":"input_request"}` {
			t.Errorf("unexpected payload '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestWildcardSubscription(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0,
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 2)
	_, err = client.Subscribe(TopicRunsAll, func(msg *nats.Msg) {
		received <- msg.Subject
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.PublishJSON(TopicRunEvents("r1"), map[string]string{"type": "message"}); err != nil {
		t.Fatalf("publish events error: %v", err)
	}
	if err := client.Publish(TopicRunControl("r2"), []byte("stop")); err != nil {
		t.Fatalf("publish control error: %v", err)
	}
	client.Flush()

	subjects := map[string]bool{}
	for range 2 {
		select {
		case subj := <-received:
			subjects[subj] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
	if !subjects["run.r1.events"] || !subjects["run.r2.control"] {
		t.Errorf("wildcard missed subjects: %v", subjects)
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicRunEvents("r1"); got != "run.r1.events" {
		t.Errorf("expected run.r1.events, got %s", got)
	}
	if got := TopicRunInput("r1"); got != "run.r1.input" {
		t.Errorf("expected run.r1.input, got %s", got)
	}
	if got := TopicRunControl("r1"); got != "run.r1.control" {
		t.Errorf("expected run.r1.control, got %s", got)
	}
}
