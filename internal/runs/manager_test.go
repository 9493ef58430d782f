package runs

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tmarkou/agora/internal/bus"
	"github.com/tmarkou/agora/internal/config"
	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/secrets"
	"github.com/tmarkou/agora/internal/store"
	"github.com/tmarkou/agora/internal/vault"
)

type testEnv struct {
	store   *store.Store
	client  *bus.Client
	manager *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	b, err := bus.New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(b.Close)

	client, err := bus.NewClient(b)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(client.Close)

	resolver := secrets.NewResolver(s, vault.New("test-passphrase"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(s, client, resolver, 0, log)
	t.Cleanup(m.Close)

	return &testEnv{store: s, client: client, manager: m}
}

func (e *testEnv) seedSession(t *testing.T) string {
	t.Helper()

	team := &store.Team{
		ID:     "team-1",
		UserID: "alice",
		Config: &schema.TeamConfig{
			ComponentType: schema.ComponentTypeTeam,
			Name:          "test_team",
			TeamType:      schema.TeamTypeRoundRobin,
			Participants: []schema.AgentConfig{
				{
					ComponentType: schema.ComponentTypeAgent,
					Name:          "assistant",
					AgentType:     schema.AgentTypeAssistant,
					ModelClient: &schema.ModelConfig{
						ComponentType: schema.ComponentTypeModel,
						Model:         "gpt-4o",
						ModelType:     schema.ModelTypeOpenAI,
					},
				},
			},
		},
	}
	if err := e.store.SaveTeam(team); err != nil {
		t.Fatalf("save team: %v", err)
	}

	teamID := team.ID
	sess := &store.Session{ID: "sess-1", UserID: "alice", Name: "chat", TeamID: &teamID}
	if err := e.store.SaveSession(sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return sess.ID
}

func TestSubmitStartsRun(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	started := make(chan StartCommand, 1)
	_, err := e.client.Subscribe("run.*.control", func(msg *nats.Msg) {
		var cmd StartCommand
		if err := json.Unmarshal(msg.Data, &cmd); err == nil && cmd.Command == "start" {
			started <- cmd
		}
	})
	if err != nil {
		t.Fatalf("subscribe control: %v", err)
	}
	e.client.Flush()

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "plan a trip"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != schema.RunStatusActive {
		t.Errorf("expected active run, got %s", run.Status)
	}

	select {
	case cmd := <-started:
		if cmd.Team == nil || cmd.Team.Name != "test_team" {
			t.Errorf("expected resolved team in start command, got %+v", cmd.Team)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for start command")
	}

	msgs, err := e.store.ListMessages(run.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected task persisted as first message, got %d", len(msgs))
	}
}

func TestSubmitRejectsInvalidTeam(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	team, err := e.store.GetTeam("team-1")
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	// Corrupt the config after loading so validator, not store, catches it.
	team.Config.Participants = nil
	if err := e.store.UpdateTeam(team); err == nil {
		t.Fatal("expected store to reject empty participants")
	}

	if _, err := e.manager.Submit(sessID, "alice", &schema.TextMessage{Type: schema.MessageTypeText}); err == nil {
		t.Fatal("expected invalid task message to be rejected")
	}
}

func TestHandleFrameMessagePersists(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var relayed []*schema.Frame
	e.manager.SetNotifier(func(runID string, f *schema.Frame) {
		relayed = append(relayed, f)
	})

	frame, err := schema.MessageFrame(schema.NewTextMessage("assistant", "hello back"))
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ := json.Marshal(frame)
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle frame: %v", err)
	}

	msgs, err := e.store.ListMessages(run.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if len(relayed) != 1 || relayed[0].Type != schema.FrameTypeMessage {
		t.Errorf("expected notifier to see the message frame")
	}
}

func TestHandleFrameRejectsMalformed(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cases := [][]byte{
		[]byte(`{"data":{}}`),
		[]byte(`{"type":"telemetry"}`),
		[]byte(`{"type":"message"}`),
		[]byte(`{"type":"message","data":{"type":"TextMessage","content":"x"}}`),
	}
	for _, raw := range cases {
		if err := e.manager.handleFrame(run.ID, raw); err == nil {
			t.Errorf("expected rejection for %s", raw)
		}
	}

	msgs, _ := e.store.ListMessages(run.ID)
	if len(msgs) != 1 {
		t.Errorf("rejected frames must not be persisted, got %d messages", len(msgs))
	}
}

func TestInputRequestPausesAndResumeDelivers(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	inputs := make(chan string, 1)
	_, err = e.client.Subscribe(bus.TopicRunInput(run.ID), func(msg *nats.Msg) {
		inputs <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe input: %v", err)
	}
	e.client.Flush()

	raw, _ := json.Marshal(schema.InputRequestFrame())
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle input_request: %v", err)
	}

	got, err := e.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != schema.RunStatusAwaitingInput {
		t.Fatalf("expected awaiting_input, got %s", got.Status)
	}

	if err := e.manager.ProvideInput(run.ID, "alice", "continue please"); err != nil {
		t.Fatalf("provide input: %v", err)
	}

	got, _ = e.store.GetRun(run.ID)
	if got.Status != schema.RunStatusActive {
		t.Errorf("expected active after resume, got %s", got.Status)
	}

	select {
	case data := <-inputs:
		var msg schema.TextMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil || msg.Content != "continue please" {
			t.Errorf("unexpected input payload %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for input delivery")
	}
}

func TestProvideInputWithoutPause(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	err = e.manager.ProvideInput(run.ID, "alice", "unsolicited")
	var ite *schema.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestCompletionFinalizesRun(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result := schema.TaskResult{
		Messages:   []schema.AgentMessage{schema.NewTextMessage("assistant", "all done")},
		StopReason: "task complete",
	}
	frame, err := schema.CompletionFrame(result, schema.RunStatusComplete)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ := json.Marshal(frame)
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	got, err := e.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != schema.RunStatusComplete {
		t.Errorf("expected complete, got %s", got.Status)
	}
	if got.TeamResult == nil || got.TeamResult.TaskResult.StopReason != "task complete" {
		t.Error("expected persisted team result")
	}

	// Terminal lock: further frames are rejected.
	raw, _ = json.Marshal(schema.InputRequestFrame())
	if err := e.manager.handleFrame(run.ID, raw); err == nil {
		t.Fatal("expected rejection after terminal state")
	}
}

func TestCompletionAggregatesUsage(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result := schema.TaskResult{
		Messages: []schema.AgentMessage{
			schema.AttachUsage(schema.NewTextMessage("assistant", "thinking"), schema.RequestUsage{PromptTokens: 10, CompletionTokens: 5}),
			schema.NewTextMessage("user", "go on"),
			schema.AttachUsage(schema.NewTextMessage("assistant", "done"), schema.RequestUsage{PromptTokens: 7, CompletionTokens: 3}),
		},
		StopReason: "task complete",
	}
	frame, err := schema.CompletionFrame(result, schema.RunStatusComplete)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ := json.Marshal(frame)
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	got, err := e.store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.TeamResult == nil {
		t.Fatal("expected team result")
	}
	want := "prompt_tokens=17 completion_tokens=8"
	if got.TeamResult.Usage != want {
		t.Errorf("expected usage %q, got %q", want, got.TeamResult.Usage)
	}
	if got.TeamResult.Duration < 0 {
		t.Errorf("expected non-negative duration, got %f", got.TeamResult.Duration)
	}
}

func TestResultFrameStatusMustMatchRun(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result := schema.TaskResult{
		Messages: []schema.AgentMessage{schema.NewTextMessage("assistant", "partial")},
	}

	stale, err := schema.ResultFrame(result, schema.RunStatusAwaitingInput)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ := json.Marshal(stale)
	if err := e.manager.handleFrame(run.ID, raw); err == nil {
		t.Fatal("expected rejection of result frame with mismatched status")
	}

	matching, err := schema.ResultFrame(result, schema.RunStatusActive)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ = json.Marshal(matching)
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle matching result frame: %v", err)
	}
}

func TestCompletionRejectsDanglingCallID(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result := schema.TaskResult{
		Messages: []schema.AgentMessage{
			schema.NewToolCallResultMessage("assistant", []schema.FunctionExecutionResult{{CallID: "call_ghost", Content: "x"}}),
		},
		StopReason: "done",
	}
	frame, err := schema.CompletionFrame(result, schema.RunStatusComplete)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	raw, _ := json.Marshal(frame)

	err = e.manager.handleFrame(run.ID, raw)
	var re *schema.ReferentialError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReferentialError, got %v", err)
	}

	got, _ := e.store.GetRun(run.ID)
	if got.Status != schema.RunStatusActive {
		t.Errorf("rejected completion must not change status, got %s", got.Status)
	}
}

func TestErrorFrameFinalizes(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	frame := schema.ErrorFrame("model quota exceeded", schema.RunStatusError)
	raw, _ := json.Marshal(frame)
	if err := e.manager.handleFrame(run.ID, raw); err != nil {
		t.Fatalf("handle error frame: %v", err)
	}

	got, _ := e.store.GetRun(run.ID)
	if got.Status != schema.RunStatusError {
		t.Errorf("expected error status, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "model quota exceeded" {
		t.Error("expected error message persisted")
	}
}

func TestResumeOpenSurvivesRestart(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Simulate a gateway restart: the original manager's subscriptions die
	// with it, a fresh one picks the run back up from the store.
	e.manager.Close()

	resolver := secrets.NewResolver(e.store, vault.New("test-passphrase"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	restarted := NewManager(e.store, e.client, resolver, 0, log)
	t.Cleanup(restarted.Close)

	n, err := restarted.ResumeOpen()
	if err != nil {
		t.Fatalf("resume open: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 resumed run, got %d", n)
	}

	frame, err := schema.MessageFrame(schema.NewTextMessage("assistant", "still here"))
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	if err := e.client.PublishJSON(bus.TopicRunEvents(run.ID), frame); err != nil {
		t.Fatalf("publish frame: %v", err)
	}
	e.client.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := e.store.ListMessages(run.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(msgs) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("frame never persisted after restart, have %d messages", len(msgs))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStop(t *testing.T) {
	e := newTestEnv(t)
	sessID := e.seedSession(t)

	run, err := e.manager.Submit(sessID, "alice", schema.NewTextMessage("user", "hi"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := e.manager.Stop(run.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	got, _ := e.store.GetRun(run.ID)
	if got.Status != schema.RunStatusStopped {
		t.Errorf("expected stopped, got %s", got.Status)
	}

	if err := e.manager.Stop(run.ID); err == nil {
		t.Fatal("expected second stop to fail on terminal run")
	}
}
