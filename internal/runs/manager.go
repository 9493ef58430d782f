package runs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/tmarkou/agora/internal/bus"
	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/secrets"
	"github.com/tmarkou/agora/internal/store"
)

// StartCommand is published on a run's control topic to hand the execution
// engine a fully resolved team and the task to run.
type StartCommand struct {
	Command string              `json:"command"`
	Team    *schema.TeamConfig  `json:"team"`
	Task    schema.AgentMessage `json:"task"`
}

type StopCommand struct {
	Command string `json:"command"`
}

// Manager owns the lifecycle of runs. It persists state transitions, relays
// frames between the bus and websocket consumers, and never executes agents
// itself.
type Manager struct {
	store    *store.Store
	client   *bus.Client
	resolver *secrets.Resolver
	log      *slog.Logger
	maxDepth int

	mu       sync.Mutex
	subs     map[string]*nats.Subscription
	notifier func(runID string, f *schema.Frame)
}

func NewManager(s *store.Store, c *bus.Client, r *secrets.Resolver, maxDepth int, log *slog.Logger) *Manager {
	if maxDepth <= 0 {
		maxDepth = schema.DefaultMaxDepth
	}
	return &Manager{
		store:    s,
		client:   c,
		resolver: r,
		log:      log,
		maxDepth: maxDepth,
		subs:     make(map[string]*nats.Subscription),
	}
}

// SetNotifier registers the callback invoked for every frame accepted on a
// run's event topic. The websocket layer uses this to fan frames out.
func (m *Manager) SetNotifier(fn func(runID string, f *schema.Frame)) {
	m.mu.Lock()
	m.notifier = fn
	m.mu.Unlock()
}

func (m *Manager) notify(runID string, f *schema.Frame) {
	m.mu.Lock()
	fn := m.notifier
	m.mu.Unlock()
	if fn != nil {
		fn(runID, f)
	}
}

// Submit creates a run for the session's team, moves it to active and hands
// the resolved team config to the execution engine over the bus. The team
// config is validated before any state is created.
func (m *Manager) Submit(sessionID, userID string, task schema.AgentMessage) (*store.Run, error) {
	if err := schema.ValidateMessage(task); err != nil {
		return nil, err
	}

	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	if sess.TeamID == nil {
		return nil, fmt.Errorf("session %s has no team", sessionID)
	}

	team, err := m.store.GetTeam(*sess.TeamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("unknown team %s", *sess.TeamID)
	}
	if err := schema.ValidateTeamDepth(team.Config, m.maxDepth); err != nil {
		return nil, err
	}

	resolved, err := m.resolver.ResolveTeam(team.Config)
	if err != nil {
		return nil, err
	}

	run := &store.Run{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Task:      task,
	}
	if err := m.store.SaveRun(run); err != nil {
		return nil, err
	}

	next, err := schema.Transition(run.Status, schema.EventStart)
	if err != nil {
		return nil, err
	}
	run.Status = next
	if err := m.store.UpdateRun(run); err != nil {
		return nil, err
	}

	if err := m.subscribe(run.ID); err != nil {
		return nil, err
	}

	cmd := StartCommand{Command: "start", Team: resolved, Task: task}
	if err := m.client.PublishJSON(bus.TopicRunControl(run.ID), cmd); err != nil {
		return nil, fmt.Errorf("publish start: %w", err)
	}

	m.log.Info("run submitted", "run", run.ID, "session", sessionID, "user", userID)

	// Persist the task as the first transcript entry.
	msg := &store.Message{RunID: run.ID, SessionID: sessionID, UserID: userID, Config: task}
	if err := m.store.SaveMessage(msg); err != nil {
		return nil, err
	}

	return run, nil
}

// ResumeOpen re-subscribes to the event topics of runs that were still in
// flight when the process last stopped, so a restarted gateway keeps
// receiving their frames.
func (m *Manager) ResumeOpen() (int, error) {
	open, err := m.store.ListOpenRuns()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, run := range open {
		if err := m.subscribe(run.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		m.log.Info("resumed run subscriptions", "runs", n)
	}
	return n, nil
}

func (m *Manager) subscribe(runID string) error {
	sub, err := m.client.Subscribe(bus.TopicRunEvents(runID), func(msg *nats.Msg) {
		if err := m.handleFrame(runID, msg.Data); err != nil {
			m.log.Error("handle frame", "run", runID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe run events: %w", err)
	}

	m.mu.Lock()
	m.subs[runID] = sub
	m.mu.Unlock()
	return nil
}

func (m *Manager) unsubscribe(runID string) {
	m.mu.Lock()
	sub, ok := m.subs[runID]
	if ok {
		delete(m.subs, runID)
	}
	m.mu.Unlock()
	if ok {
		_ = sub.Unsubscribe()
	}
}

// handleFrame applies one frame from the execution engine to the run. Every
// frame re-enters full schema validation before it can touch persisted state
// or reach a websocket consumer.
func (m *Manager) handleFrame(runID string, raw []byte) error {
	frame, err := schema.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("reject frame: %w", err)
	}

	run, err := m.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run %s", runID)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("run %s is %s, frame %s rejected", runID, run.Status, frame.Type)
	}

	switch frame.Type {
	case schema.FrameTypeMessage:
		msg, err := frame.Message()
		if err != nil {
			return err
		}
		sess, err := m.store.GetSession(run.SessionID)
		if err != nil {
			return err
		}
		userID := ""
		if sess != nil {
			userID = sess.UserID
		}
		rec := &store.Message{RunID: runID, SessionID: run.SessionID, UserID: userID, Config: msg}
		if err := m.store.SaveMessage(rec); err != nil {
			return err
		}

	case schema.FrameTypeInputRequest:
		next, err := schema.Transition(run.Status, schema.EventPauseForInput)
		if err != nil {
			return err
		}
		run.Status = next
		if err := m.store.UpdateRun(run); err != nil {
			return err
		}

	case schema.FrameTypeResult:
		// Intermediate snapshot, relayed without persisting. The engine
		// still has to agree with us about where the run stands.
		if frame.Status != "" && frame.Status != run.Status {
			return fmt.Errorf("run %s is %s, result frame claims %s", runID, run.Status, frame.Status)
		}

	case schema.FrameTypeCompletion:
		if err := m.finalize(run, frame); err != nil {
			return err
		}

	case schema.FrameTypeError:
		outcome := frame.Status
		if !outcome.Terminal() {
			outcome = schema.RunStatusError
		}
		next, err := schema.Transition(run.Status, schema.EventFinish(outcome))
		if err != nil {
			return err
		}
		run.Status = next
		if next == schema.RunStatusError {
			msg := frame.Error
			run.ErrorMessage = &msg
		}
		if err := m.store.UpdateRun(run); err != nil {
			return err
		}
		m.unsubscribe(runID)
	}

	m.notify(runID, frame)
	return nil
}

func (m *Manager) finalize(run *store.Run, frame *schema.Frame) error {
	result, err := frame.TaskResult()
	if err != nil {
		return err
	}
	if err := schema.CheckCallReferences(result.Messages); err != nil {
		return fmt.Errorf("reject completion: %w", err)
	}

	outcome := frame.Status
	if !outcome.Terminal() {
		outcome = schema.RunStatusComplete
	}
	next, err := schema.Transition(run.Status, schema.EventFinish(outcome))
	if err != nil {
		return err
	}

	run.Status = next
	if next == schema.RunStatusComplete {
		run.TeamResult = &schema.TeamResult{
			TaskResult: *result,
			Usage:      schema.TotalUsage(result.Messages).Summary(),
			Duration:   time.Since(run.CreatedAt).Seconds(),
		}
	}
	if err := m.store.UpdateRun(run); err != nil {
		return err
	}

	m.unsubscribe(run.ID)
	m.log.Info("run finished", "run", run.ID, "status", run.Status)
	return nil
}

// ProvideInput resumes a run paused on input_request and forwards the user's
// text to the execution engine.
func (m *Manager) ProvideInput(runID, userID, content string) error {
	run, err := m.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run %s", runID)
	}

	next, err := schema.Transition(run.Status, schema.EventResume)
	if err != nil {
		return err
	}
	run.Status = next
	if err := m.store.UpdateRun(run); err != nil {
		return err
	}

	msg := schema.NewTextMessage("user", content)
	rec := &store.Message{RunID: runID, SessionID: run.SessionID, UserID: userID, Config: msg}
	if err := m.store.SaveMessage(rec); err != nil {
		return err
	}

	if err := m.client.PublishJSON(bus.TopicRunInput(runID), msg); err != nil {
		return fmt.Errorf("publish input: %w", err)
	}
	return nil
}

// Stop asks the execution engine to halt a run and records the stopped
// outcome immediately.
func (m *Manager) Stop(runID string) error {
	run, err := m.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run %s", runID)
	}

	next, err := schema.Transition(run.Status, schema.EventFinish(schema.RunStatusStopped))
	if err != nil {
		return err
	}

	if err := m.client.PublishJSON(bus.TopicRunControl(runID), StopCommand{Command: "stop"}); err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}

	run.Status = next
	if err := m.store.UpdateRun(run); err != nil {
		return err
	}
	m.unsubscribe(runID)
	m.log.Info("run stopped", "run", runID)
	return nil
}

// Close unsubscribes from all live run event topics.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*nats.Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
}
