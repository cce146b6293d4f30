// Package bridge is the only channel between the orchestrator
// goroutine and the outside world: commands flow in, status events
// flow out. An optional NATS connection mirrors both directions so
// remote tooling can drive the bot.
package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for the remote-control mirror.
const (
	SubjectCommand = "chatpilot.command"
	SubjectEvent   = "chatpilot.event"
)

// CommandKind enumerates the control operations the orchestrator
// accepts.
type CommandKind string

const (
	CommandStart       CommandKind = "start"
	CommandPause       CommandKind = "pause"
	CommandResume      CommandKind = "resume"
	CommandStop        CommandKind = "stop"
	CommandClearMemory CommandKind = "clear_memory"
	CommandSetLanguage CommandKind = "set_language"
	CommandReloadNicks CommandKind = "reload_nicks"
)

// Command is one inbound control operation.
type Command struct {
	Kind CommandKind `json:"kind"`
	Arg  string      `json:"arg,omitempty"`
}

// Event is one outbound status or log record. Internal events are
// operational detail; the rest are user facing.
type Event struct {
	At       time.Time `json:"at"`
	Message  string    `json:"message"`
	Internal bool      `json:"internal"`
}

// Bridge carries commands and events between goroutines. Sends never
// block; a full buffer drops the message instead.
type Bridge struct {
	commands chan Command
	events   chan Event

	conn   *nats.Conn
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bridge {
	return &Bridge{
		commands: make(chan Command, 64),
		events:   make(chan Event, 256),
		logger:   logger,
	}
}

// ConnectNATS mirrors the bridge over NATS: remote commands on
// SubjectCommand feed the command channel, emitted events are
// published on SubjectEvent. The bridge works locally without it.
func (b *Bridge) ConnectNATS(url, token string) error {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	if _, err := nc.Subscribe(SubjectCommand, func(msg *nats.Msg) {
		var cmd Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			b.logger.Warn("invalid remote command", "error", err)
			return
		}
		b.Send(cmd)
	}); err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", SubjectCommand, err)
	}

	b.conn = nc
	b.logger.Info("nats bridge connected", "url", url)
	return nil
}

// Send queues a command for the orchestrator. Returns false when the
// buffer is full.
func (b *Bridge) Send(cmd Command) bool {
	select {
	case b.commands <- cmd:
		return true
	default:
		if b.logger != nil {
			b.logger.Warn("command dropped, buffer full", "kind", cmd.Kind)
		}
		return false
	}
}

// Poll returns the next queued command without blocking.
func (b *Bridge) Poll() (Command, bool) {
	select {
	case cmd := <-b.commands:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Emit publishes a status event to local listeners and, when
// connected, to NATS. Never blocks the orchestrator.
func (b *Bridge) Emit(message string, internal bool) {
	ev := Event{At: time.Now(), Message: message, Internal: internal}

	select {
	case b.events <- ev:
	default:
	}

	if b.conn != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := b.conn.Publish(SubjectEvent, payload); err != nil && b.logger != nil {
				b.logger.Warn("event publish failed", "error", err)
			}
		}
	}
}

// Events exposes the outbound event stream for the control surface.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}
