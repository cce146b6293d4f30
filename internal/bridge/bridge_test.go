package bridge

import "testing"

func TestSendAndPoll(t *testing.T) {
	b := New(nil)

	if _, ok := b.Poll(); ok {
		t.Fatal("empty bridge should have no commands")
	}

	if !b.Send(Command{Kind: CommandPause}) {
		t.Fatal("Send failed on empty buffer")
	}
	if !b.Send(Command{Kind: CommandSetLanguage, Arg: "ru"}) {
		t.Fatal("Send failed on second command")
	}

	cmd, ok := b.Poll()
	if !ok || cmd.Kind != CommandPause {
		t.Errorf("first poll = %+v, %v; want pause", cmd, ok)
	}
	cmd, ok = b.Poll()
	if !ok || cmd.Kind != CommandSetLanguage || cmd.Arg != "ru" {
		t.Errorf("second poll = %+v, %v; want set_language ru", cmd, ok)
	}
	if _, ok := b.Poll(); ok {
		t.Error("drained bridge should have no commands")
	}
}

func TestSendFullBuffer(t *testing.T) {
	b := New(nil)
	b.logger = nil
	b.commands = make(chan Command, 1)

	if !b.Send(Command{Kind: CommandStart}) {
		t.Fatal("first Send should succeed")
	}
	if b.Send(Command{Kind: CommandStop}) {
		t.Error("Send to full buffer should report drop")
	}
}

func TestEmitNonBlocking(t *testing.T) {
	b := New(nil)
	b.events = make(chan Event, 1)

	b.Emit("first", true)
	b.Emit("second", false)

	ev := <-b.Events()
	if ev.Message != "first" || !ev.Internal {
		t.Errorf("event = %+v, want first/internal", ev)
	}
	select {
	case ev := <-b.Events():
		t.Errorf("unexpected second event %+v", ev)
	default:
	}
}
