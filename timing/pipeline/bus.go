package pipeline

import "fmt"

// MessageKind tells which unit put a message on the bus.
type MessageKind uint8

const (
	// MessageExecuted is a reservation station result.
	MessageExecuted MessageKind = iota
	// MessageLoaded is a load value returned by the memory port.
	MessageLoaded
	// MessageStored marks a store whose address and data are known.
	MessageStored
	// MessageCommitted is the result retired by the reorder buffer head.
	MessageCommitted
)

func (k MessageKind) String() string {
	switch k {
	case MessageExecuted:
		return "exec"
	case MessageLoaded:
		return "load"
	case MessageStored:
		return "store"
	case MessageCommitted:
		return "commit"
	default:
		return "unknown"
	}
}

// Message is one tagged result on the broadcast bus.
type Message struct {
	Tag   Tag
	Value uint32
	Kind  MessageKind
}

func (m Message) String() string {
	return fmt.Sprintf("%s #%d=0x%08x", m.Kind, m.Tag, m.Value)
}

// Bus carries the results produced in one cycle. Completions are the
// execution results headed for the reorder buffer; Commit is the value
// retired by the reorder buffer head this cycle, if any. Every message is
// snooped by the reservation station and the load/store queue.
type Bus struct {
	Completions []Message
	Commit      Message
	HasCommit   bool
}

// Publish adds completion messages.
func (b *Bus) Publish(msgs ...Message) {
	b.Completions = append(b.Completions, msgs...)
}

// PublishCommit sets the commit message.
func (b *Bus) PublishCommit(m Message) {
	m.Kind = MessageCommitted
	b.Commit = m
	b.HasCommit = true
}

// Messages returns every message on the bus, completions first.
func (b *Bus) Messages() []Message {
	if !b.HasCommit {
		return b.Completions
	}
	msgs := make([]Message, 0, len(b.Completions)+1)
	msgs = append(msgs, b.Completions...)
	return append(msgs, b.Commit)
}

// Clear empties the bus for the next cycle.
func (b *Bus) Clear() {
	b.Completions = b.Completions[:0]
	b.Commit = Message{}
	b.HasCommit = false
}
