package pipeline

import "fmt"

// Tag names a reorder buffer slot. While an instruction is in flight its tag
// stands in for the value it will produce.
type Tag uint8

// Producer is an optional Tag. The zero value means the value is already
// architectural and no in-flight instruction will produce it.
type Producer struct {
	tag   Tag
	valid bool
}

// NoProducer marks a value that is not waiting on anything.
var NoProducer = Producer{}

// ProducedBy returns a Producer that waits on tag.
func ProducedBy(tag Tag) Producer {
	return Producer{tag: tag, valid: true}
}

// Get returns the tag and whether there is one.
func (p Producer) Get() (Tag, bool) {
	return p.tag, p.valid
}

// Pending reports whether the value is still being produced.
func (p Producer) Pending() bool {
	return p.valid
}

func (p Producer) String() string {
	if !p.valid {
		return "free"
	}
	return fmt.Sprintf("#%d", p.tag)
}

// Operand is a source value that may still be waiting on a producer.
type Operand struct {
	Value uint32
	Src   Producer
}

// Ready returns an operand holding v.
func Ready(v uint32) Operand {
	return Operand{Value: v}
}

// Waiting returns an operand that resolves when tag broadcasts.
func Waiting(tag Tag) Operand {
	return Operand{Src: ProducedBy(tag)}
}

// Resolved reports whether the operand holds its final value.
func (o Operand) Resolved() bool {
	return !o.Src.valid
}

// Snoop captures the value in m if the operand is waiting on m.Tag.
// It reports whether the operand was resolved by m.
func (o *Operand) Snoop(m Message) bool {
	if tag, ok := o.Src.Get(); ok && tag == m.Tag {
		o.Value = m.Value
		o.Src = NoProducer
		return true
	}
	return false
}
