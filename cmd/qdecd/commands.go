package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents a side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdReadAll reads and resets every encoder.
type CmdReadAll struct {
	Source string
}

func (CmdReadAll) commandMarker()   {}
func (c CmdReadAll) String() string { return fmt.Sprintf("CmdReadAll(source=%s)", c.Source) }

// CmdReadEncoder drains one encoder on behalf of a client. The reading goes
// back through the reducer, which answers Reply.
type CmdReadEncoder struct {
	Encoder string
	Source  string
	Reply   chan ReadResult
}

func (CmdReadEncoder) commandMarker() {}
func (c CmdReadEncoder) String() string {
	return fmt.Sprintf("CmdReadEncoder(encoder=%s, source=%s)", c.Encoder, c.Source)
}

// CmdReplyReading delivers a reducer-produced read result.
type CmdReplyReading struct {
	Reply  chan ReadResult
	Result ReadResult
}

func (CmdReplyReading) commandMarker() {}
func (c CmdReplyReading) String() string {
	return fmt.Sprintf("CmdReplyReading(encoder=%s)", c.Result.Encoder)
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot.
type CmdPublishStateSnapshot struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// CmdSimStep moves a simulated encoder.
type CmdSimStep struct {
	Encoder string
	Steps   int
}

func (CmdSimStep) commandMarker() {}
func (c CmdSimStep) String() string {
	return fmt.Sprintf("CmdSimStep(encoder=%s, steps=%d)", c.Encoder, c.Steps)
}
