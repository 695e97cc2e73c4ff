// Package logsink is the append-only console that interpreter output is
// streamed into. A Sink owns the ordered entry sequence and mirrors it onto
// whatever display Surface the host has attached.
package logsink

import (
	"fmt"
	"time"
)

// Origin tags where an entry came from.
type Origin string

const (
	OriginStdout Origin = "stdout"
	OriginStderr Origin = "stderr"
	OriginSystem Origin = "system"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	switch o {
	case OriginStdout, OriginStderr, OriginSystem:
		return true
	}
	return false
}

// Entry is one displayed unit of console text. Text is opaque and not
// necessarily line aligned.
type Entry struct {
	Origin Origin
	Text   string
	Time   time.Time
}

// Stdout builds a stdout entry stamped with the current time.
func Stdout(text string) Entry { return Entry{Origin: OriginStdout, Text: text, Time: time.Now()} }

// Stderr builds a stderr entry stamped with the current time.
func Stderr(text string) Entry { return Entry{Origin: OriginStderr, Text: text, Time: time.Now()} }

// System builds a lifecycle notice.
func System(format string, args ...any) Entry {
	return Entry{Origin: OriginSystem, Text: fmt.Sprintf(format, args...), Time: time.Now()}
}
