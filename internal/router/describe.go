package router

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Describe renders a raw message for the debug log, e.g.
// "NoteOn channel: 1, note: 60 (C4), velocity: 100".
func Describe(raw []byte) string {
	if len(raw) == 0 {
		return "empty message"
	}

	msg := midi.Message(raw)
	typ := msg.Type().String()
	data := raw[1:]

	ch, ok := channelOf(raw)
	if !ok {
		if len(data) > 0 {
			return fmt.Sprintf("%s data: %v", typ, data)
		}
		return typ
	}

	var channel, key, velocity uint8
	if msg.GetNoteOn(&channel, &key, &velocity) || msg.GetNoteOff(&channel, &key, &velocity) {
		return fmt.Sprintf("%s channel: %d, note: %d (%s), velocity: %d", typ, ch, key, noteName(key), velocity)
	}
	if len(data) > 0 {
		return fmt.Sprintf("%s channel: %d, data: %v", typ, ch, data)
	}
	return fmt.Sprintf("%s channel: %d", typ, ch)
}

// channelOf returns the 1-based channel of a channel voice message
// (status 0x80-0xEF).
func channelOf(raw []byte) (uint8, bool) {
	status := raw[0]
	if status < 0x80 || status > 0xEF {
		return 0, false
	}
	return status&0x0F + 1, true
}

func noteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note)/12-1)
}
