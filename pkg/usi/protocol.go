package usi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrClosed       = errors.New("engine is closed")
	ErrStdoutClosed = errors.New("engine stdout closed")
)

// EventType represents a USI protocol event type.
type EventType int

const (
	EventUnknown EventType = iota
	EventID
	EventOption
	EventUSIOK
	EventReadyOK
	EventInfo
	EventBestMove
)

// Event is a parsed USI protocol line.
type Event struct {
	Type   EventType
	Key    string
	Value  string
	Move   string
	Ponder string
	Raw    string
}

// ParseLine converts a raw line into a protocol event.
func ParseLine(line string) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, errors.New("empty line")
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "id":
		if len(fields) < 3 {
			return Event{}, fmt.Errorf("invalid id: %q", line)
		}
		return Event{Type: EventID, Key: fields[1], Value: strings.Join(fields[2:], " ")}, nil
	case "option":
		e := Event{Type: EventOption, Raw: line}
		if len(fields) >= 3 && fields[1] == "name" {
			e.Key = fields[2]
		}
		return e, nil
	case "usiok":
		return Event{Type: EventUSIOK}, nil
	case "readyok":
		return Event{Type: EventReadyOK}, nil
	case "bestmove":
		if len(fields) < 2 {
			return Event{}, fmt.Errorf("invalid bestmove: %q", line)
		}
		e := Event{Type: EventBestMove, Move: fields[1]}
		if len(fields) >= 4 && fields[2] == "ponder" {
			e.Ponder = fields[3]
		}
		return e, nil
	case "info":
		return Event{Type: EventInfo, Raw: line}, nil
	default:
		return Event{Type: EventUnknown, Raw: line}, nil
	}
}

// Score is a USI evaluation from the point of view of the side to move.
type Score struct {
	Kind  string
	Value int
}

func (s Score) String() string {
	switch s.Kind {
	case "cp":
		return fmt.Sprintf("cp %d", s.Value)
	case "mate":
		return fmt.Sprintf("mate %d", s.Value)
	default:
		return "unknown"
	}
}

// Flip returns the score from the other side's point of view.
func (s Score) Flip() Score {
	s.Value = -s.Value
	return s
}

// parseInfoScore reads "score cp N" or "score mate N". A bare "mate +" or
// "mate -" is a mate of unknown length and maps to 1 or -1.
func parseInfoScore(line string) (Score, bool) {
	fields := strings.Fields(line)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] != "score" {
			continue
		}
		kind := fields[i+1]
		if kind != "cp" && kind != "mate" {
			return Score{}, false
		}
		raw := fields[i+2]
		if kind == "mate" && (raw == "+" || raw == "-") {
			raw += "1"
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Score{}, false
		}
		return Score{Kind: kind, Value: value}, true
	}
	return Score{}, false
}
