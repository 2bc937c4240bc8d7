package usi

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Result is the outcome of one search.
type Result struct {
	Move   string
	Ponder string
	Score  Score
	Scored bool
}

// Session manages a USI engine conversation and its event stream.
type Session struct {
	// Name and Author are filled in by Handshake from the engine's id lines.
	Name   string
	Author string

	engine    *Engine
	write     func(string) error
	closer    io.Closer
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	// readErr is written before events is closed and read only after.
	readErr error
}

// StartSession launches a USI engine and starts a reader goroutine.
func StartSession(ctx context.Context, path string, args ...string) (*Session, error) {
	engine, err := Start(ctx, path, args...)
	if err != nil {
		return nil, err
	}
	s := newSession(engine.Send, engine.Reader())
	s.engine = engine
	return s, nil
}

// NewSession drives an engine that reads commands from w and answers on r,
// such as an in-process engine connected with io.Pipe. Close sends quit and
// closes w when it is an io.Closer.
func NewSession(w io.Writer, r io.Reader) *Session {
	var mu sync.Mutex
	send := func(line string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := io.WriteString(w, withNewline(line))
		return err
	}
	s := newSession(send, NewReader(r))
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func newSession(send func(string) error, reader *Reader) *Session {
	s := &Session{write: send, events: make(chan Event, 64), done: make(chan struct{})}
	go func() {
		defer close(s.events)
		for {
			event, err := reader.Next()
			if err != nil {
				s.readErr = err
				return
			}
			// After Close, output is read and dropped until EOF so the
			// engine never blocks on a full pipe.
			select {
			case s.events <- event:
			case <-s.done:
			}
		}
	}()
	return s
}

func (s *Session) send(line string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return s.write(line)
}

// Close is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.engine != nil {
			err = s.engine.Close()
			return
		}
		err = s.write("quit")
		if s.closer != nil {
			if cerr := s.closer.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// Stderr returns the engine's stderr reader for diagnostics, or nil for
// sessions not backed by a process.
func (s *Session) Stderr() io.Reader {
	if s == nil || s.engine == nil {
		return nil
	}
	return s.engine.Stderr()
}

// Handshake runs usi/usiok, applies options in key order, then waits for
// readyok.
func (s *Session) Handshake(ctx context.Context, options map[string]string) error {
	if err := s.send("usi"); err != nil {
		return err
	}
	for {
		event, err := s.nextEvent(ctx)
		if err != nil {
			return err
		}
		if event.Type == EventID {
			switch event.Key {
			case "name":
				s.Name = event.Value
			case "author":
				s.Author = event.Value
			}
		}
		if event.Type == EventUSIOK {
			break
		}
	}
	keys := maps.Keys(options)
	slices.Sort(keys)
	for _, key := range keys {
		if err := s.send(fmt.Sprintf("setoption name %s value %s", key, options[key])); err != nil {
			return err
		}
	}
	if err := s.send("isready"); err != nil {
		return err
	}
	_, err := s.waitForEvent(ctx, EventReadyOK)
	return err
}

// NewGame announces the start of a game.
func (s *Session) NewGame() error {
	return s.send("usinewgame")
}

// Search sends position and go movetime, then waits for bestmove. position
// is the argument of the USI position command, e.g. "startpos" or
// "sfen ... moves 7g7f". The score is the last one reported.
func (s *Session) Search(ctx context.Context, position string, moveTimeMs int) (Result, error) {
	if err := s.send("position " + position); err != nil {
		return Result{}, err
	}
	if moveTimeMs <= 0 {
		moveTimeMs = 1
	}
	if err := s.send(fmt.Sprintf("go movetime %d", moveTimeMs)); err != nil {
		return Result{}, err
	}
	var result Result
	for {
		event, err := s.nextEvent(ctx)
		if err != nil {
			return Result{}, err
		}
		switch event.Type {
		case EventInfo:
			if score, ok := parseInfoScore(event.Raw); ok {
				result.Score = score
				result.Scored = true
			}
		case EventBestMove:
			result.Move = event.Move
			result.Ponder = event.Ponder
			return result, nil
		}
	}
}

// BestMove is Search reduced to the move token, which may be "resign" or
// "win".
func (s *Session) BestMove(ctx context.Context, position string, moveTimeMs int) (string, error) {
	result, err := s.Search(ctx, position, moveTimeMs)
	if err != nil {
		return "", err
	}
	return result.Move, nil
}

// GameOver reports the result ("win", "lose" or "draw") to the engine.
func (s *Session) GameOver(result string) error {
	return s.send("gameover " + result)
}

func (s *Session) waitForEvent(ctx context.Context, want EventType) (Event, error) {
	for {
		event, err := s.nextEvent(ctx)
		if err != nil {
			return Event{}, err
		}
		if event.Type == want {
			return event, nil
		}
	}
}

func (s *Session) nextEvent(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-s.done:
		return Event{}, ErrClosed
	case event, ok := <-s.events:
		if !ok {
			if s.readErr != nil && s.readErr != io.EOF {
				return Event{}, s.readErr
			}
			return Event{}, ErrStdoutClosed
		}
		return event, nil
	}
}
