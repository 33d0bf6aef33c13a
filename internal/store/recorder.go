package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
)

const (
	recorderQueueSize    = 256
	recorderWriteTimeout = 2 * time.Second
)

// Recorder is a server observer that appends events to a Journal.
// Writes happen on a background goroutine so sessions never wait on the database.
type Recorder struct {
	journal Journal
	log     *zerolog.Logger

	queue     chan *Entry
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder starts a recorder writing to journal.
func NewRecorder(journal Journal, logger *zerolog.Logger) *Recorder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "journal").Logger()

	r := &Recorder{
		journal: journal,
		log:     &l,
		queue:   make(chan *Entry, recorderQueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
		if err := r.journal.Append(ctx, e); err != nil {
			r.log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("journal append failed")
		}
		cancel()
	}
}

// OnEvent maps a server event to a journal entry and queues it.
// Entries are dropped when the queue is full.
func (r *Recorder) OnEvent(ev core.Event) {
	e, ok := EntryFromEvent(ev)
	if !ok {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.log.Warn().Str("kind", string(e.Kind)).Msg("journal queue full, dropping entry")
	}
}

// Close flushes queued entries and stops the writer. It does not close the journal.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

// EntryFromEvent converts a server event into a journal entry.
// Waiting events and plain received lines are not journaled; dispatch outcomes are.
func EntryFromEvent(ev core.Event) (*Entry, bool) {
	e := &Entry{
		SessionID: ev.Session.ID,
		Remote:    ev.Session.RemoteAddr,
		CreatedAt: time.Now().UTC(),
	}

	switch ev.Kind {
	case core.EventStarted:
		e.Kind = EntryStarted
		e.Text = fmt.Sprintf("port %d", ev.Port)
	case core.EventStopped:
		e.Kind = EntryStopped
	case core.EventConnected:
		e.Kind = EntryConnected
	case core.EventDisconnected:
		e.Kind = EntryDisconnected
		if ev.Err != nil {
			e.Text = ev.Err.Error()
		}
	case core.EventNote:
		e.Kind = EntryNote
		e.Text = ev.Text
	case core.EventRoomCreated:
		e.Kind = EntryRoom
		if ev.Room != nil {
			e.Text = core.EncodeRoomInfo([]core.Room{*ev.Room})
		}
	case core.EventUnrecognized:
		e.Kind = EntryCommand
		e.Text = ev.Raw
	default:
		return nil, false
	}

	return e, true
}
