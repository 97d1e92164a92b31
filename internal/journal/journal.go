package journal

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindClientConnected Kind = "client_connected"
	KindClientLeft      Kind = "client_left"
	KindAdminConnected  Kind = "admin_connected"
	KindAdminLeft       Kind = "admin_left"
	KindAssigned        Kind = "assigned"
)

// Entry is one audit row. The journal is write-only: nothing is replayed
// from it at startup.
type Entry struct {
	ID      uint      `gorm:"primaryKey"`
	At      time.Time `gorm:"index;not null"`
	Kind    Kind      `gorm:"size:32;not null"`
	Subject string    `gorm:"size:255;not null"` // client or admin id
	Admin   string    `gorm:"size:255"`
	Conn    string    `gorm:"size:64"`
}

func (Entry) TableName() string { return "presence_journal" }

type Recorder interface {
	Record(Entry)
}

type Nop struct{}

func (Nop) Record(Entry) {}

type Store interface {
	Save(ctx context.Context, entries []Entry) error
}

const maxBatch = 64

// Writer buffers entries and hands them to a Store from its own goroutine,
// so Record never blocks the caller. Entries are dropped when the buffer
// is full.
type Writer struct {
	ch      chan Entry
	store   Store
	log     *zap.Logger
	timeout time.Duration
	dropped func()
	now     func() time.Time
}

type Option func(*Writer)

func WithSaveTimeout(d time.Duration) Option { return func(w *Writer) { w.timeout = d } }

// WithDropHook is called once for every entry dropped on a full buffer.
func WithDropHook(fn func()) Option { return func(w *Writer) { w.dropped = fn } }

func NewWriter(store Store, buffer int, log *zap.Logger, opts ...Option) *Writer {
	w := &Writer{
		ch:      make(chan Entry, buffer),
		store:   store,
		log:     log,
		timeout: 5 * time.Second,
		dropped: func() {},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) Record(e Entry) {
	if e.At.IsZero() {
		e.At = w.now()
	}
	select {
	case w.ch <- e:
	default:
		w.dropped()
		w.log.Warn("journal buffer full, entry dropped",
			zap.String("kind", string(e.Kind)), zap.String("subject", e.Subject))
	}
}

// Run saves entries in batches until ctx is done, then flushes whatever is
// still buffered.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(w.drain(nil))
			return nil
		case e := <-w.ch:
			w.flush(w.drain([]Entry{e}))
		}
	}
}

func (w *Writer) drain(batch []Entry) []Entry {
	for len(batch) < maxBatch {
		select {
		case e := <-w.ch:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (w *Writer) flush(batch []Entry) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.Save(ctx, batch); err != nil {
		w.log.Error("journal save failed", zap.Int("entries", len(batch)), zap.Error(err))
	}
}
