package ledger

import (
	"io"
	"time"

	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultReviewTurnaround is returned to submitters as the expected approval time.
const DefaultReviewTurnaround = "24-48 hours"

// Ledger handles the payment lifecycle and the read views over loans.
type Ledger struct {
	storage    store.Storage
	log        logrus.FieldLogger
	now        func() time.Time
	loc        *time.Location
	turnaround string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the zone whose calendar decides what "today" is when
// lines are checked for being past due.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithReviewTurnaround sets the turnaround estimate returned on submission.
func WithReviewTurnaround(s string) Option {
	return func(l *Ledger) {
		if s != "" {
			l.turnaround = s
		}
	}
}

// NewLedger creates a new Ledger with a given Storage implementation.
// A nil logger discards log output.
func NewLedger(s store.Storage, logger logrus.FieldLogger, opts ...Option) *Ledger {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	l := &Ledger{
		storage:    s,
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
		loc:        time.UTC,
		turnaround: DefaultReviewTurnaround,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// today is midnight UTC of the current calendar date in the ledger's zone.
// Due dates are stored as UTC dates, so both sides compare as calendar days.
func (l *Ledger) today() time.Time {
	y, m, d := l.now().In(l.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Storage exposes the underlying store for read views built outside this package.
func (l *Ledger) Storage() store.Storage {
	return l.storage
}
