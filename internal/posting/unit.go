package posting

import (
	"log/slog"
	"time"
)

// State is the progress of one unit of work. It is only logged and counted.
type State string

const (
	StatePending       State = "PENDING"
	StateValidated     State = "VALIDATED"
	StateStockPosted   State = "STOCK_POSTED"
	StateAccountPosted State = "ACCOUNT_POSTED"
	StateJournalPosted State = "JOURNAL_POSTED"
	StateCommitted     State = "COMMITTED"
	StateAborted       State = "ABORTED"
)

type unit struct {
	svc     *Service
	kind    string
	subtype string
	state   State
	reached State
	started time.Time
}

func (s *Service) begin(kind, subtype string) *unit {
	return &unit{svc: s, kind: kind, subtype: subtype, state: StatePending, reached: StatePending, started: time.Now()}
}

// restart resets the state at the top of each transaction attempt.
func (u *unit) restart() {
	u.state = StatePending
}

func (u *unit) advance(s State) {
	u.state = s
	u.reached = s
}

func (u *unit) commit() {
	u.state = StateCommitted
	u.observe("committed")
	u.svc.logger.Debug("posting committed",
		slog.String("kind", u.kind),
		slog.String("type", u.subtype),
		slog.Duration("elapsed", time.Since(u.started)))
}

// fail marks the unit aborted and returns err unchanged.
func (u *unit) fail(err error) error {
	last := u.state
	u.state = StateAborted
	attrs := []any{
		slog.String("kind", u.kind),
		slog.String("type", u.subtype),
		slog.String("state", string(last)),
		slog.Any("error", err),
	}
	if IsBusinessError(err) {
		u.observe("rejected")
		u.svc.logger.Info("posting rejected", attrs...)
	} else {
		u.observe("aborted")
		u.svc.logger.Error("posting aborted", attrs...)
	}
	return err
}

func (u *unit) observe(outcome string) {
	if u.svc.metrics == nil {
		return
	}
	u.svc.metrics.ObservePosting(u.kind, outcome, time.Since(u.started))
}
