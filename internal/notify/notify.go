// Package notify delivers best-effort events to collaborators outside the core.
// A failed delivery is logged and counted, never returned: it must not undo a ledger
// or lifecycle operation that already committed.
package notify

import (
	"context"
	"time"

	"tournament_market/internal/logger"
)

// Event kinds
const (
	KindTournamentCreated     = "tournament_created"
	KindPlayerJoined          = "player_joined"
	KindTournamentStarted     = "tournament_started"
	KindTournamentEnded       = "tournament_ended"
	KindTournamentCancelled   = "tournament_cancelled"
	KindTournamentExpired     = "tournament_expired"
	KindPrizeDistributed      = "prize_distributed"
	KindHostEarningsCollected = "host_earnings_collected"
	KindWithdrawalRequested   = "withdrawal_requested"
	KindWithdrawalDone        = "withdrawal_done"
	KindFundsReceived         = "funds_received"
)

type Event struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// TournamentID returns the tournament the event belongs to, if any.
func (e Event) TournamentID() string {
	id, _ := e.Payload["tournament_id"].(string)
	return id
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// Send builds an event and hands it to s. A nil sink drops it.
func Send(ctx context.Context, s Sink, kind string, payload map[string]any) {
	if s == nil {
		return
	}
	s.Notify(ctx, Event{Kind: kind, Payload: payload, At: time.Now().UTC()})
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, e Event) {
	logger.WithContext(ctx).Info("event", "kind", e.Kind, "payload", e.Payload)
}

// Multi fans an event out to every sink.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, e)
		}
	}
}

// Recorder keeps events in memory; used by tests and local tooling.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Notify(_ context.Context, e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Drain returns the events recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
