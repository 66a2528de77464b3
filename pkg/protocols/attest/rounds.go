package attest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Verdict classifies the decision taken about one protocol round.
type Verdict uint8

const (
	// VerdictAccept marks a round that passed freshness & authentication.
	VerdictAccept Verdict = iota

	// VerdictStaleCounter marks a request whose counter is not strictly
	// greater than the prover's stored counter.
	VerdictStaleCounter

	// VerdictBadMac marks a request or report whose MAC did not verify.
	VerdictBadMac

	// VerdictRefused marks a report whose success flag was not set.
	VerdictRefused
)

// String implements fmt.Stringer.
func (self Verdict) String() string {
	switch self {
	case VerdictAccept:
		return "Accept"
	case VerdictStaleCounter:
		return "StaleCounter"
	case VerdictBadMac:
		return "BadMac"
	case VerdictRefused:
		return "Refused"
	default:
		return "Unknown"
	}
}

// Accepted reports whether the Verdict is VerdictAccept.
func (self Verdict) Accepted() bool {
	return VerdictAccept == self
}

// Round summarizes one executed protocol round.
type Round struct {
	// Id uniquely identifies the round for tracing & journaling.
	Id uuid.UUID

	// Role is the party that produced this summary.
	Role Role

	// Counter is the request counter the round was bound to.
	Counter uint32

	// Verdict is the decision taken about the round.
	Verdict Verdict

	// At is the time the decision was taken.
	At time.Time
}

// RoundFunc receives one Round notification per executed protocol round.
// Implementations must not block the protocol, hand off long work.
type RoundFunc func(ctx context.Context, r Round)

func notifyRound(ctx context.Context, fn RoundFunc, r Round) {
	if nil != fn {
		fn(ctx, r)
	}
}

func newRound(role Role, counter uint32, verdict Verdict) Round {
	return Round{
		Id:      uuid.New(),
		Role:    role,
		Counter: counter,
		Verdict: verdict,
		At:      time.Now().UTC(),
	}
}
