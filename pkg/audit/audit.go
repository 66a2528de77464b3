// Package audit provides journaling of attestation protocol rounds.
//
// Engines notify one Round per executed protocol round, the journal keeps
// an append only trail of those outcomes for operators. Counters are never
// recovered from the journal: freshness state is process scoped by design.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"code.uvattest.org/golang/pkg/protocols/attest"
)

// Record is one journaled protocol round.
type Record struct {
	Id      uuid.UUID `json:"1" cbor:"1,keyasint"`
	Role    string    `json:"2" cbor:"2,keyasint"`
	Counter uint32    `json:"3" cbor:"3,keyasint"`
	Verdict string    `json:"4" cbor:"4,keyasint"`
	At      time.Time `json:"5" cbor:"5,keyasint"`
}

// Check returns an error if the Record is invalid.
func (self Record) Check() error {
	if uuid.Nil == self.Id {
		return newError("nil record Id")
	}
	if "" == self.Role {
		return newError("empty Role")
	}
	if "" == self.Verdict {
		return newError("empty Verdict")
	}
	if self.At.IsZero() {
		return newError("zero At timestamp")
	}

	return nil
}

// NewRecord converts a protocol Round into a journal Record.
func NewRecord(r attest.Round) Record {
	return Record{
		Id:      r.Id,
		Role:    string(r.Role),
		Counter: r.Counter,
		Verdict: r.Verdict.String(),
		At:      r.At,
	}
}

// Store is an append only journal of protocol rounds.
type Store interface {
	// Append journals rec. It errors if rec is invalid or the journal
	// is not reachable.
	Append(ctx context.Context, rec Record) error

	// List returns all journaled records in append order.
	List(ctx context.Context) ([]Record, error)

	// Count returns the number of journaled records.
	Count(ctx context.Context) (int, error)
}

// Journal adapts a Store into an attest.RoundFunc.
// Append failures are reported to onErr when non nil, the protocol never
// fails because its journal does.
func Journal(store Store, onErr func(error)) attest.RoundFunc {
	return func(ctx context.Context, r attest.Round) {
		err := store.Append(ctx, NewRecord(r))
		if nil != err && nil != onErr {
			onErr(err)
		}
	}
}
