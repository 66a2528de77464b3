package attest

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"io"
	"math"
	"sync"

	"code.uvattest.org/golang/internal/observability"
	"code.uvattest.org/golang/pkg/keystore"
	"code.uvattest.org/golang/pkg/protocols"
)

// VerifierCfg configures a Verifier.
type VerifierCfg struct {
	// Keys is the verifier side keystore.
	Keys *keystore.Store

	// Rand sources nonce entropy. Defaults to crypto/rand.Reader.
	Rand io.Reader

	// OnRound, when non nil, receives one Round per evaluated report.
	OnRound RoundFunc
}

// Check returns an error if the VerifierCfg is invalid.
func (self VerifierCfg) Check() error {
	if nil == self.Keys {
		return newError("nil Keys")
	}

	return nil
}

// Verifier originates attestation requests and evaluates the reports.
//
// The counter C_V starts at 0 and is strictly incremented before every
// request, it never repeats within the process lifetime. Values consumed
// by rounds that failed in flight stay consumed, the freshness invariant
// is strict inequality, not strict succession.
type Verifier struct {
	keys    *keystore.Store
	rnd     io.Reader
	onRound RoundFunc
	mut     sync.Mutex
	counter uint32
}

// NewVerifier returns a Verifier challenging with cfg.Keys material.
func NewVerifier(cfg VerifierCfg) (*Verifier, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "invalid VerifierCfg")
	}

	rnd := cfg.Rand
	if nil == rnd {
		rnd = rand.Reader
	}

	return &Verifier{keys: cfg.Keys, rnd: rnd, onRound: cfg.OnRound}, nil
}

// Counter returns the stored counter C_V.
func (self *Verifier) Counter() uint32 {
	self.mut.Lock()
	defer self.mut.Unlock()

	return self.counter
}

// NewRequest builds the next AttestationRequest.
//
// It draws a fresh 32 bytes nonce, strictly increments C_V and binds
// counter, software state & nonce under the authentication key.
// It errors with ErrCounterExhausted once C_V can no longer grow.
func (self *Verifier) NewRequest(ctx context.Context) (AttestationRequest, error) {
	log := observability.GetObservability(ctx).Log()

	var req AttestationRequest
	_, err := io.ReadFull(self.rnd, req.Nonce[:])
	if nil != err {
		return req, wrapError(err, "failed generating nonce")
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	if math.MaxUint32 == self.counter {
		return req, wrapError(ErrCounterExhausted, "after %d rounds", self.counter)
	}
	self.counter += 1

	req.Counter = self.counter
	req.State = self.keys.SoftwareState()

	kauth := self.keys.GetKey(keystore.KindAuth)
	defer kauth.Wipe()
	req.Mac = computeMac(kauth, req.Counter, req.State, req.Nonce)

	log.Debug("built attestation request", "C_V", req.Counter)

	return req, nil
}

// Result is the verifier's view of one completed round.
type Result struct {
	// Round summarizes the round for tracing & journaling.
	Round Round

	// Accepted reports the prover's success flag, the authoritative
	// accept decision of the reference protocol.
	Accepted bool

	// ReportMacValid reports whether the report MAC matches the value
	// the verifier derives independently for the round. The reference
	// protocol does not gate acceptance on it, a false value with
	// Accepted set signals a peer worth distrusting.
	ReportMacValid bool

	// Counter is the C_V value the round was bound to.
	Counter uint32
}

// EvalReport evaluates the report answering req.
//
// The accept decision is the report success flag. The report MAC is
// additionally recomputed and compared, a mismatch is surfaced through
// Result.ReportMacValid and a warning log, it does not flip the decision.
func (self *Verifier) EvalReport(ctx context.Context, req AttestationRequest, rep AttestationReport) Result {
	log := observability.GetObservability(ctx).Log()

	rv := Result{Accepted: rep.Success, Counter: req.Counter}

	if rep.Success {
		kauth := self.keys.GetKey(keystore.KindAuth)
		expected := computeMac(kauth, req.Counter, self.keys.SoftwareState(), req.Nonce)
		kauth.Wipe()
		rv.ReportMacValid = hmac.Equal(expected[:], rep.Mac[:])

		rv.Round = newRound(RoleVerifier, req.Counter, VerdictAccept)
		if !rv.ReportMacValid {
			rv.Round.Verdict = VerdictBadMac
			log.Warn("report MAC mismatch on successful report", "rId", rv.Round.Id, "C_V", req.Counter)
		} else {
			log.Info("attestation round succeeded", "rId", rv.Round.Id, "C_V", req.Counter)
		}
	} else {
		rv.Round = newRound(RoleVerifier, req.Counter, VerdictRefused)
		log.Info("attestation round refused by prover", "rId", rv.Round.Id, "C_V", req.Counter)
	}

	notifyRound(ctx, self.onRound, rv.Round)

	return rv
}

// Fsm wiring

type VerifierStateFunc = protocols.StateFunc[*VerifierState]

type VerifierExitFunc = protocols.ExitFunc[*VerifierState]

// VerifierState runs one protocol round over a transport.
// Create a fresh VerifierState per round, the Verifier engine carries the
// counter across rounds.
type VerifierState struct {
	// Result is populated once the round completed.
	Result Result

	engine *Verifier
	req    AttestationRequest
	exh    VerifierExitFunc
	next   VerifierStateFunc
}

// NewVerifierState returns a VerifierState driving engine for one round.
// It errors if engine is nil.
func NewVerifierState(engine *Verifier) (*VerifierState, error) {
	if nil == engine {
		return nil, newError("nil engine")
	}

	return &VerifierState{engine: engine, next: VerifierChallenge}, nil
}

// protocols.Fsm implementation

func (self *VerifierState) State() (*VerifierState, VerifierStateFunc) {
	return self, self.next
}

func (self *VerifierState) SetState(sf VerifierStateFunc) {
	self.next = sf
}

func (self *VerifierState) ExitHandler() VerifierExitFunc {
	return self.exh
}

// SetExitHandler registers ef to run at protocol completion.
func (self *VerifierState) SetExitHandler(ef VerifierExitFunc) {
	self.exh = ef
}

func (self *VerifierState) Initiator() bool {
	return true
}

func (self *VerifierState) NextLen() int {
	return ReportSize
}

var _ protocols.Fsm[*VerifierState] = &VerifierState{}

// State functions

// VerifierChallenge emits the request record for a new round.
func VerifierChallenge(ctx context.Context, self *VerifierState, _ []byte) (sf VerifierStateFunc, rmsg []byte, err error) {
	sf = VerifierChallenge
	var errmsg string

	// get logger
	log := observability.GetObservability(ctx).Log().With("state", "VerifierChallenge")

	req, err := self.engine.NewRequest(ctx)
	if nil != err {
		errmsg = "failed building attestation request"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	self.req = req

	rmsg, err = req.MarshalBinary()
	if nil != err {
		errmsg = "failed encoding attestation request"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	log.Debug("request sent, awaiting report", "C_V", req.Counter)
	return VerifierCheckReport, rmsg, nil
}

// VerifierCheckReport consumes the report record and completes the round.
// A refused round completes the protocol without error, the outcome is
// data carried by Result.
func VerifierCheckReport(ctx context.Context, self *VerifierState, msg []byte) (sf VerifierStateFunc, rmsg []byte, err error) {
	sf = VerifierCheckReport
	var errmsg string

	// get logger
	log := observability.GetObservability(ctx).Log().With("state", "VerifierCheckReport")

	rep := AttestationReport{}
	err = rep.UnmarshalBinary(msg)
	if nil != err {
		errmsg = "failed decoding attestation report"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	self.Result = self.engine.EvalReport(ctx, self.req, rep)

	log.Debug("round completed", "verdict", self.Result.Round.Verdict)
	return nil, nil, wrapError(protocols.OK, "completed round %d", self.Result.Counter)
}
