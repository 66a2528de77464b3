package attest

import (
	"context"
	"crypto/hmac"
	"sync"

	"code.uvattest.org/golang/internal/observability"
	"code.uvattest.org/golang/pkg/keystore"
	"code.uvattest.org/golang/pkg/protocols"
)

// ProverCfg configures a Prover.
type ProverCfg struct {
	// Keys is the prover side keystore.
	Keys *keystore.Store

	// OnRound, when non nil, receives one Round per answered request.
	OnRound RoundFunc
}

// Check returns an error if the ProverCfg is invalid.
func (self ProverCfg) Check() error {
	if nil == self.Keys {
		return newError("nil Keys")
	}

	return nil
}

// Prover answers attestation requests.
//
// The stored counter C_P starts at 0 and is only ever raised to the
// counter of a fully accepted request. The freshness check and the
// counter update run under one lock so concurrent transports cannot
// race an accepted counter back in.
type Prover struct {
	keys    *keystore.Store
	onRound RoundFunc
	mut     sync.Mutex
	counter uint32
}

// NewProver returns a Prover answering with cfg.Keys material.
func NewProver(cfg ProverCfg) (*Prover, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "invalid ProverCfg")
	}

	return &Prover{keys: cfg.Keys, onRound: cfg.OnRound}, nil
}

// Counter returns the stored counter C_P.
func (self *Prover) Counter() uint32 {
	self.mut.Lock()
	defer self.mut.Unlock()

	return self.counter
}

// Answer evaluates req and builds the matching AttestationReport.
//
// The freshness check runs before any cryptographic work. A request that
// fails freshness or authentication leaves C_P untouched and yields a
// failure report with a zero MAC. On acceptance C_P is set to the request
// counter and the report MAC binds the updated counter with the request
// nonce and the locally derived software state.
func (self *Prover) Answer(ctx context.Context, req AttestationRequest) (AttestationReport, Round) {
	log := observability.GetObservability(ctx).Log()

	self.mut.Lock()
	defer self.mut.Unlock()

	var rep AttestationReport
	var round Round

	if self.counter >= req.Counter {
		round = newRound(RoleProver, req.Counter, VerdictStaleCounter)
		log.Info("rejected attestation request", "rId", round.Id, "verdict", round.Verdict, "C_P", self.counter, "C_V", req.Counter)
		notifyRound(ctx, self.onRound, round)
		return rep, round
	}

	state := self.keys.SoftwareState()

	kauth := self.keys.GetKey(keystore.KindAuth)
	defer kauth.Wipe()

	// the MAC binds the locally derived digest, never the echoed one
	expected := computeMac(kauth, req.Counter, state, req.Nonce)
	if !hmac.Equal(expected[:], req.Mac[:]) {
		round = newRound(RoleProver, req.Counter, VerdictBadMac)
		log.Info("rejected attestation request", "rId", round.Id, "verdict", round.Verdict, "C_V", req.Counter)
		notifyRound(ctx, self.onRound, round)
		return rep, round
	}

	// the echoed digest must agree with the local one, a divergence means
	// the field was altered in flight
	if !hmac.Equal(state[:], req.State[:]) {
		round = newRound(RoleProver, req.Counter, VerdictBadMac)
		log.Info("rejected attestation request, software state echo differs from local digest", "rId", round.Id, "C_V", req.Counter)
		notifyRound(ctx, self.onRound, round)
		return rep, round
	}

	self.counter = req.Counter
	rep.Success = true
	rep.Mac = computeMac(kauth, self.counter, state, req.Nonce)

	round = newRound(RoleProver, req.Counter, VerdictAccept)
	log.Info("accepted attestation request", "rId", round.Id, "C_P", self.counter)
	notifyRound(ctx, self.onRound, round)

	return rep, round
}

// Fsm wiring

type ProverStateFunc = protocols.StateFunc[*ProverState]

type ProverExitFunc = protocols.ExitFunc[*ProverState]

// ProverState runs a Prover over a transport.
//
// The state machine alternates between waiting for a request and
// answering it, rounds never overlap: a request is answered to completion
// before the next record is read.
type ProverState struct {
	// MaxRounds bounds the number of requests answered in one Run.
	// Zero keeps serving until the transport fails.
	MaxRounds int

	engine *Prover
	served int
	exh    ProverExitFunc
	next   ProverStateFunc
}

// NewProverState returns a ProverState serving engine.
// It errors if engine is nil.
func NewProverState(engine *Prover) (*ProverState, error) {
	if nil == engine {
		return nil, newError("nil engine")
	}

	return &ProverState{engine: engine, next: ProverAnswer}, nil
}

// Served returns the number of requests answered so far.
func (self *ProverState) Served() int {
	return self.served
}

// protocols.Fsm implementation

func (self *ProverState) State() (*ProverState, ProverStateFunc) {
	return self, self.next
}

func (self *ProverState) SetState(sf ProverStateFunc) {
	self.next = sf
}

func (self *ProverState) ExitHandler() ProverExitFunc {
	return self.exh
}

// SetExitHandler registers ef to run at protocol completion.
func (self *ProverState) SetExitHandler(ef ProverExitFunc) {
	self.exh = ef
}

func (self *ProverState) Initiator() bool {
	return false
}

func (self *ProverState) NextLen() int {
	return RequestSize
}

var _ protocols.Fsm[*ProverState] = &ProverState{}

// State functions

// ProverAnswer consumes one request record and produces the report record.
// It reschedules itself until MaxRounds requests have been answered.
func ProverAnswer(ctx context.Context, self *ProverState, msg []byte) (sf ProverStateFunc, rmsg []byte, err error) {
	sf = ProverAnswer
	var errmsg string

	// get logger
	log := observability.GetObservability(ctx).Log().With("state", "ProverAnswer")

	log.Debug("decoding attestation request")
	req := AttestationRequest{}
	err = req.UnmarshalBinary(msg)
	if nil != err {
		errmsg = "failed decoding attestation request"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	rep, round := self.engine.Answer(ctx, req)
	self.served += 1

	rmsg, err = rep.MarshalBinary()
	if nil != err {
		errmsg = "failed encoding attestation report"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	if self.MaxRounds > 0 && self.served >= self.MaxRounds {
		log.Debug("served all rounds", "served", self.served, "verdict", round.Verdict)
		return nil, rmsg, wrapError(protocols.OK, "served %d rounds", self.served)
	}

	log.Debug("report ready, awaiting next request", "verdict", round.Verdict)
	return sf, rmsg, nil
}
