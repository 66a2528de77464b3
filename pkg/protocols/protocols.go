// Package protocols provides the runtime shared by the attestation
// protocol engines. A protocol is a finite state machine whose states
// consume an incoming record and produce the record to forward to the
// connected peer.
package protocols

import (
	"context"
	"errors"

	"code.uvattest.org/golang/internal/transport"
)

// StateFunc changes state S using incoming []byte record.
// It returns next StateFunc and a record to be forwarded to connected peer.
// To report protocol completion StateFunc returns an error wrapping protocols.OK.
type StateFunc[S any] func(context.Context, S, []byte) (StateFunc[S], []byte, error)

// ExitFunc is called at protocol completion using protocol run error status.
type ExitFunc[S any] func(S, error) error

// Fsm exposes protocol state S.
//
// NextLen reports the exact byte count of the record the protocol awaits
// from its peer. Records have fixed, state dependent sizes on the wire,
// so the runner asks the Fsm rather than the transport.
type Fsm[S any] interface {
	State() (S, StateFunc[S])
	SetState(sf StateFunc[S])
	ExitHandler() ExitFunc[S]
	Initiator() bool
	NextLen() int
}

// Run reads & writes records from/to Transport and executes protocol until completion.
func Run[S any](ctx context.Context, fsm Fsm[S], tr transport.Transport) error {
	var err error
	s, sf := fsm.State()
	defer func() {
		fsm.SetState(sf)
		exh := fsm.ExitHandler()
		if nil != exh {
			state, _ := fsm.State()
			exh(state, err)
		}
	}()

	var msg []byte
	var errIO, errProto error
	if !fsm.Initiator() {
		msg, errIO = tr.ReadRecord(fsm.NextLen())
		if nil != errIO {
			err = wrapError(errIO, "Failed reading initial record")
			return err
		}
	}

	for {
		sf, msg, errProto = sf(ctx, s, msg)
		if nil != msg {
			errIO = tr.WriteRecord(msg)
			if nil != errIO {
				err = wrapError(errIO, "Failed writing record")
				return err
			}
		}

		if nil == errProto {
			msg, errIO = tr.ReadRecord(fsm.NextLen())
			if nil != errIO {
				err = wrapError(errIO, "Failed reading record")
				return err
			}
		} else {
			if errors.Is(errProto, OK) {
				err = nil
				return err
			} else {
				err = wrapError(errProto, "Failed state execution")
				return err
			}
		}
	}
}
