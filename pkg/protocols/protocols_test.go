package protocols

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"

	"code.uvattest.org/golang/internal/transport"
)

func TestRunFsmInitiator(t *testing.T) {
	fsm := &dummyFsm{sf: dummyInit, initiator: true}
	tr := mockTransport{Msg: []byte("stuff...")}

	err := Run(context.Background(), fsm, tr)
	if nil != err {
		t.Fatalf("failed fsm Run, got error %v", err)
	}
}

func TestRunFsmResponder(t *testing.T) {
	fsm := &dummyFsm{sf: dummyInit, initiator: false}
	tr := mockTransport{Msg: []byte("stuff...")}

	err := Run(context.Background(), fsm, tr)
	if nil != err {
		t.Fatalf("failed fsm Run, got error %v", err)
	}
}

func TestRunFsmFailProto(t *testing.T) {
	for _, initiator := range []bool{true, false} {
		fsm := &dummyFsm{sf: dummyInit, initiator: initiator}
		tr := mockTransport{Msg: failmsg}

		err := Run(context.Background(), fsm, tr)
		if nil == err {
			t.Fatalf("failed fsm Run (initiator=%v), no error reported", initiator)
		}
	}
}

func TestRunFsmFailIO(t *testing.T) {
	for _, initiator := range []bool{true, false} {
		fsm := &dummyFsm{sf: dummyInit, initiator: initiator}
		tr := mockTransport{Msg: []byte("stuff"), Err: io.EOF}

		err := Run(context.Background(), fsm, tr)
		if nil == err {
			t.Fatalf("failed fsm Run (initiator=%v), no error reported", initiator)
		}
	}
}

func TestRunFsmExitHandler(t *testing.T) {
	fsm := &dummyFsm{sf: dummyInit, initiator: true}
	tr := mockTransport{Msg: []byte("stuff...")}

	var exited bool
	fsm.exh = func(_ dummy, rs error) error {
		exited = true
		if nil != rs {
			t.Errorf("exit handler received unexpected error %v", rs)
		}
		return nil
	}

	err := Run(context.Background(), fsm, tr)
	if nil != err {
		t.Fatalf("failed fsm Run, got error %v", err)
	}
	if !exited {
		t.Error("exit handler was not called")
	}
}

// Fsm implementation

type dummy struct{}

type dummyFsm struct {
	sf        StateFunc[dummy]
	exh       ExitFunc[dummy]
	initiator bool
}

func (self *dummyFsm) State() (dummy, StateFunc[dummy]) {
	return dummy{}, self.sf
}

func (self *dummyFsm) SetState(sf StateFunc[dummy]) {
	self.sf = sf
}

func (self *dummyFsm) ExitHandler() ExitFunc[dummy] {
	return self.exh
}

func (self *dummyFsm) Initiator() bool {
	return self.initiator
}

func (self *dummyFsm) NextLen() int {
	return 8
}

var _ Fsm[dummy] = &dummyFsm{}

// State functions

var failmsg = []byte("FAIL....")

func dummyInit(_ context.Context, _ dummy, msg []byte) (sf StateFunc[dummy], rmsg []byte, err error) {
	log.Print("[dummyInit] called")
	sf = dummyInit
	if bytes.Equal(msg, failmsg) {
		sf = dummyFail
		err = newError("received the FAIL msg")
		log.Print("[dummyInit] returning FAIL msg error.")
		return sf, rmsg, err
	}
	if len(msg) > 0 {
		sf = dummyOk
		err = wrapError(OK, "this is It")
		log.Print("[dummyInit] returning protocol.OK")
	}
	rmsg = []byte("NEXT....")

	return sf, rmsg, err

}

func dummyFail(_ context.Context, _ dummy, _ []byte) (sf StateFunc[dummy], rmsg []byte, err error) {
	log.Print("[dummyFail] dummyFail called")
	sf = dummyFail
	err = newError("failed previously...")

	return sf, rmsg, err
}

func dummyOk(_ context.Context, _ dummy, _ []byte) (sf StateFunc[dummy], rmsg []byte, err error) {
	log.Print("[dummyOk] dummyOk called")
	sf = dummyOk
	// panic if called in Run...
	panic("I don't expect to be called...")
}

// Transport implementation

type mockTransport struct {
	Msg []byte
	Err error
}

func (self mockTransport) ReadRecord(_ int) ([]byte, error) {
	return self.Msg, self.Err
}

func (self mockTransport) WriteRecord(_ []byte) error {
	return self.Err
}

var _ transport.Transport = mockTransport{}
