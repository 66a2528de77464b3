package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestRWTransportLoopback(t *testing.T) {
	buf := new(bytes.Buffer)
	tr := RWTransport{R: buf, W: buf}

	rec1 := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	err := tr.WriteRecord(rec1)
	if nil != err {
		t.Fatalf("failed writing rec1, got error %v", err)
	}

	rec2, err := tr.ReadRecord(len(rec1))
	if nil != err {
		t.Fatalf("failed reading rec2, got error %v", err)
	}
	if !bytes.Equal(rec1, rec2) {
		t.Errorf("failed loopback verif, % X != % X", rec1, rec2)
	}
}

func TestRWTransportSplitRecords(t *testing.T) {
	// a single write shall serve multiple exact count reads
	buf := new(bytes.Buffer)
	tr := RWTransport{R: buf, W: buf}

	err := tr.WriteRecord([]byte{1, 2, 3, 4, 5, 6})
	if nil != err {
		t.Fatalf("failed writing record, got error %v", err)
	}

	head, err := tr.ReadRecord(4)
	if nil != err {
		t.Fatalf("failed reading head, got error %v", err)
	}
	if !bytes.Equal([]byte{1, 2, 3, 4}, head) {
		t.Errorf("failed head verif, got % X", head)
	}

	tail, err := tr.ReadRecord(2)
	if nil != err {
		t.Fatalf("failed reading tail, got error %v", err)
	}
	if !bytes.Equal([]byte{5, 6}, tail) {
		t.Errorf("failed tail verif, got % X", tail)
	}
}

func TestRWTransportShortRead(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	tr := RWTransport{R: buf, W: buf}

	_, err := tr.ReadRecord(8)
	if nil == err {
		t.Fatal("read of 8 bytes succeeded on a 3 bytes channel")
	}
	t.Logf("got EXPECTED error:\n%v", err)
	if !errors.Is(err, Error) {
		t.Error("err is not a transport Error")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("err does not report the short read")
	}
}

func TestRWTransportInvalidSize(t *testing.T) {
	tr := RWTransport{R: new(bytes.Buffer)}

	_, err := tr.ReadRecord(0)
	if nil == err {
		t.Fatal("read of 0 bytes succeeded")
	}
	if !errors.Is(err, Error) {
		t.Error("err is not a transport Error")
	}
}
