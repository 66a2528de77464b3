// Package transport models the reliable point to point byte channel that
// connects a verifier to a prover. Protocol records have fixed, protocol
// defined sizes, so the channel exchanges exact byte counts rather than
// self delimiting frames.
package transport

import (
	"io"
)

// Transport provides exact count read/write of protocol records.
type Transport interface {
	// ReadRecord blocks until exactly n bytes have been received.
	// A closed or failing channel surfaces as an error, never as a
	// partial record.
	ReadRecord(n int) ([]byte, error)

	// WriteRecord blocks until all data bytes have been written.
	WriteRecord(data []byte) error
}

// T aliases Transport
type T = Transport

// RWTransport adapts an io.Reader/io.Writer pair (a serial device, a
// net.Conn, an in memory pipe...) to the Transport contract.
type RWTransport struct {
	R io.Reader // source from which records are read.
	W io.Writer // destination to which records are written.
}

// ReadRecord reads exactly n bytes from the inner Reader.
func (self RWTransport) ReadRecord(n int) ([]byte, error) {
	if n <= 0 {
		return nil, newError("invalid record size %d", n)
	}

	data := make([]byte, n)
	_, err := io.ReadFull(self.R, data)
	if nil != err {
		return nil, wrapError(err, "failed reading %d bytes record", n)
	}

	return data, nil
}

// WriteRecord writes all data bytes to the inner Writer.
func (self RWTransport) WriteRecord(data []byte) error {
	_, err := self.W.Write(data)

	return wrapError(err, "failed writing %d bytes record", len(data)) // nil if err is nil
}

var _ Transport = RWTransport{}
