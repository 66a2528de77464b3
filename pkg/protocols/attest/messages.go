package attest

import (
	"encoding/binary"

	"code.uvattest.org/golang/pkg/keystore"
)

// AttestationRequest is the challenge sent by the verifier.
//
// State carries the verifier's software state digest for diagnostic
// purposes, the prover never trusts it: the authoritative digest is the
// one the prover derives from its own keystore.
type AttestationRequest struct {
	Counter uint32
	State   [keystore.StateSize]byte
	Nonce   [NonceSize]byte
	Mac     [MacSize]byte
}

// MarshalBinary encodes the request as the 100 bytes wire record,
// counter little endian first.
func (self AttestationRequest) MarshalBinary() ([]byte, error) {
	rv := make([]byte, 0, RequestSize)
	rv = binary.LittleEndian.AppendUint32(rv, self.Counter)
	rv = append(rv, self.State[:]...)
	rv = append(rv, self.Nonce[:]...)
	rv = append(rv, self.Mac[:]...)

	return rv, nil
}

// UnmarshalBinary decodes a 100 bytes wire record into the request.
func (self *AttestationRequest) UnmarshalBinary(data []byte) error {
	if RequestSize != len(data) {
		return newError("invalid request record size, %d != %d", len(data), RequestSize)
	}

	self.Counter = binary.LittleEndian.Uint32(data)
	data = data[CounterSize:]
	data = data[copy(self.State[:], data):]
	data = data[copy(self.Nonce[:], data):]
	copy(self.Mac[:], data)

	return nil
}

// Check returns an error if the AttestationRequest is invalid.
// A zero counter can never satisfy the strict freshness inequality.
func (self AttestationRequest) Check() error {
	if 0 == self.Counter {
		return newError("zero request counter")
	}

	return nil
}

// AttestationReport is the prover's answer to an AttestationRequest.
// On success Mac authenticates the round with the updated prover counter,
// on failure Mac is all zero and carries no meaning.
type AttestationReport struct {
	Success bool
	Mac     [MacSize]byte
}

// MarshalBinary encodes the report as the 33 bytes wire record.
func (self AttestationReport) MarshalBinary() ([]byte, error) {
	rv := make([]byte, 0, ReportSize)
	if self.Success {
		rv = append(rv, 1)
	} else {
		rv = append(rv, 0)
	}
	rv = append(rv, self.Mac[:]...)

	return rv, nil
}

// UnmarshalBinary decodes a 33 bytes wire record into the report.
// Flag values other than 0 or 1 are rejected.
func (self *AttestationReport) UnmarshalBinary(data []byte) error {
	if ReportSize != len(data) {
		return newError("invalid report record size, %d != %d", len(data), ReportSize)
	}
	if data[0] > 1 {
		return newError("invalid report flag 0x%02X", data[0])
	}

	self.Success = (1 == data[0])
	copy(self.Mac[:], data[1:])

	return nil
}
