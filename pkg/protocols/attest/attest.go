// Package attest provides verifier & prover implementation of the
// counter based remote attestation protocol.
//
// A verifier challenges a prover to prove it is running known good
// software. Both parties hold the same two secrets, the authentication
// key Kauth and the attestation key Kattest, provisioned out of band in
// their respective keystore.Store. Freshness is enforced with a pair of
// monotonic counters: the verifier strictly increments its counter C_V
// before every request and the prover only accepts a request whose
// counter is strictly greater than its stored counter C_P.
//
// One protocol round:
//   - Verifier: -> counter ∥ software_state ∥ nonce ∥ mac   (100 bytes)
//   - Prover:   <- success_flag ∥ mac                       (33 bytes)
//
// where mac = HMAC-SHA256(Kauth, counter ∥ software_state ∥ nonce), the
// counter travelling little endian. The prover derives the authoritative
// software state locally, the wire field is a diagnostic echo.
//
// Rejections (stale counter, MAC mismatch) are protocol data carried by
// the report success flag, never Go errors: errors are reserved for the
// transport and for provisioning failures.
package attest

import (
	"crypto/sha256"

	"code.uvattest.org/golang/pkg/keystore"
)

const (
	// CounterSize is the wire length of the round counter.
	CounterSize = 4

	// NonceSize is the length of the per round random nonce.
	NonceSize = 32

	// MacSize is the length of the HMAC-SHA256 tag.
	MacSize = sha256.Size

	// RequestSize is the wire length of an AttestationRequest.
	RequestSize = CounterSize + keystore.StateSize + NonceSize + MacSize

	// ReportSize is the wire length of an AttestationReport.
	ReportSize = 1 + MacSize
)

// Role names the party recorded for a protocol Round.
type Role string

const (
	RoleVerifier = Role("verifier")
	RoleProver   = Role("prover")
)
