// Package keystore provides custody of the attestation secrets.
//
// A Store owns two 32 bytes secrets, the authentication key Kauth binding
// the request/response channel and the attestation key Kattest binding the
// software identity. No other component reads raw key bytes: consumers go
// through GetKey, which hands out a value copy, or through SoftwareState,
// which only ever exposes a derived digest.
package keystore

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"os"
)

const (
	// KeySize is the byte length of Kauth & Kattest.
	KeySize = 32

	// StateSize is the byte length of the software state digest.
	StateSize = sha256.Size

	// DefaultSoftwareId is the canonical identifier of the measured software.
	DefaultSoftwareId = "ExampleFirmwareV1"
)

// KeyKind selects one of the 2 Store secrets.
type KeyKind uint8

const (
	// KindAuth selects the authentication key Kauth.
	KindAuth KeyKind = iota

	// KindAttest selects the attestation key Kattest.
	KindAttest
)

// String implements fmt.Stringer.
func (self KeyKind) String() string {
	switch self {
	case KindAuth:
		return "Kauth"
	case KindAttest:
		return "Kattest"
	default:
		return "Kunknown"
	}
}

// Key is a fixed length secret. Key values obtained from a Store are copies
// under the caller's own authority, Wipe them once they served their purpose.
type Key [KeySize]byte

// Wipe zeroes the Key in place.
func (self *Key) Wipe() {
	for i := range self {
		self[i] = 0
	}
}

// Cfg configures Store file provisioning.
type Cfg struct {
	// AuthKeyPath locates the 32 bytes binary file holding Kauth.
	AuthKeyPath string

	// AttestKeyPath locates the 32 bytes binary file holding Kattest.
	AttestKeyPath string

	// SoftwareId overrides DefaultSoftwareId when non empty.
	SoftwareId string

	// Trace receives hex dumps of loaded keys and computed digests.
	// Development only, it exposes secret bytes. Leave nil in any
	// deployed trust boundary.
	Trace *slog.Logger
}

// Check returns an error if the Cfg is invalid.
func (self Cfg) Check() error {
	if "" == self.AuthKeyPath {
		return newError("empty AuthKeyPath")
	}
	if "" == self.AttestKeyPath {
		return newError("empty AttestKeyPath")
	}

	return nil
}

// Store holds Kauth & Kattest for the lifetime of the process.
// Keys are immutable once loaded, a Store is safe for concurrent use.
type Store struct {
	kauth      Key
	kattest    Key
	softwareId string
	trace      *slog.Logger
	ready      bool
}

// Load provisions a Store from the key files referenced by cfg.
// A missing file or a file that does not hold exactly 32 bytes is a fatal
// provisioning failure, the returned error wraps ErrProvisioning and no
// protocol activity shall start after it.
func Load(cfg Cfg) (*Store, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "invalid Cfg")
	}

	rv := &Store{softwareId: cfg.SoftwareId, trace: cfg.Trace}
	if "" == rv.softwareId {
		rv.softwareId = DefaultSoftwareId
	}

	err = loadKeyFile(cfg.AuthKeyPath, &rv.kauth)
	if nil != err {
		return nil, wrapError(err, "failed loading Kauth")
	}
	err = loadKeyFile(cfg.AttestKeyPath, &rv.kattest)
	if nil != err {
		rv.kauth.Wipe()
		return nil, wrapError(err, "failed loading Kattest")
	}
	rv.ready = true

	rv.traceDump("loaded Kauth", rv.kauth[:])
	rv.traceDump("loaded Kattest", rv.kattest[:])

	return rv, nil
}

// New provisions a Store from in memory key material.
// It is meant for tests and for callers that provision keys out of band.
func New(kauth, kattest Key, softwareId string) *Store {
	if "" == softwareId {
		softwareId = DefaultSoftwareId
	}

	return &Store{kauth: kauth, kattest: kattest, softwareId: softwareId, ready: true}
}

// GetKey returns a copy of the requested key.
// It panics if the Store was not provisioned, using an unprovisioned Store
// is a programming error, not a runtime condition the protocol recovers from.
func (self *Store) GetKey(kind KeyKind) Key {
	if !self.ready {
		panic("keystore: GetKey on unprovisioned Store")
	}

	var rv Key
	switch kind {
	case KindAuth:
		rv = self.kauth
	case KindAttest:
		rv = self.kattest
	default:
		panic("keystore: unknown KeyKind")
	}
	self.traceDump("retrieved "+kind.String(), rv[:])

	return rv
}

// SoftwareId returns the identifier of the measured software.
func (self *Store) SoftwareId() string {
	return self.softwareId
}

// SoftwareState computes the software state digest,
// HMAC-SHA256(Kattest, software identifier).
// The digest is deterministic for fixed key & identifier and is recomputed
// on demand, never stored.
func (self *Store) SoftwareState() [StateSize]byte {
	kattest := self.GetKey(KindAttest)
	defer kattest.Wipe()

	mac := hmac.New(sha256.New, kattest[:])
	mac.Write([]byte(self.softwareId))

	var rv [StateSize]byte
	mac.Sum(rv[:0])
	self.traceDump("computed software state", rv[:])

	return rv
}

// Wipe zeroes the Store secrets. The Store is unusable afterwards.
func (self *Store) Wipe() {
	self.kauth.Wipe()
	self.kattest.Wipe()
	self.ready = false
}

func (self *Store) traceDump(label string, data []byte) {
	if nil == self.trace {
		return
	}
	self.trace.Debug(label, "hex", fmt.Sprintf("% X", data))
}

func loadKeyFile(path string, dst *Key) error {
	data, err := os.ReadFile(path)
	if nil != err {
		return wrapError(ErrProvisioning, "can not read key file %s, %v", path, err)
	}
	if KeySize != len(data) {
		return wrapError(ErrProvisioning, "key file %s holds %d bytes, want %d", path, len(data), KeySize)
	}
	subtle.ConstantTimeCopy(1, dst[:], data)

	return nil
}
