package keystore

import (
	"crypto/sha256"

	"golang.org/x/crypto/hkdf"
)

const (
	// DO NOT EDIT THOSE CONSTANTS
	// changing any of them changes every derived key.
	deriveSalt  = "Attestation key derivation salt, keep stable across releases"
	infoKauth   = "key:auth/channel"
	infoKattest = "key:attest/software"
)

// DeriveKeys derives Kauth & Kattest from a single master seed using
// domain separated HKDF-SHA256 expansions.
//
// The same seed always yields the same key pair, which lets operators
// provision the verifier and the prover from one 32 bytes secret instead
// of distributing 2 key files. seed must hold at least KeySize bytes.
func DeriveKeys(seed []byte, kauth, kattest *Key) error {
	if len(seed) < KeySize {
		return wrapError(ErrProvisioning, "seed holds %d bytes, want at least %d", len(seed), KeySize)
	}

	prk := hkdf.Extract(sha256.New, seed, []byte(deriveSalt))

	kdf := hkdf.Expand(sha256.New, prk, []byte(infoKauth))
	_, err := kdf.Read(kauth[:])
	if nil != err {
		return wrapError(err, "failed Kauth expansion")
	}

	kdf = hkdf.Expand(sha256.New, prk, []byte(infoKattest))
	_, err = kdf.Read(kattest[:])
	if nil != err {
		kauth.Wipe()
		return wrapError(err, "failed Kattest expansion")
	}

	return nil
}
