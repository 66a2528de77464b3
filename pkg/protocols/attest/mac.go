package attest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"code.uvattest.org/golang/pkg/keystore"
)

// computeMac computes HMAC-SHA256(kauth, counter ∥ state ∥ nonce) with the
// counter encoded little endian. Request & report MACs share this single
// construction, both parties differing only in the counter value they bind.
func computeMac(kauth keystore.Key, counter uint32, state [keystore.StateSize]byte, nonce [NonceSize]byte) [MacSize]byte {
	var cb [CounterSize]byte
	binary.LittleEndian.PutUint32(cb[:], counter)

	mac := hmac.New(sha256.New, kauth[:])
	mac.Write(cb[:])
	mac.Write(state[:])
	mac.Write(nonce[:])

	var rv [MacSize]byte
	mac.Sum(rv[:0])

	return rv
}
