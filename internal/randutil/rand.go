// Package randutil centralises how the server derives its random streams.
// Every room gets its own stream so that shuffles in one room never
// depend on activity in another.
package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Derive returns the stream-th independent generator for seed.
func Derive(seed int64, stream uint64) *rand.Rand {
	u := mix(uint64(seed) ^ mix(stream+goldenRatio64))
	return rand.New(rand.NewPCG(u, mix(u+goldenRatio64)))
}

// Seed draws a fresh seed from the operating system.
func Seed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("randutil: reading random seed: " + err.Error())
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
