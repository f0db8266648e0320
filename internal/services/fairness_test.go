package services

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrashPointDeterministic(t *testing.T) {
	a := NewSeedManagerFromSeed("seed-one", 0.01, 1000.0)
	b := NewSeedManagerFromSeed("seed-one", 0.01, 1000.0)

	for round := int64(1); round <= 50; round++ {
		require.Equal(t, a.CrashPoint(round), b.CrashPoint(round),
			"same seed and round must reproduce the same crash point")
	}

	other := NewSeedManagerFromSeed("seed-two", 0.01, 1000.0)
	different := false
	for round := int64(1); round <= 50; round++ {
		if a.CrashPoint(round) != other.CrashPoint(round) {
			different = true
			break
		}
	}
	require.True(t, different, "distinct seeds must produce distinct sequences")
}

func TestCrashPointBounds(t *testing.T) {
	sm := NewSeedManagerFromSeed("bounds-seed", 0.01, 1000.0)

	for round := int64(1); round <= 500; round++ {
		point := sm.CrashPoint(round)
		require.GreaterOrEqual(t, point, 1.01)
		require.LessOrEqual(t, point, 1000.0)
	}
}

func TestCrashPointMaxClamp(t *testing.T) {
	sm := NewSeedManagerFromSeed("clamp-seed", 0.01, 1.5)

	for round := int64(1); round <= 200; round++ {
		require.LessOrEqual(t, sm.CrashPoint(round), 1.5)
	}
}

func TestVerifyMatchesCrashPoint(t *testing.T) {
	sm := NewSeedManagerFromSeed("verify-seed", 0.01, 1000.0)

	for round := int64(1); round <= 100; round++ {
		verified, hash := VerifyCrashPoint(sm.Reveal(), round, 0.01, 1000.0)
		require.Equal(t, sm.CrashPoint(round), verified)
		require.Len(t, hash, 64)
	}
}

func TestCommitmentMatchesSeed(t *testing.T) {
	sm := NewSeedManagerFromSeed("commitment-seed", 0.01, 1000.0)

	sum := sha256.Sum256([]byte("commitment-seed"))
	require.Equal(t, hex.EncodeToString(sum[:]), sm.Commitment())
	require.Equal(t, "commitment-seed", sm.Reveal())
}

func TestNewSeedManagerRandomizes(t *testing.T) {
	a, err := NewSeedManager(0.01, 1000.0)
	require.NoError(t, err)
	b, err := NewSeedManager(0.01, 1000.0)
	require.NoError(t, err)

	require.Len(t, a.Reveal(), 64)
	require.NotEqual(t, a.Reveal(), b.Reveal())
	require.NotEqual(t, a.Commitment(), b.Commitment())
}
