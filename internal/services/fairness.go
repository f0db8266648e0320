package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
)

// CrashSource fixes a round's crash point before any bet is accepted and
// commits to it through a hash published at round creation.
type CrashSource interface {
	CrashPoint(roundNumber int64) float64
	Commitment() string
	Reveal() string
}

// SeedManager derives crash points from a server seed via HMAC-SHA256.
// The SHA-256 of the seed is published with every round so players can
// verify results once the seed is revealed after the crash.
type SeedManager struct {
	serverSeed string
	houseEdge  float64
	maxCrash   float64
}

func NewSeedManager(houseEdge, maxCrash float64) (*SeedManager, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate server seed: %w", err)
	}
	return &SeedManager{
		serverSeed: hex.EncodeToString(bytes),
		houseEdge:  houseEdge,
		maxCrash:   maxCrash,
	}, nil
}

// NewSeedManagerFromSeed builds a manager with a known seed, for
// verification and tests.
func NewSeedManagerFromSeed(serverSeed string, houseEdge, maxCrash float64) *SeedManager {
	return &SeedManager{serverSeed: serverSeed, houseEdge: houseEdge, maxCrash: maxCrash}
}

func (sm *SeedManager) Commitment() string {
	hash := sha256.Sum256([]byte(sm.serverSeed))
	return hex.EncodeToString(hash[:])
}

func (sm *SeedManager) Reveal() string {
	return sm.serverSeed
}

func (sm *SeedManager) CrashPoint(roundNumber int64) float64 {
	point, _ := crashPointFromSeed(sm.serverSeed, roundNumber, sm.houseEdge, sm.maxCrash)
	return point
}

// crashPointFromSeed implements the standard crash formula: take the first
// 52 bits of HMAC-SHA256(serverSeed, roundNumber) as a uniform float in
// [0, 1) and map it through floor(100 * (1 - edge) / (1 - r)) / 100.
func crashPointFromSeed(serverSeed string, roundNumber int64, houseEdge, maxCrash float64) (float64, string) {
	message := fmt.Sprintf("round:%d", roundNumber)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	hash := hex.EncodeToString(h.Sum(nil))

	hashPrefix := hash[:13]
	n := new(big.Int)
	n.SetString(hashPrefix, 16)

	randFloat := float64(n.Int64()) / math.Pow(2, 52)

	crashPoint := math.Floor(100*(1-houseEdge)/(1-randFloat)) / 100.0

	if crashPoint < 1.01 {
		crashPoint = 1.01
	}
	if crashPoint > maxCrash {
		crashPoint = maxCrash
	}

	return crashPoint, hash
}

// VerifyCrashPoint recomputes a round's crash point from a revealed server
// seed so players can check fairness independently.
func VerifyCrashPoint(serverSeed string, roundNumber int64, houseEdge, maxCrash float64) (float64, string) {
	return crashPointFromSeed(serverSeed, roundNumber, houseEdge, maxCrash)
}
