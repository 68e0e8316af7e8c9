package profile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cybre/lumen-companion/internal/utils"
)

// SchemaVersion is written with every saved profile so that format evolution
// never silently corrupts an older record.
const SchemaVersion = 1

// Trait counter keys recorded by the mood engine.
const (
	TraitRespondedToTap      = "responded_to_tap"
	TraitRespondedToShake    = "responded_to_shake"
	TraitLightInteractions   = "light_interactions"
	TraitChantCelebrations   = "chant_celebrations"
	TraitAttentionRewarded   = "attention_rewarded"
	TraitAudioInvestigations = "audio_investigations"
)

// PersonalityProfile is the persisted personality/preference record. The mood
// engine owns the live copy for the session; a Store owns the persisted one.
type PersonalityProfile struct {
	SchemaVersion int
	DeviceID      string
	TrustScore    float64
	TraitCounters map[string]uint64
	LastSavedAt   time.Time
}

// NewProfile returns a fresh profile with a provisioned device identity and a
// neutral trust score.
func NewProfile() *PersonalityProfile {
	return &PersonalityProfile{
		SchemaVersion: SchemaVersion,
		DeviceID:      uuid.NewString(),
		TrustScore:    0.5,
		TraitCounters: make(map[string]uint64),
	}
}

// AdjustTrust moves the trust score by delta, clamped to [0,1].
func (p *PersonalityProfile) AdjustTrust(delta float64) {
	p.TrustScore = utils.Clamp(p.TrustScore+delta, 0.0, 1.0)
}

// Bump increments a trait counter.
func (p *PersonalityProfile) Bump(trait string) {
	if p.TraitCounters == nil {
		p.TraitCounters = make(map[string]uint64)
	}
	p.TraitCounters[trait]++
}

// Clone returns a deep copy, used when handing a snapshot to a Store.
func (p *PersonalityProfile) Clone() *PersonalityProfile {
	out := *p
	out.TraitCounters = make(map[string]uint64, len(p.TraitCounters))
	for k, v := range p.TraitCounters {
		out.TraitCounters[k] = v
	}
	return &out
}

// Store is the persistence boundary. Implementations must tolerate the core
// continuing without them: Load reporting no profile and Save failing are both
// ordinary outcomes, never fatal.
type Store interface {
	// Load returns the persisted profile, or found=false when none exists.
	Load(ctx context.Context) (p *PersonalityProfile, found bool, err error)
	// Save persists a snapshot of the profile.
	Save(ctx context.Context, p *PersonalityProfile) error
	// Close releases the underlying medium.
	Close() error
}

// VolatileStore keeps the profile in memory only. It is the fallback when the
// persistence medium is unavailable: the companion keeps its session
// personality and simply forgets on restart.
type VolatileStore struct {
	profile *PersonalityProfile
}

// NewVolatileStore returns an empty session-only store.
func NewVolatileStore() *VolatileStore {
	return &VolatileStore{}
}

func (s *VolatileStore) Load(_ context.Context) (*PersonalityProfile, bool, error) {
	if s.profile == nil {
		return nil, false, nil
	}
	return s.profile.Clone(), true, nil
}

func (s *VolatileStore) Save(_ context.Context, p *PersonalityProfile) error {
	snapshot := p.Clone()
	snapshot.LastSavedAt = time.Now()
	s.profile = snapshot
	return nil
}

func (s *VolatileStore) Close() error {
	return nil
}
