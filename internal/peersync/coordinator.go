package peersync

import (
	"log/slog"
)

// PeerDevice is the last known state of one remote companion.
type PeerDevice struct {
	ID           uint32
	LastSeq      uint32
	LastSeenTick uint64
	Role         Role
	BeatPhase    float64
	Routine      uint8
}

// Config tunes the coordinator. Zero fields fall back to defaults sized for a
// 60 ticks/second loop.
type Config struct {
	EmitIntervalTicks uint64 // ticks between outbound heartbeats
	TimeoutMultiple   uint64 // heartbeats missed before a peer is dropped
}

func (c Config) withDefaults() Config {
	if c.EmitIntervalTicks == 0 {
		c.EmitIntervalTicks = 30 // ~500ms
	}
	if c.TimeoutMultiple == 0 {
		c.TimeoutMultiple = 3
	}
	return c
}

// Coordinator runs leader election and peer bookkeeping for one device. All
// methods are called from the tick loop, so no locking is needed.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	selfID uint32
	seq    uint32
	role   Role

	peers map[uint32]*PeerDevice

	lastEmitTick uint64
	emittedOnce  bool

	leaderPhase      float64
	leaderPhaseFresh bool
	leaderRoutine    uint8
	leaderSeen       bool
}

// NewCoordinator constructs a coordinator for the given device identity. A
// device with no known peers leads itself.
func NewCoordinator(cfg Config, selfID uint32, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:    cfg.withDefaults(),
		logger: logger,
		selfID: selfID,
		role:   RoleLeader,
		peers:  make(map[uint32]*PeerDevice),
	}
}

// Role returns the device's current role.
func (c *Coordinator) Role() Role {
	return c.role
}

// Peers returns the number of live peers.
func (c *Coordinator) Peers() int {
	return len(c.peers)
}

// Observe folds one inbound heartbeat into the peer table. Messages that do
// not advance the sender's sequence number are replays or reordered
// stragglers and are discarded without side effects. Reports whether the
// message was accepted.
func (c *Coordinator) Observe(msg Message, tick uint64) bool {
	if msg.SenderID == c.selfID {
		return false
	}

	peer, known := c.peers[msg.SenderID]
	if known && msg.Seq <= peer.LastSeq {
		return false
	}

	if !known {
		peer = &PeerDevice{ID: msg.SenderID}
		c.peers[msg.SenderID] = peer
		c.logger.Info("peer joined", slog.Uint64("peer_id", uint64(msg.SenderID)))
	}

	peer.LastSeq = msg.Seq
	peer.LastSeenTick = tick
	peer.Role = msg.Role
	peer.BeatPhase = msg.BeatPhase
	peer.Routine = msg.Routine

	if msg.Role == RoleLeader {
		c.leaderPhase = msg.BeatPhase
		c.leaderPhaseFresh = true
		c.leaderRoutine = msg.Routine
		c.leaderSeen = true
	}
	return true
}

// Tick expires silent peers and re-runs the election. Called once per tick
// after all inbound messages have been observed.
func (c *Coordinator) Tick(tick uint64) {
	timeout := c.cfg.EmitIntervalTicks * c.cfg.TimeoutMultiple
	for id, peer := range c.peers {
		if tick-peer.LastSeenTick > timeout {
			delete(c.peers, id)
			c.logger.Info("peer expired", slog.Uint64("peer_id", uint64(id)))
		}
	}
	c.elect()
}

// elect picks the highest device identifier among self and all live peers.
// Every device runs the same rule over the same inputs, so the group
// converges without any negotiation round.
func (c *Coordinator) elect() {
	winner := c.selfID
	for id := range c.peers {
		if id > winner {
			winner = id
		}
	}

	next := RoleFollower
	if winner == c.selfID {
		next = RoleLeader
	}
	if next != c.role {
		c.logger.Info("role changed",
			slog.String("from", c.role.String()),
			slog.String("to", next.String()),
			slog.Uint64("leader_id", uint64(winner)))
		c.role = next
	}
}

// Outbound returns the heartbeat to broadcast this tick, or nil when the emit
// interval has not elapsed. phase and routine describe this device's current
// beat phase and active routine.
func (c *Coordinator) Outbound(tick uint64, phase float64, routine uint8) *Message {
	if c.emittedOnce && tick-c.lastEmitTick < c.cfg.EmitIntervalTicks {
		return nil
	}
	c.lastEmitTick = tick
	c.emittedOnce = true
	c.seq++
	return &Message{
		SenderID:  c.selfID,
		Seq:       c.seq,
		Role:      c.role,
		BeatPhase: phase,
		Routine:   routine,
	}
}

// LeaderPhase returns the most recent beat phase reported by the current
// leader, once per report. The second return is false when no fresh phase is
// available or this device leads.
func (c *Coordinator) LeaderPhase() (float64, bool) {
	if c.role == RoleLeader || !c.leaderPhaseFresh {
		return 0, false
	}
	c.leaderPhaseFresh = false
	return c.leaderPhase, true
}

// LeaderRoutine returns the routine the current leader last announced. The
// second return is false when this device leads or no leader has been heard.
func (c *Coordinator) LeaderRoutine() (uint8, bool) {
	if c.role == RoleLeader || !c.leaderSeen {
		return 0, false
	}
	return c.leaderRoutine, true
}
