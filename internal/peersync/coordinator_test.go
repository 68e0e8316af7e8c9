package peersync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	in := Message{SenderID: 0xDEADBEEF, Seq: 42, Role: RoleLeader, BeatPhase: 0.25, Routine: 3}

	out, err := Decode(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in.SenderID, out.SenderID)
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Role, out.Role)
	assert.InDelta(t, in.BeatPhase, out.BeatPhase, 1.0/65535)
	assert.Equal(t, in.Routine, out.Routine)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	_, err := Decode([]byte{0x4C, 0x43, 0x00})
	assert.Error(t, err, "truncated frame")

	frame := Message{SenderID: 1, Seq: 1}.Encode()
	frame[0] = 0xFF
	_, err = Decode(frame)
	assert.Error(t, err, "wrong magic")

	frame = Message{SenderID: 1, Seq: 1}.Encode()
	frame[10] = 99
	_, err = Decode(frame)
	assert.Error(t, err, "unknown role")
}

func TestElectionConvergesOnHighestID(t *testing.T) {
	ids := []uint32{10, 20, 30}
	coords := make([]*Coordinator, len(ids))
	for i, id := range ids {
		coords[i] = NewCoordinator(Config{EmitIntervalTicks: 30}, id, nil)
	}

	// Everyone hears everyone once.
	for _, c := range coords {
		for i, id := range ids {
			c.Observe(Message{SenderID: id, Seq: 1, Role: coords[i].Role()}, 100)
		}
		c.Tick(100)
	}

	assert.Equal(t, RoleFollower, coords[0].Role())
	assert.Equal(t, RoleFollower, coords[1].Role())
	assert.Equal(t, RoleLeader, coords[2].Role())
}

func TestStaleSequenceIsDiscarded(t *testing.T) {
	c := NewCoordinator(Config{}, 1, nil)

	require.True(t, c.Observe(Message{SenderID: 2, Seq: 5, BeatPhase: 0.5, Role: RoleLeader}, 100))
	assert.False(t, c.Observe(Message{SenderID: 2, Seq: 5, BeatPhase: 0.9, Role: RoleLeader}, 101), "replayed seq")
	assert.False(t, c.Observe(Message{SenderID: 2, Seq: 3, BeatPhase: 0.9, Role: RoleLeader}, 102), "reordered straggler")

	c.Tick(102)
	phase, ok := c.LeaderPhase()
	require.True(t, ok)
	assert.InDelta(t, 0.5, phase, 1e-9, "stale messages must not update peer state")
}

func TestSilentPeerExpiresAndLeadershipReturns(t *testing.T) {
	c := NewCoordinator(Config{EmitIntervalTicks: 30, TimeoutMultiple: 3}, 1, nil)

	c.Observe(Message{SenderID: 9, Seq: 1, Role: RoleLeader}, 100)
	c.Tick(100)
	require.Equal(t, RoleFollower, c.Role())

	c.Tick(190)
	assert.Equal(t, RoleFollower, c.Role(), "peer still within timeout")

	c.Tick(191)
	assert.Equal(t, RoleLeader, c.Role(), "silent peer dropped after three missed heartbeats")
	assert.Zero(t, c.Peers())
}

func TestOutboundHonorsEmitInterval(t *testing.T) {
	c := NewCoordinator(Config{EmitIntervalTicks: 30}, 7, nil)

	first := c.Outbound(100, 0.1, 0)
	require.NotNil(t, first)
	assert.Equal(t, uint32(1), first.Seq)

	assert.Nil(t, c.Outbound(129, 0.2, 0))

	second := c.Outbound(130, 0.2, 0)
	require.NotNil(t, second)
	assert.Equal(t, uint32(2), second.Seq, "sequence numbers strictly increase")
}

func TestLeaderPhaseIsConsumedOncePerReport(t *testing.T) {
	c := NewCoordinator(Config{}, 1, nil)

	c.Observe(Message{SenderID: 5, Seq: 1, Role: RoleLeader, BeatPhase: 0.75, Routine: 2}, 100)
	c.Tick(100)

	phase, ok := c.LeaderPhase()
	require.True(t, ok)
	assert.InDelta(t, 0.75, phase, 1.0/65535)

	_, ok = c.LeaderPhase()
	assert.False(t, ok, "phase is fresh only once per heartbeat")

	routine, ok := c.LeaderRoutine()
	require.True(t, ok)
	assert.Equal(t, uint8(2), routine)
}

func TestLeaderIgnoresRemotePhase(t *testing.T) {
	c := NewCoordinator(Config{}, 100, nil)

	c.Observe(Message{SenderID: 5, Seq: 1, Role: RoleLeader, BeatPhase: 0.75}, 100)
	c.Tick(100)

	require.Equal(t, RoleLeader, c.Role(), "highest ID keeps leading")
	_, ok := c.LeaderPhase()
	assert.False(t, ok)
}
