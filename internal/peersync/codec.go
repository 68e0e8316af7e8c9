package peersync

import (
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"
)

// Role is a device's position in the sync group.
type Role uint8

const (
	RoleFollower Role = iota
	RoleLeader
)

func (r Role) String() string {
	if r == RoleLeader {
		return "leader"
	}
	return "follower"
}

// wire layout, big endian:
//
//	magic      uint16
//	sender_id  uint32
//	seq        uint32
//	role       uint8
//	beat_phase uint16 (fixed point, phase * 65535)
//	routine    uint8
const (
	wireMagic = uint16(0x4C43) // "LC"
	wireSize  = 14
)

// Message is one heartbeat on the sync wire. Every device broadcasts its
// identity, role, beat phase and active routine at a fixed cadence.
type Message struct {
	SenderID  uint32
	Seq       uint32
	Role      Role
	BeatPhase float64 // [0,1)
	Routine   uint8
}

// Encode serializes the message into its fixed wire form.
func (m Message) Encode() []byte {
	buf := make([]byte, wireSize)
	binary.BigEndian.PutUint16(buf[0:2], wireMagic)
	binary.BigEndian.PutUint32(buf[2:6], m.SenderID)
	binary.BigEndian.PutUint32(buf[6:10], m.Seq)
	buf[10] = byte(m.Role)

	phase := m.BeatPhase
	if phase < 0 || math.IsNaN(phase) {
		phase = 0
	}
	if phase >= 1 {
		phase = math.Mod(phase, 1)
	}
	binary.BigEndian.PutUint16(buf[11:13], uint16(phase*65535))

	buf[13] = m.Routine
	return buf
}

// Decode parses a wire frame. Truncated, oversized or foreign frames are
// rejected so a chatty network cannot corrupt peer state.
func Decode(data []byte) (Message, error) {
	if len(data) != wireSize {
		return Message{}, eris.Errorf("sync frame is %d bytes, want %d", len(data), wireSize)
	}
	if binary.BigEndian.Uint16(data[0:2]) != wireMagic {
		return Message{}, eris.New("sync frame has wrong magic")
	}

	role := Role(data[10])
	if role != RoleFollower && role != RoleLeader {
		return Message{}, eris.Errorf("sync frame has unknown role %d", data[10])
	}

	return Message{
		SenderID:  binary.BigEndian.Uint32(data[2:6]),
		Seq:       binary.BigEndian.Uint32(data[6:10]),
		Role:      role,
		BeatPhase: float64(binary.BigEndian.Uint16(data[11:13])) / 65535,
		Routine:   data[13],
	}, nil
}
