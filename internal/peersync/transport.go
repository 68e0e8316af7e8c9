package peersync

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	// multicastGroup is the local multicast group the sync heartbeats share.
	multicastGroup = "239.255.42.99"
	// DefaultPort is the UDP port the sync group shares.
	DefaultPort = 41952
)

const inboundQueueSize = 64

// Transport carries sync heartbeats over UDP multicast on the local network.
// A reader goroutine queues inbound frames; the tick loop drains the queue
// once per tick so message handling stays inside the synchronous core.
type Transport struct {
	conn   *net.UDPConn
	group  *net.UDPAddr
	logger *slog.Logger

	inbound chan Message
	cancel  context.CancelFunc
}

// NewTransport joins the multicast group and starts the reader.
func NewTransport(ctx context.Context, port int, logger *slog.Logger) (*Transport, error) {
	if port == 0 {
		port = DefaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}

	group, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(multicastGroup, strconv.Itoa(port)))
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve sync group address")
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, eris.Wrap(err, "failed to join sync group")
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Transport{
		conn:    conn,
		group:   group,
		logger:  logger,
		inbound: make(chan Message, inboundQueueSize),
		cancel:  cancel,
	}
	go t.readLoop(ctx)
	return t, nil
}

func (t *Transport) readLoop(ctx context.Context) {
	buf := make([]byte, 64)
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			t.logger.Warn("sync read failed", slog.String("error", err.Error()))
			continue
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			t.logger.Debug("dropping malformed sync frame", slog.String("error", err.Error()))
			continue
		}

		select {
		case t.inbound <- msg:
		default:
			// Queue full, the tick loop is behind. Losing a heartbeat is fine.
		}
	}
}

// Send broadcasts one heartbeat to the group. Failures are logged, not
// fatal: a device that cannot reach the network simply leads alone.
func (t *Transport) Send(msg Message) {
	if _, err := t.conn.WriteToUDP(msg.Encode(), t.group); err != nil {
		t.logger.Warn("sync send failed", slog.String("error", err.Error()))
	}
}

// Drain returns all heartbeats received since the previous call.
func (t *Transport) Drain() []Message {
	var msgs []Message
	for {
		select {
		case msg := <-t.inbound:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// Close stops the reader and releases the socket.
func (t *Transport) Close() error {
	t.cancel()
	return t.conn.Close()
}
