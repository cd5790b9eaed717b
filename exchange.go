// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jedisct1/dlog"
)

// NoResponseError means every transmission of the query timed out and
// the retry budget is exhausted.
type NoResponseError struct {
	// Retries is the number of retransmissions performed after the
	// initial send.
	Retries int
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response after %d retries", e.Retries)
}

// packetConn is the subset of [net.Conn] the exchange loop needs.
// Tests substitute an in-memory implementation that can simulate
// drops, strays and delayed replies.
type packetConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Client performs one-shot DNS exchanges over UDP.
//
// The zero value is ready to use. A Client holds no state across
// [*Client.Exchange] calls: each exchange owns its own socket and its
// own retry accounting, so concurrent queries on separate Clients (or
// the same one) never share mutable state.
type Client struct {
	// dial overrides socket creation in tests.
	dial func(server netip.Addr, port uint16) (packetConn, error)
}

func (c *Client) dialUDP(server netip.Addr, port uint16) (packetConn, error) {
	if c.dial != nil {
		return c.dial(server, port)
	}
	return net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(netip.AddrPortFrom(server, port)))
}

// exchangeState enumerates the states of the retry loop. The loop is
// written as an explicit state machine so the timeout and retry
// semantics stay inspectable and testable without real sockets.
type exchangeState int

const (
	stateIdle exchangeState = iota
	stateSent
	stateTimedOut
)

// Result is the successful outcome of an exchange.
type Result struct {
	// Msg is the decoded response.
	Msg *Message

	// Elapsed is the time between the most recent transmission and
	// the arrival of the matching response.
	Elapsed time.Duration

	// Retries is the number of retransmissions that preceded the
	// answer.
	Retries int
}

// Exchange encodes the query, sends it to the server, and waits for a
// matching response, retransmitting the same bytes on timeout up to
// q.MaxRetries times. Datagrams whose transaction ID or echoed
// question does not match, and datagrams that fail to decode, are
// discarded without restarting the timeout clock.
//
// The socket is acquired once, kept across retransmissions so the
// source port stays stable, and closed on every exit path. On
// exhaustion the returned error is a [*NoResponseError]. An error
// while encoding the outgoing query is unrecoverable and aborts
// immediately.
func (c *Client) Exchange(q *Query) (*Result, error) {
	wire, err := q.Encode()
	if err != nil {
		return nil, err
	}
	conn, err := c.dialUDP(q.Server, q.Port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	buf := make([]byte, MaxResponseSizeUDP)
	retries := 0
	var sentAt time.Time
	var deadline time.Time
	state := stateIdle
	for {
		switch state {
		case stateIdle, stateTimedOut:
			if state == stateTimedOut {
				if retries >= q.MaxRetries {
					return nil, &NoResponseError{Retries: retries}
				}
				retries++
				dlog.Debugf("query %d timed out, retransmitting (%d/%d)", q.ID, retries, q.MaxRetries)
			}
			if _, err := conn.Write(wire); err != nil {
				// A failed send is local to this attempt: wait out the
				// clock and let the retry policy decide.
				dlog.Warnf("send failed for query %d: %v", q.ID, err)
			}
			sentAt = time.Now()
			deadline = sentAt.Add(q.Timeout)
			state = stateSent

		case stateSent:
			if err := conn.SetReadDeadline(deadline); err != nil {
				return nil, err
			}
			n, err := conn.Read(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					state = stateTimedOut
					continue
				}
				dlog.Warnf("read failed for query %d: %v", q.ID, err)
				state = stateTimedOut
				continue
			}
			msg, err := ParseResponse(q, buf[:n])
			if err != nil {
				// Stray and undecodable datagrams do not end the wait:
				// keep listening on the same clock.
				dlog.Debugf("discarding datagram for query %d: %v", q.ID, err)
				continue
			}
			for _, warning := range msg.Warnings {
				dlog.Warnf("query %d: %s", q.ID, warning)
			}
			return &Result{Msg: msg, Elapsed: time.Since(sentAt), Retries: retries}, nil
		}
	}
}
