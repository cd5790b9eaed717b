// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Default exchange parameters, matching what the CLI documents.
const (
	DefaultPort       uint16 = 53
	DefaultTimeout           = 5 * time.Second
	DefaultMaxRetries        = 3
)

// Query describes a single DNS question together with the server to
// ask and the retry policy to use.
//
// Construct using [NewQuery] or set the MANDATORY fields. A Query is
// immutable once handed to [*Client.Exchange]: the same encoded bytes,
// with the same transaction ID, are retransmitted on every retry so
// that a late reply to an earlier attempt is still accepted.
type Query struct {
	// ID is the transaction ID used to match the response to this
	// query. [NewQuery] picks a random one.
	ID uint16

	// Name is the MANDATORY domain name to query.
	Name string

	// Type is the query type. Use [TypeA], [TypeNS] or [TypeMX].
	Type uint16

	// Server is the MANDATORY IPv4 address of the name server.
	Server netip.Addr

	// Port is the server port, usually [DefaultPort].
	Port uint16

	// Timeout bounds each individual wait for a response.
	Timeout time.Duration

	// MaxRetries is the number of retransmissions allowed after the
	// initial send.
	MaxRetries int
}

// NewQuery constructs a [*Query] with a random transaction ID and the
// default port, timeout and retry policy.
func NewQuery(name string, qtype uint16, server netip.Addr) *Query {
	return &Query{
		ID:         dns.Id(),
		Name:       name,
		Type:       qtype,
		Server:     server,
		Port:       DefaultPort,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// Clone returns a copy of the query.
func (q *Query) Clone() *Query {
	clone := *q
	return &clone
}

// Encode serializes the query into a DNS message: a standard query
// header with recursion desired, followed by a single IN question.
// The name is IDNA-encoded first. Deterministic for a given ID.
func (q *Query) Encode() ([]byte, error) {
	punyName, err := q.asciiName()
	if err != nil {
		return nil, err
	}
	wireName, err := encodeName(punyName)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(wireName)+4)
	out = binary.BigEndian.AppendUint16(out, q.ID)
	out = binary.BigEndian.AppendUint16(out, Flags{RecursionDesired: true}.wire())
	out = binary.BigEndian.AppendUint16(out, 1) // QDCOUNT
	out = binary.BigEndian.AppendUint16(out, 0) // ANCOUNT
	out = binary.BigEndian.AppendUint16(out, 0) // NSCOUNT
	out = binary.BigEndian.AppendUint16(out, 0) // ARCOUNT
	out = append(out, wireName...)
	out = binary.BigEndian.AppendUint16(out, q.Type)
	out = binary.BigEndian.AppendUint16(out, ClassINET)
	return out, nil
}
