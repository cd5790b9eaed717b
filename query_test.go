// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestNewQueryDefaults(t *testing.T) {
	server := netip.MustParseAddr("132.206.44.69")
	query := NewQuery("www.mcgill.ca", TypeA, server)

	require.Equal(t, "www.mcgill.ca", query.Name)
	require.Equal(t, TypeA, query.Type)
	require.Equal(t, server, query.Server)
	require.Equal(t, DefaultPort, query.Port)
	require.Equal(t, DefaultTimeout, query.Timeout)
	require.Equal(t, DefaultMaxRetries, query.MaxRetries)
}

func TestQueryClone(t *testing.T) {
	query := &Query{
		ID:         1234,
		Name:       "www.mcgill.ca",
		Type:       TypeMX,
		Server:     netip.MustParseAddr("8.8.8.8"),
		Port:       53,
		Timeout:    time.Second,
		MaxRetries: 2,
	}

	clone := query.Clone()

	require.NotSame(t, query, clone)
	require.Equal(t, query, clone)

	clone.Name = "www.mcgill.ca."
	clone.ID = 5678

	require.Equal(t, "www.mcgill.ca", query.Name)
	require.Equal(t, uint16(1234), query.ID)
}

func TestQueryEncodeHeader(t *testing.T) {
	query := &Query{ID: 12345, Name: "www.mcgill.ca", Type: TypeA}

	raw, err := query.Encode()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 12)

	require.Equal(t, uint16(12345), binary.BigEndian.Uint16(raw[0:2]))
	// Standard query with recursion desired.
	require.Equal(t, uint16(0x0100), binary.BigEndian.Uint16(raw[2:4]))
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(raw[4:6]))
	require.Equal(t, uint16(0), binary.BigEndian.Uint16(raw[6:8]))
	require.Equal(t, uint16(0), binary.BigEndian.Uint16(raw[8:10]))
	require.Equal(t, uint16(0), binary.BigEndian.Uint16(raw[10:12]))

	// QTYPE and QCLASS trail the encoded name.
	require.Equal(t, TypeA, binary.BigEndian.Uint16(raw[len(raw)-4:]))
	require.Equal(t, ClassINET, binary.BigEndian.Uint16(raw[len(raw)-2:]))
}

func TestQueryEncodeDeterministic(t *testing.T) {
	query := &Query{ID: 7, Name: "mcgill.ca", Type: TypeNS}
	first := runtimex.PanicOnError1(query.Encode())
	second := runtimex.PanicOnError1(query.Encode())
	require.Equal(t, first, second)
}

func TestQueryEncodeInterop(t *testing.T) {
	// A query we encode must unpack cleanly with miekg/dns.
	query := &Query{ID: 4242, Name: "www.mcgill.ca", Type: TypeMX}
	raw := runtimex.PanicOnError1(query.Encode())

	var msg dns.Msg
	require.NoError(t, msg.Unpack(raw))
	require.Equal(t, uint16(4242), msg.Id)
	require.False(t, msg.Response)
	require.True(t, msg.RecursionDesired)
	require.Len(t, msg.Question, 1)
	require.Equal(t, "www.mcgill.ca.", msg.Question[0].Name)
	require.Equal(t, dns.TypeMX, msg.Question[0].Qtype)
	require.Equal(t, uint16(dns.ClassINET), msg.Question[0].Qclass)
}

func TestQueryEncodeIDNA(t *testing.T) {
	query := &Query{ID: 42, Name: "bücher.example", Type: TypeA}
	raw := runtimex.PanicOnError1(query.Encode())

	var msg dns.Msg
	require.NoError(t, msg.Unpack(raw))
	require.Len(t, msg.Question, 1)
	require.Equal(t, "xn--bcher-kva.example.", msg.Question[0].Name)
}

func TestQueryEncodeInvalidName(t *testing.T) {
	names := []string{
		"bad name.example",
		"",
	}
	for _, name := range names {
		query := &Query{ID: 1, Name: name, Type: TypeA}
		_, err := query.Encode()
		require.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}
