// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/net/idna"
)

// Record types understood by the decoder. Any other type is carried
// through as opaque [RDataRaw] bytes.
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypeMX    uint16 = 15
)

// ClassINET is the only class the client queries for.
const ClassINET uint16 = 1

// Response codes carried in the header rcode field.
const (
	RcodeNoError        uint8 = 0
	RcodeFormatError    uint8 = 1
	RcodeServerFailure  uint8 = 2
	RcodeNameError      uint8 = 3
	RcodeNotImplemented uint8 = 4
	RcodeRefused        uint8 = 5
)

// MaxResponseSizeUDP is the receive buffer size for a plain UDP
// response, per RFC 1035 section 2.3.4.
const MaxResponseSizeUDP = 512

// headerSize is the fixed size of the DNS message header.
const headerSize = 12

// Errors emitted while decoding a response. [ErrInvalidName] and
// [ErrMalformedPointer] may also surface from name decoding.
var (
	// ErrTruncatedMessage means the buffer is shorter than the header
	// or the section counts declare.
	ErrTruncatedMessage = errors.New("truncated DNS message")

	// ErrMalformedRecord means a record's type and rdata length
	// disagree, such as an A record whose rdata is not 4 octets.
	ErrMalformedRecord = errors.New("malformed resource record")

	// ErrStrayResponse means the datagram is not a reply to the
	// outstanding query: its transaction ID or echoed question does
	// not match, or it is not a response at all. The caller should
	// discard it and keep waiting.
	ErrStrayResponse = errors.New("response does not match the outstanding query")

	// ErrNotFound means a well-formed success response carries no
	// answer records. Distinct from a transport failure.
	ErrNotFound = errors.New("no records in the answer section")
)

// Flags is the unpacked flag portion of a [Header].
type Flags struct {
	// Response is the qr bit.
	Response bool

	// Opcode is the 4-bit operation code; 0 is a standard query.
	Opcode uint8

	// Authoritative is the aa bit.
	Authoritative bool

	// Truncated is the tc bit.
	Truncated bool

	// RecursionDesired is the rd bit.
	RecursionDesired bool

	// RecursionAvailable is the ra bit.
	RecursionAvailable bool

	// Rcode is the 4-bit response code.
	Rcode uint8
}

func flagsFromWire(v uint16) Flags {
	return Flags{
		Response:           v&0x8000 != 0,
		Opcode:             uint8(v >> 11 & 0xF),
		Authoritative:      v&0x0400 != 0,
		Truncated:          v&0x0200 != 0,
		RecursionDesired:   v&0x0100 != 0,
		RecursionAvailable: v&0x0080 != 0,
		Rcode:              uint8(v & 0xF),
	}
}

func (f Flags) wire() uint16 {
	var v uint16
	if f.Response {
		v |= 0x8000
	}
	v |= uint16(f.Opcode&0xF) << 11
	if f.Authoritative {
		v |= 0x0400
	}
	if f.Truncated {
		v |= 0x0200
	}
	if f.RecursionDesired {
		v |= 0x0100
	}
	if f.RecursionAvailable {
		v |= 0x0080
	}
	v |= uint16(f.Rcode & 0xF)
	return v
}

// Header is the fixed 12-octet DNS message header.
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is one entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// RData is the decoded rdata of a [ResourceRecord]. It is a closed sum
// over the interpretations the client understands, dispatched on the
// wire type field: [RDataA], [RDataName], [RDataMX], and [RDataRaw]
// for everything else.
type RData interface{ isRData() }

// RDataA is the rdata of an A record.
type RDataA struct {
	Addr netip.Addr
}

// RDataName is the rdata of an NS or CNAME record.
type RDataName struct {
	Name string
}

// RDataMX is the rdata of an MX record.
type RDataMX struct {
	Preference uint16
	Exchange   string
}

// RDataRaw holds the rdata of any record type the client does not
// interpret. The bytes are kept verbatim so the rest of the message
// stays aligned.
type RDataRaw struct {
	Data []byte
}

func (RDataA) isRData()    {}
func (RDataName) isRData() {}
func (RDataMX) isRData()   {}
func (RDataRaw) isRData()  {}

// ResourceRecord is a single decoded resource record. Records are
// never mutated after decoding.
type ResourceRecord struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	Data  RData
}

// Message is a decoded DNS response. Questions and records appear in
// the exact order they were received: for MX answers that order is the
// only signal of server-assigned priority, so it must survive into
// presentation.
type Message struct {
	Header Header

	Questions []Question

	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord

	// Warnings collects tolerated oddities found while decoding,
	// such as an unexpected opcode or class. They do not stop the
	// decode.
	Warnings []string
}

// Case-insensitive ASCII name comparison, as done by the net package.
func equalASCIIName(x, y string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := 0; i < len(x); i++ {
		a := x[i]
		b := y[i]
		if 'A' <= a && a <= 'Z' {
			a += 0x20
		}
		if 'A' <= b && b <= 'Z' {
			b += 0x20
		}
		if a != b {
			return false
		}
	}
	return true
}

// ParseResponse decodes data as a response to query.
//
// A datagram whose transaction ID, response bit, or echoed question
// does not match the query yields [ErrStrayResponse]: the caller
// should ignore the datagram and keep waiting rather than treat it as
// a failure. Structural problems yield [ErrTruncatedMessage],
// [ErrMalformedPointer] or [ErrMalformedRecord]. An unexpected opcode
// or class is tolerated and recorded in [Message.Warnings].
func ParseResponse(query *Query, data []byte) (*Message, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrTruncatedMessage, len(data))
	}

	msg := &Message{}
	msg.Header.ID = binary.BigEndian.Uint16(data[0:])
	msg.Header.Flags = flagsFromWire(binary.BigEndian.Uint16(data[2:]))
	msg.Header.QDCount = binary.BigEndian.Uint16(data[4:])
	msg.Header.ANCount = binary.BigEndian.Uint16(data[6:])
	msg.Header.NSCount = binary.BigEndian.Uint16(data[8:])
	msg.Header.ARCount = binary.BigEndian.Uint16(data[10:])

	// 1. make sure the datagram answers the outstanding query: the
	// transaction ID matches and the message is actually a response.
	if msg.Header.ID != query.ID {
		return nil, fmt.Errorf("%w: id %d, want %d", ErrStrayResponse, msg.Header.ID, query.ID)
	}
	if !msg.Header.Flags.Response {
		return nil, fmt.Errorf("%w: not a response", ErrStrayResponse)
	}
	if msg.Header.Flags.Opcode != 0 {
		msg.Warnings = append(msg.Warnings, fmt.Sprintf("unexpected opcode %d in response", msg.Header.Flags.Opcode))
	}

	// 2. read the echoed questions and make sure the first one is the
	// question we asked. A mismatch is treated exactly like an ID
	// mismatch: ignore the datagram and keep waiting.
	off := headerSize
	for i := uint16(0); i < msg.Header.QDCount; i++ {
		question, newOff, err := parseQuestion(data, off)
		if err != nil {
			return nil, err
		}
		msg.Questions = append(msg.Questions, question)
		off = newOff
	}
	wantName, err := query.asciiName()
	if err != nil {
		return nil, err
	}
	if len(msg.Questions) != 1 {
		return nil, fmt.Errorf("%w: %d echoed questions", ErrStrayResponse, len(msg.Questions))
	}
	echoed := msg.Questions[0]
	if !equalASCIIName(echoed.Name, wantName) || echoed.Type != query.Type {
		return nil, fmt.Errorf("%w: echoed question %q type %d", ErrStrayResponse, echoed.Name, echoed.Type)
	}
	if echoed.Class != ClassINET {
		msg.Warnings = append(msg.Warnings, fmt.Sprintf("unexpected class %d in echoed question", echoed.Class))
	}

	// 3. read the answer, authority and additional sections, in wire
	// order. The declared counts must match the bytes present.
	if msg.Answers, off, err = parseSection(msg, data, off, msg.Header.ANCount); err != nil {
		return nil, err
	}
	if msg.Authority, off, err = parseSection(msg, data, off, msg.Header.NSCount); err != nil {
		return nil, err
	}
	if msg.Additional, _, err = parseSection(msg, data, off, msg.Header.ARCount); err != nil {
		return nil, err
	}
	return msg, nil
}

func parseQuestion(data []byte, off int) (Question, int, error) {
	name, off, err := decodeName(data, off)
	if err != nil {
		return Question{}, 0, err
	}
	if off+4 > len(data) {
		return Question{}, 0, fmt.Errorf("%w: question at offset %d", ErrTruncatedMessage, off)
	}
	question := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[off:]),
		Class: binary.BigEndian.Uint16(data[off+2:]),
	}
	return question, off + 4, nil
}

func parseSection(msg *Message, data []byte, off int, count uint16) ([]ResourceRecord, int, error) {
	records := make([]ResourceRecord, 0, count)
	for i := uint16(0); i < count; i++ {
		rr, newOff, err := parseRecord(msg, data, off)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rr)
		off = newOff
	}
	return records, off, nil
}

func parseRecord(msg *Message, data []byte, off int) (ResourceRecord, int, error) {
	name, off, err := decodeName(data, off)
	if err != nil {
		return ResourceRecord{}, 0, err
	}
	if off+10 > len(data) {
		return ResourceRecord{}, 0, fmt.Errorf("%w: record at offset %d", ErrTruncatedMessage, off)
	}
	rr := ResourceRecord{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[off:]),
		Class: binary.BigEndian.Uint16(data[off+2:]),
		TTL:   binary.BigEndian.Uint32(data[off+4:]),
	}
	rdlength := int(binary.BigEndian.Uint16(data[off+8:]))
	off += 10
	if off+rdlength > len(data) {
		return ResourceRecord{}, 0, fmt.Errorf("%w: rdata at offset %d", ErrTruncatedMessage, off)
	}
	if rr.Class != ClassINET {
		msg.Warnings = append(msg.Warnings, fmt.Sprintf("unexpected class %d in record for %q", rr.Class, rr.Name))
	}

	// The rdata interpretation is dispatched purely on the wire type
	// field. NS, CNAME and MX rdata may contain compression pointers
	// into the rest of the message, so they decode against the whole
	// buffer, not just the rdata slice.
	switch rr.Type {
	case TypeA:
		if rdlength != 4 {
			return ResourceRecord{}, 0, fmt.Errorf("%w: A record with rdlength %d", ErrMalformedRecord, rdlength)
		}
		rr.Data = RDataA{Addr: netip.AddrFrom4([4]byte(data[off : off+4]))}
	case TypeNS, TypeCNAME:
		target, _, err := decodeName(data, off)
		if err != nil {
			return ResourceRecord{}, 0, err
		}
		rr.Data = RDataName{Name: target}
	case TypeMX:
		if rdlength < 3 {
			return ResourceRecord{}, 0, fmt.Errorf("%w: MX record with rdlength %d", ErrMalformedRecord, rdlength)
		}
		exchange, _, err := decodeName(data, off+2)
		if err != nil {
			return ResourceRecord{}, 0, err
		}
		rr.Data = RDataMX{
			Preference: binary.BigEndian.Uint16(data[off:]),
			Exchange:   exchange,
		}
	default:
		rr.Data = RDataRaw{Data: append([]byte(nil), data[off:off+rdlength]...)}
	}
	return rr, off + rdlength, nil
}

// ServerError is a well-formed negative answer: the server replied but
// declined the query with a non-zero rcode. It is not a decode failure.
type ServerError struct {
	Rcode uint8
}

func (e *ServerError) Error() string {
	switch e.Rcode {
	case RcodeFormatError:
		return "format error: the name server was unable to interpret the query"
	case RcodeServerFailure:
		return "server failure: the name server was unable to process this query due to a problem with the name server"
	case RcodeNameError:
		return "name error: the domain name referenced in the query does not exist"
	case RcodeNotImplemented:
		return "not implemented: the name server does not support the requested kind of query"
	case RcodeRefused:
		return "refused: the name server refuses to perform the requested operation for policy reasons"
	default:
		return fmt.Sprintf("server returned rcode %d", e.Rcode)
	}
}

// NotFound reports whether the server said the queried name does not
// exist (NXDOMAIN). Callers report this case as NOTFOUND rather than
// as an error.
func (e *ServerError) NotFound() bool {
	return e.Rcode == RcodeNameError
}

// ResponseError maps a decoded message to the caller-facing negative
// outcomes: a [*ServerError] when the rcode is non-zero, and
// [ErrNotFound] when a success response carries no answers. It returns
// nil when the message has answers to present.
func ResponseError(msg *Message) error {
	if msg.Header.Flags.Rcode != RcodeNoError {
		return &ServerError{Rcode: msg.Header.Flags.Rcode}
	}
	if len(msg.Answers) == 0 {
		return ErrNotFound
	}
	return nil
}

// asciiName returns the query name in punycoded ASCII form without the
// trailing dot, which is the form names take after wire decoding.
func (q *Query) asciiName() (string, error) {
	punyName, err := idna.Lookup.ToASCII(strings.TrimSuffix(q.Name, "."))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return punyName, nil
}
