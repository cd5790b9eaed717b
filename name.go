// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// maxLabelLength is the RFC 1035 limit on a single label.
	maxLabelLength = 63

	// maxNameLength is the RFC 1035 limit on a whole encoded name.
	maxNameLength = 255

	// maxPointerHops bounds compression pointer chains so that a
	// malformed or malicious pointer cycle cannot make decoding
	// loop forever.
	maxPointerHops = 20
)

// Errors emitted while encoding and decoding domain names.
var (
	// ErrInvalidName means a domain name cannot be encoded because a
	// label is empty or exceeds 63 octets, or the whole name exceeds
	// 255 octets.
	ErrInvalidName = errors.New("invalid domain name")

	// ErrMalformedPointer means a compression pointer is truncated,
	// points forward, uses a reserved label type, or chains beyond
	// the hop budget.
	ErrMalformedPointer = errors.New("malformed compression pointer")
)

// encodeName converts a dotted domain name into its wire representation:
// a sequence of length-prefixed labels terminated by a zero octet. A
// trailing dot on the input is accepted and ignored.
func encodeName(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ".")
	out := make([]byte, 0, len(name)+2)
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if len(label) < 1 || len(label) > maxLabelLength {
				return nil, fmt.Errorf("%w: bad label %q", ErrInvalidName, label)
			}
			out = append(out, byte(len(label)))
			out = append(out, label...)
		}
	}
	out = append(out, 0)
	if len(out) > maxNameLength {
		return nil, fmt.Errorf("%w: name exceeds %d octets", ErrInvalidName, maxNameLength)
	}
	return out, nil
}

// decodeName reads a domain name from buf starting at off, following
// compression pointers. It returns the dotted name and the offset of
// the first byte after the name in its original location: a pointer
// contributes two octets no matter how much label data it reaches.
//
// Pointers must target an offset strictly before the pointer itself,
// and at most maxPointerHops jumps are followed. Together these bound
// decoding on any input.
func decodeName(buf []byte, off int) (string, int, error) {
	var labels []string
	next := -1 // resume offset in the original location, set on first jump
	hops := 0
	for {
		if off >= len(buf) {
			return "", 0, fmt.Errorf("%w: name runs past offset %d", ErrTruncatedMessage, off)
		}
		length := int(buf[off])
		switch {
		case length == 0:
			off++
			if next < 0 {
				next = off
			}
			return strings.Join(labels, "."), next, nil
		case length&0xC0 == 0xC0:
			if off+2 > len(buf) {
				return "", 0, fmt.Errorf("%w: truncated pointer at offset %d", ErrMalformedPointer, off)
			}
			target := int(binary.BigEndian.Uint16(buf[off:]) & 0x3FFF)
			if target >= off {
				return "", 0, fmt.Errorf("%w: pointer at offset %d targets %d", ErrMalformedPointer, off, target)
			}
			hops++
			if hops > maxPointerHops {
				return "", 0, fmt.Errorf("%w: more than %d hops", ErrMalformedPointer, maxPointerHops)
			}
			if next < 0 {
				next = off + 2
			}
			off = target
		case length&0xC0 != 0:
			return "", 0, fmt.Errorf("%w: reserved label type 0x%02x", ErrMalformedPointer, length&0xC0)
		default:
			off++
			if off+length > len(buf) {
				return "", 0, fmt.Errorf("%w: label runs past offset %d", ErrTruncatedMessage, off)
			}
			labels = append(labels, string(buf[off:off+length]))
			off += length
		}
	}
}
