// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient

import (
	"fmt"
	"io"
)

// TypeString returns the display name of a record type.
func TypeString(t uint16) string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypeMX:
		return "MX"
	default:
		return fmt.Sprintf("TYPE%d", t)
	}
}

// RenderRecord formats a single record as one report line: a type tag,
// the decoded value, the TTL, and an authoritative marker derived from
// the response header's aa flag.
func RenderRecord(rr ResourceRecord, authoritative bool) string {
	auth := "nonauth"
	if authoritative {
		auth = "auth"
	}
	switch data := rr.Data.(type) {
	case RDataA:
		return fmt.Sprintf("IP\t%s\t%d\t%s", data.Addr, rr.TTL, auth)
	case RDataName:
		return fmt.Sprintf("%s\t%s\t%d\t%s", TypeString(rr.Type), data.Name, rr.TTL, auth)
	case RDataMX:
		return fmt.Sprintf("MX\t%s\t%d\t%d\t%s", data.Exchange, data.Preference, rr.TTL, auth)
	case RDataRaw:
		return fmt.Sprintf("%s\tData: %x\t%d\t%s", TypeString(rr.Type), data.Data, rr.TTL, auth)
	default:
		// Unreachable: RData is a closed sum.
		return fmt.Sprintf("%s\t?\t%d\t%s", TypeString(rr.Type), rr.TTL, auth)
	}
}

// Render writes the report for a decoded response: the answer section
// first, then the authority and additional sections when present,
// with records in the exact order the server sent them. An empty
// answer section yields the single line NOTFOUND, which is distinct
// from a transport failure.
func Render(w io.Writer, msg *Message) {
	authoritative := msg.Header.Flags.Authoritative

	fmt.Fprintf(w, "***Answer Section (%d records)***\n", len(msg.Answers))
	if len(msg.Answers) == 0 {
		fmt.Fprintln(w, "NOTFOUND")
		return
	}
	for _, rr := range msg.Answers {
		fmt.Fprintln(w, RenderRecord(rr, authoritative))
	}

	if len(msg.Authority) > 0 {
		fmt.Fprintf(w, "\n***Authority Section (%d records)***\n", len(msg.Authority))
		for _, rr := range msg.Authority {
			fmt.Fprintln(w, RenderRecord(rr, authoritative))
		}
	}
	if len(msg.Additional) > 0 {
		fmt.Fprintf(w, "\n***Additional Section (%d records)***\n", len(msg.Additional))
		for _, rr := range msg.Additional {
			fmt.Fprintln(w, RenderRecord(rr, authoritative))
		}
	}
}
