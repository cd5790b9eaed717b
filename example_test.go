// SPDX-License-Identifier: GPL-3.0-or-later

package dnsclient_test

import (
	"fmt"
	"net"
	"os"

	dnsclient "github.com/Nicolas-Bolouri/DnsClient"
	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
)

// Use a deterministic transaction ID to have deterministic output.
//
// In production, [dnsclient.NewQuery] picks a random one.
func fixedQueryID() uint16 {
	return 37
}

func Example_encodeQuery() {
	query := &dnsclient.Query{
		ID:   fixedQueryID(),
		Name: "www.mcgill.ca",
		Type: dnsclient.TypeA,
	}
	raw := runtimex.PanicOnError1(query.Encode())
	fmt.Printf("%x\n", raw)

	// Output:
	// 00250100000100000000000003777777066d6367696c6c02636100010001
}

func Example_renderResponse() {
	query := &dnsclient.Query{
		ID:   fixedQueryID(),
		Name: "www.mcgill.ca",
		Type: dnsclient.TypeA,
	}

	// A response as it would arrive from an authoritative server.
	reply := new(dns.Msg)
	reply.SetQuestion("www.mcgill.ca.", dns.TypeA)
	reply.Id = query.ID
	reply.Response = true
	reply.Authoritative = true
	reply.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "www.mcgill.ca.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.IPv4(132, 206, 6, 95),
	}}
	raw := runtimex.PanicOnError1(reply.Pack())

	msg := runtimex.PanicOnError1(dnsclient.ParseResponse(query, raw))
	dnsclient.Render(os.Stdout, msg)

	// Output:
	// ***Answer Section (1 records)***
	// IP	132.206.6.95	300	auth
}
