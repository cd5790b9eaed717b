// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsclient implements a minimal DNS client over UDP.
//
// [NewQuery] and [*Query] construct and serialize a query message.
// [ParseResponse] and [*Message] decode and validate a raw response,
// including compressed domain names. [*Client] drives the
// send/wait/retry exchange with a server and reports the decoded
// message together with the elapsed time and the retry count. [Render]
// turns the decoded records into the report printed by the CLI.
//
// Unlike most Go DNS clients, this package does not delegate the wire
// format to [github.com/miekg/dns]: the codec is implemented here,
// limited to the record types the client can display (A, NS, CNAME
// and MX, with an opaque fallback for everything else).
package dnsclient
