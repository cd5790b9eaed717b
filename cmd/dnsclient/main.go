// SPDX-License-Identifier: GPL-3.0-or-later

// Command dnsclient sends a single DNS query over UDP and prints the
// answer records.
//
// Usage:
//
//	dnsclient [-t timeout] [-r max-retries] [-p port] [-mx|-ns] @server name
//
// The server must be an IPv4 address. The timeout is in seconds
// (default 5), max-retries defaults to 3, and the port defaults to 53.
// The query type is A unless -mx or -ns is given.
package main

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	dnsclient "github.com/Nicolas-Bolouri/DnsClient"
	"github.com/jedisct1/dlog"
)

type options struct {
	timeout    time.Duration
	maxRetries int
	port       uint16
	qtype      uint16
	server     netip.Addr
	name       string
}

func parseArgs(argv []string) (*options, error) {
	opts := &options{
		timeout:    dnsclient.DefaultTimeout,
		maxRetries: dnsclient.DefaultMaxRetries,
		port:       dnsclient.DefaultPort,
		qtype:      dnsclient.TypeA,
	}
	var haveServer bool
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-t":
			i++
			if i >= len(argv) {
				return nil, errors.New("Incorrect input syntax: Missing value for -t")
			}
			seconds, err := strconv.ParseFloat(argv[i], 64)
			if err != nil || seconds <= 0 {
				return nil, fmt.Errorf("Incorrect input syntax: Invalid value for -t: %s", argv[i])
			}
			opts.timeout = time.Duration(seconds * float64(time.Second))
		case arg == "-r":
			i++
			if i >= len(argv) {
				return nil, errors.New("Incorrect input syntax: Missing value for -r")
			}
			retries, err := strconv.Atoi(argv[i])
			if err != nil || retries < 0 {
				return nil, fmt.Errorf("Incorrect input syntax: Invalid value for -r: %s", argv[i])
			}
			opts.maxRetries = retries
		case arg == "-p":
			i++
			if i >= len(argv) {
				return nil, errors.New("Incorrect input syntax: Missing value for -p")
			}
			port, err := strconv.ParseUint(argv[i], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("Incorrect input syntax: Invalid value for -p: %s", argv[i])
			}
			opts.port = uint16(port)
		case arg == "-mx":
			if opts.qtype != dnsclient.TypeA {
				return nil, errors.New("Cannot specify both -mx and -ns")
			}
			opts.qtype = dnsclient.TypeMX
		case arg == "-ns":
			if opts.qtype != dnsclient.TypeA {
				return nil, errors.New("Cannot specify both -mx and -ns")
			}
			opts.qtype = dnsclient.TypeNS
		case strings.HasPrefix(arg, "@"):
			if haveServer {
				return nil, fmt.Errorf("Unexpected argument: %s", arg)
			}
			server, err := netip.ParseAddr(arg[1:])
			if err != nil || !server.Is4() {
				return nil, errors.New("Invalid DNS server provided. The server should be a valid IPv4 address.")
			}
			opts.server = server
			haveServer = true
		case opts.name == "" && !strings.HasPrefix(arg, "-"):
			opts.name = arg
		default:
			return nil, fmt.Errorf("Unexpected argument: %s", arg)
		}
	}
	if !haveServer || opts.name == "" {
		return nil, errors.New("Incorrect input syntax: Missing server or name")
	}
	return opts, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Printf("ERROR\t"+format+"\n", args...)
	os.Exit(1)
}

func main() {
	dlog.Init("dnsclient", dlog.SeverityNotice, "DAEMON")

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fatalf("%v", err)
	}

	query := dnsclient.NewQuery(opts.name, opts.qtype, opts.server)
	query.Port = opts.port
	query.Timeout = opts.timeout
	query.MaxRetries = opts.maxRetries

	fmt.Printf("DnsClient sending request for %s\n", opts.name)
	fmt.Printf("Server: %s\n", opts.server)
	fmt.Printf("Request type: %s\n\n", dnsclient.TypeString(opts.qtype))

	client := &dnsclient.Client{}
	result, err := client.Exchange(query)
	if err != nil {
		var noResponse *dnsclient.NoResponseError
		if errors.As(err, &noResponse) {
			fatalf("Maximum number of retries %d exceeded", noResponse.Retries)
		}
		fatalf("%v", err)
	}

	fmt.Printf("Response received after %.3f seconds (%d retries)\n\n",
		result.Elapsed.Seconds(), result.Retries)

	msg := result.Msg
	var serverErr *dnsclient.ServerError
	if errors.As(dnsclient.ResponseError(msg), &serverErr) {
		if serverErr.NotFound() {
			fmt.Println("NOTFOUND")
			return
		}
		fmt.Printf("ERROR\t%v\n", serverErr)
		return
	}

	if !msg.Header.Flags.RecursionAvailable {
		fmt.Println("ERROR\tUnexpected response: DNS Server does not support recursive queries")
	}
	dnsclient.Render(os.Stdout, msg)
}
