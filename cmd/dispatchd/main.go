// Command dispatchd is a minimal demo binary: it wires a Static router,
// an outbound Registry holding one handler, a DNS resolver and a real
// transport.Dialer, then runs a TCP listener that drives every accepted
// flow through dispatcher.Dispatcher end to end. It exists to exercise
// the stack the way cmd/cloudflared exercises the supervisor — it is
// not meant to be a production proxy entrypoint.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/wraithproxy/dispatch/accesslog"
	"github.com/wraithproxy/dispatch/dispatcher"
	"github.com/wraithproxy/dispatch/dnsclient"
	"github.com/wraithproxy/dispatch/logger"
	"github.com/wraithproxy/dispatch/option"
	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/outboundmgr"
	"github.com/wraithproxy/dispatch/router"
	"github.com/wraithproxy/dispatch/session"
	"github.com/wraithproxy/dispatch/transport"
)

func main() {
	app := &cli.App{
		Name:  "dispatchd",
		Usage: "demo traffic dispatcher",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: "127.0.0.1:1080", Usage: "address to accept inbound TCP flows on"},
			&cli.StringFlag{Name: "forward", Value: "", Usage: "static destination every flow is dispatched to (host:port)"},
			&cli.BoolFlag{Name: "color", Value: true, Usage: "colorize the access log"},
			&cli.StringFlag{Name: logger.LogLevelFlag, Value: "info", Usage: "zerolog level"},
			&cli.StringFlag{Name: logger.LogDirectoryFlag, Value: "", Usage: "directory for a rolling log file; empty disables it"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("dispatchd exited")
	}
}

func run(c *cli.Context) error {
	log := *logger.CreateFromContext(c, false)

	forward := c.String("forward")
	if forward == "" {
		return cli.Exit("must pass --forward host:port", 1)
	}
	host, portStr, err := net.SplitHostPort(forward)
	if err != nil {
		return cli.Exit(err, 1)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return cli.Exit(err, 1)
	}

	opts := option.FromEnv()
	dns := dnsclient.New([]string{"1.1.1.1:53", "8.8.8.8:53"}, opts.DNSTimeout, opts.MaxDNSRetries)
	dialer := transport.New(dns, opts)

	addr := destAddr(host, port)
	direct := outbound.NewDirect("direct", addr, outbound.TransportStream)

	reg := outboundmgr.NewRegistry()
	reg.Register("direct", direct)
	reg.SetDefault("direct")

	static := router.NewStatic(nil, "direct")

	access := accesslog.NewStdout(c.Bool("color"))
	d := dispatcher.New(static, reg, dialer, opts, log, access)

	ln, err := net.Listen("tcp", c.String("listen"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	log.Info().Str("listen", c.String("listen")).Str("forward", forward).Msg("dispatchd listening")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		go func(conn net.Conn) {
			sess := session.New("demo-in", session.TCP, conn.RemoteAddr(), addr)
			flowCtx, flowCancel := context.WithTimeout(ctx, 2*time.Minute)
			defer flowCancel()
			d.DispatchTCP(flowCtx, sess, conn)
		}(conn)
	}
}

func destAddr(host string, port uint16) session.SocksAddr {
	if ip := net.ParseIP(host); ip != nil {
		return session.NewIPAddr(ip, port)
	}
	addr, err := session.NewDomainAddr(host, port)
	if err != nil {
		return session.NewIPAddr(net.IPv4zero, port)
	}
	return addr
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(p), nil
}
