// Command bgpd wires the protocol engine into a runnable process: a
// hardcoded single-neighbor session (config-DSL parsing is out of scope)
// driven from stdio as its API channel, plus a Prometheus
// /metrics endpoint. It exists to prove the engine runs end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nexthop-labs/bgpd/api"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/internal/log"
	"github.com/nexthop-labs/bgpd/internal/metrics"
	"github.com/nexthop-labs/bgpd/reactor"
	"github.com/nexthop-labs/bgpd/wire"
)

func main() {
	var (
		bindAddr     = flag.String("bind", "0.0.0.0", "local address to listen for inbound BGP sessions on")
		peerAddr     = flag.String("peer", "", "peer address to establish a BGP session with (required)")
		peerASN      = flag.Uint("peer-asn", 0, "peer autonomous system number (required)")
		localASN     = flag.Uint("local-asn", 0, "local autonomous system number (required)")
		holdTime     = flag.Duration("hold-time", 90*time.Second, "BGP hold time to propose")
		passive      = flag.Bool("passive", false, "never dial out; only accept an inbound connection")
		metricsAddr  = flag.String("metrics-addr", ":9179", "address to serve /metrics on")
		logLevel     = flag.String("log-level", "info", "logrus level: debug, info, warn, error")
		jsonEvents   = flag.Bool("json-events", false, "emit events as JSON instead of text")
	)
	flag.Parse()

	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}
	logger := log.Component("cmd/bgpd")

	if *peerAddr == "" || *peerASN == 0 || *localASN == 0 {
		fmt.Fprintln(os.Stderr, "bgpd: -peer, -peer-asn and -local-asn are required")
		flag.Usage()
		os.Exit(2)
	}

	peerIP := net.ParseIP(*peerAddr)
	if peerIP == nil {
		logger.Fatalf("invalid -peer address %q", *peerAddr)
	}

	nb := config.Neighbor{
		PeerAddress: peerIP,
		PeerASN:     wire.ASN(*peerASN),
		LocalASN:    wire.ASN(*localASN),
		HoldTime:    *holdTime,
		Passive:     *passive,
		Families:    []wire.Family{wire.IPv4Unicast, wire.IPv6Unicast},
		ASN4:        true,
		RouteRefresh: true,
	}

	ctx, cancel := signalContext()
	defer cancel()

	r := reactor.New(net.ParseIP(*bindAddr))
	r.AddNeighbor(ctx, nb)

	go serveMetrics(*metricsAddr, logger)
	go pumpEvents(r, *jsonEvents)
	go runAPI(ctx, r, logger)

	logger.WithField("peer", nb.PeerAddress).Info("bgpd starting")
	if err := r.Run(ctx); err != nil {
		logger.WithError(err).Fatal("reactor exited")
	}
	logger.Info("bgpd stopped")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the
// signal-to-action mapping left to the CLI wrapper.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func serveMetrics(addr string, logger *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttpHandler())
	logger.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("metrics server exited")
	}
}

func promhttpHandler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

// pumpEvents encodes every neighbor's session/message events to stdout,
// standing in for the spawned helper process.
func pumpEvents(r *reactor.Reactor, jsonEvents bool) {
	enc := api.NewEncoder(os.Stdout, jsonEvents)
	api.Pump(r.Events(), enc)
}

// runAPI reads line-oriented commands from stdin, the text half of
// the API channel.
func runAPI(ctx context.Context, r *reactor.Reactor, logger *logrus.Entry) {
	parser := api.NewParser(r)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		reply, err := parser.Execute(scanner.Text())
		if err != nil {
			logger.WithError(err).Warn("api command failed")
			continue
		}
		if reply != "" {
			fmt.Println(reply)
		}
	}
}
