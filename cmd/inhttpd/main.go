package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/fastware/inhttp"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/tcplisten"
	"golang.org/x/sync/errgroup"
)

var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inhttpd_requests_total",
		Help: "Requests parsed successfully.",
	})
	parseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inhttpd_parse_errors_total",
		Help: "Requests rejected by the parser.",
	})
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := inhttp.FromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	cfg.Logger = logger

	addr := envOr("INHTTPD_ADDR", ":8080")
	metricsAddr := envOr("INHTTPD_METRICS_ADDR", ":9090")

	lnCfg := tcplisten.Config{ReusePort: true, DeferAccept: true}
	ln, err := lnCfg.NewListener("tcp4", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("listen")
	}

	var g errgroup.Group
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		return http.ListenAndServe(metricsAddr, mux)
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("accepting connections")
		for {
			c, err := ln.Accept()
			if err != nil {
				return err
			}
			go handleConn(cfg, logger, c)
		}
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// handleConn parses successive pipelined requests off one connection and
// answers each with a plain-text echo of the request line.
func handleConn(cfg *inhttp.Config, logger zerolog.Logger, c net.Conn) {
	defer func() { _ = c.Close() }()

	log := logger.With().Str("conn", uuid.NewString()).Logger()
	src := inhttp.NewSource(c)

	for n := 1; ; n++ {
		req, err := inhttp.NewRequest(cfg, src, c.RemoteAddr(), n)
		if errors.Is(err, inhttp.NoNextMessageErr) {
			return
		}
		if err != nil {
			parseErrorsTotal.Inc()
			log.Warn().Err(err).Int("req", n).Msg("parse failed")
			_, _ = io.WriteString(c, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
			return
		}
		requestsTotal.Inc()

		// The body must be drained before the next pipelined request can
		// be parsed off the same source.
		if _, err := req.Body.Discard(); err != nil {
			log.Warn().Err(err).Int("req", n).Msg("drain body")
			return
		}

		body := fmt.Sprintf("%s %s %s\n", req.Method, req.URI.Path, req.Scheme)
		connection := "keep-alive"
		if req.ShouldClose() {
			connection = "close"
		}
		_, err = fmt.Fprintf(c, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: %s\r\n\r\n%s",
			len(body), connection, body)
		if err != nil || req.ShouldClose() {
			return
		}
	}
}
