// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	coap "github.com/qwerty-iot/cloudcoap"
	"github.com/qwerty-iot/cloudcoap/cloud"
	"github.com/qwerty-iot/cloudcoap/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type listener interface {
	Listen(r coap.Receiver)
	io.Closer
}

// session is one channel to the peer, driven by an executor.
type session struct {
	cfg    config
	logger *zap.Logger
	tr     listener
	ch     *coap.Channel
	exec   *coap.Executor
	cloud  *cloud.Cloud
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func openSession(ctx context.Context, cmd string, cfg config) (*session, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("cmd", cmd), zap.String("peer", cfg.Peer))
	coap.SetLogger(logger)
	coap.SetLogLevel(cfg.LogLevel)
	if cfg.Sniff {
		coap.SetSniffer(func(p coap.Packet) {
			logger.Info("datagram "+p.Op,
				zap.String("transport", p.Transport),
				zap.String("from", p.From),
				zap.String("to", p.To),
				zap.String("data", hex.EncodeToString(p.Data)))
		})
	}

	var tr interface {
		listener
		coap.Transport
	}
	switch cfg.Transport {
	case "websocket":
		tr, err = coap.DialWebSocket(ctx, "websocket", cfg.Peer, nil)
	default:
		tr, err = coap.DialUDP("udp", cfg.Peer)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Peer, err)
	}

	s := &session{cfg: cfg, logger: logger, tr: tr}
	s.ch = coap.NewChannel(tr, cfg.channelConfig())
	s.exec = coap.NewExecutor(s.ch, cfg.TickInterval)
	s.cloud = cloud.New(s.ch, cloud.WithLogger(logger))
	return s, nil
}

// run drives the channel until work returns or the process is signalled.
// work runs on its own goroutine and reaches the channel through s.call.
func (s *session) run(ctx context.Context, work func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeTransport()

	_, err := s.ch.AddConnectionHandler(func(err error, status coap.ConnectionStatus) error {
		s.logger.Info("channel "+status.String(), zap.Error(err))
		if status == coap.ConnectionClosed {
			cancel()
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.tr.Listen(s.exec)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.exec.Serve(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if s.cfg.MetricsAddr != "" {
		s.serveMetrics(ctx, g)
	}
	g.Go(func() error {
		defer cancel()
		if err := s.call(ctx, s.ch.Open); err != nil {
			return err
		}
		err := work(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (s *session) serveMetrics(ctx context.Context, g *errgroup.Group) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector("cloudcoap", s.ch.Stats(), prometheus.Labels{"transport": s.cfg.Transport}))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		s.logger.Info("serving metrics", zap.String("addr", s.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (s *session) closeTransport() {
	if err := s.tr.Close(); err != nil {
		s.logger.Warn("failed to close transport", zap.Error(err))
	}
}

// call runs fn on the channel's execution context.
func (s *session) call(ctx context.Context, fn func()) error {
	return s.exec.Call(ctx, fn)
}
