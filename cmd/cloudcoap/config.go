// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	coap "github.com/qwerty-iot/cloudcoap"
	"github.com/spf13/cobra"
)

const envPrefix = "CLOUDCOAP_"

type config struct {
	Peer           string        `env:"PEER"            envDefault:"127.0.0.1:5683"`
	Transport      string        `env:"TRANSPORT"       envDefault:"udp"`
	MetricsAddr    string        `env:"METRICS_ADDR"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	AckTimeout     time.Duration `env:"ACK_TIMEOUT"     envDefault:"2s"`
	MaxRetransmit  int           `env:"MAX_RETRANSMIT"  envDefault:"4"`
	TickInterval   time.Duration `env:"TICK_INTERVAL"   envDefault:"100ms"`
	Sniff          bool          `env:"SNIFF"`
}

// loadConfig reads the environment, then applies the flags set on cmd.
func loadConfig(cmd *cobra.Command) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("peer") {
		cfg.Peer = peerAddr
	}
	if flags.Changed("transport") {
		cfg.Transport = transportName
	}
	if flags.Changed("metrics") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("sniff") {
		cfg.Sniff = sniff
	}

	switch cfg.Transport {
	case "udp", "websocket":
	default:
		return config{}, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.MaxRetransmit < 0 || cfg.AckTimeout <= 0 {
		return config{}, errors.New("invalid retransmission settings")
	}
	return cfg, nil
}

func (cfg config) channelConfig() *coap.Config {
	conf := coap.DefaultConfig()
	conf.RequestTimeout = cfg.RequestTimeout
	conf.Send = coap.NewOptions().WithRetry(cfg.MaxRetransmit, cfg.AckTimeout, 1.5)
	return conf
}
