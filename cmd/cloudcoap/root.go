// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"github.com/spf13/cobra"
)

var (
	peerAddr      string
	transportName string
	metricsAddr   string
	logLevel      string
	sniff         bool
)

var rootCmd = &cobra.Command{
	Use:   "cloudcoap",
	Short: "CoAP event channel client",
	Long: `cloudcoap talks to a CoAP peer over UDP or WebSocket.

Events are published as confirmable POSTs to /E/<name>; large payloads are
sent blockwise. Settings are read from CLOUDCOAP_* environment variables
(or a .env file) and may be overridden by flags:

  CLOUDCOAP_PEER              peer address, host:port or ws:// URL
  CLOUDCOAP_TRANSPORT         udp or websocket
  CLOUDCOAP_METRICS_ADDR      serve Prometheus metrics on this address
  CLOUDCOAP_LOG_LEVEL         error, warn, info or debug
  CLOUDCOAP_REQUEST_TIMEOUT   time to wait for a response
  CLOUDCOAP_ACK_TIMEOUT       initial retransmission timeout
  CLOUDCOAP_MAX_RETRANSMIT    retransmissions before giving up
  CLOUDCOAP_SNIFF             log every datagram`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&peerAddr, "peer", "p", "", "Peer address (host:port, or ws:// URL)")
	rootCmd.PersistentFlags().StringVarP(&transportName, "transport", "t", "", "Transport: udp or websocket")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error, warn, info or debug")
	rootCmd.PersistentFlags().BoolVar(&sniff, "sniff", false, "Log every datagram sent or received")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
