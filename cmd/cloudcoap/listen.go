// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"

	"github.com/qwerty-iot/cloudcoap/cloud"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen [prefix...]",
	Short: "Print events published by the peer",
	Long: `Subscribe to events whose name starts with one of the prefixes (all events
when none is given) and print them until interrupted.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	prefixes := args
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	s, err := openSession(cmd.Context(), "listen", cfg)
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), func(ctx context.Context) error {
		var err error
		cerr := s.call(ctx, func() {
			for _, prefix := range prefixes {
				if err = s.cloud.Subscribe(prefix, printEvent); err != nil {
					return
				}
			}
		})
		if cerr != nil {
			return cerr
		}
		if err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
}

func printEvent(ev *cloud.Event) {
	fmt.Printf("%s [%d] %d bytes: %s\n", ev.Name(), ev.ContentType(), ev.Size(), formatPayload(ev.ContentType(), ev.Bytes()))
}
