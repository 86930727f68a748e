// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/qwerty-iot/cloudcoap/cloud"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	publishContentType string
	publishFile        string
)

var publishCmd = &cobra.Command{
	Use:   "publish <name> [payload|-]",
	Short: "Publish an event",
	Long: `Publish an event to the peer and wait until it is acknowledged.

The payload is taken from the argument, from --file, or from stdin when the
argument is "-". Payloads larger than one block are sent blockwise.

Exit codes:
  0 - event acknowledged
  1 - publish failed or timed out`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVarP(&publishContentType, "content-format", "c", "", "Content format (text, json, cbor, ... or a number)")
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "Read the payload from a file")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	payload, err := readPayload(args[1:], publishFile)
	if err != nil {
		return err
	}

	ev := cloud.NewEvent()
	if err := ev.SetName(args[0]); err != nil {
		return err
	}
	if publishContentType != "" {
		ct, err := parseMediaType(publishContentType)
		if err != nil {
			return err
		}
		if err := ev.SetContentType(ct); err != nil {
			return err
		}
	}
	if _, err := ev.Write(payload); err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), "publish", cfg)
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), func(ctx context.Context) error {
		var err error
		if cerr := s.call(ctx, func() { err = s.cloud.Publish(ev) }); cerr != nil {
			return cerr
		}
		if err != nil {
			return err
		}
		return s.waitPublished(ctx, ev)
	})
}

// waitPublished polls the event until the exchange completes.
func (s *session) waitPublished(ctx context.Context, ev *cloud.Event) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		var status cloud.Status
		var err error
		if cerr := s.call(ctx, func() { status, err = ev.Status(), ev.Err() }); cerr != nil {
			return cerr
		}
		switch status {
		case cloud.StatusSent:
			s.logger.Info("event published", zap.String("event", ev.Name()), zap.Int("size", ev.Size()))
			fmt.Printf("published %s (%d bytes)\n", ev.Name(), ev.Size())
			return nil
		case cloud.StatusFailed:
			return fmt.Errorf("publish %s: %w", ev.Name(), err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", ev.Name(), ctx.Err())
		case <-ticker.C:
		}
	}
}
