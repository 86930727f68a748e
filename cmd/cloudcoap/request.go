// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"fmt"

	coap "github.com/qwerty-iot/cloudcoap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	requestContentType string
	requestAccept      string
	requestQuery       []string
	requestFile        string
)

var requestCmd = &cobra.Command{
	Use:   "request <method> <uri> [payload|-]",
	Short: "Send a raw CoAP request",
	Long: `Send a confirmable request and print the response.

The method is a name (GET, POST, PUT, DELETE) or a dotted code such as 0.02.
Request and response payloads are transferred blockwise when needed.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringVarP(&requestContentType, "content-format", "c", "", "Content format of the payload")
	requestCmd.Flags().StringVarP(&requestAccept, "accept", "a", "", "Accepted content format of the response")
	requestCmd.Flags().StringArrayVarP(&requestQuery, "query", "q", nil, "Uri-Query option, may be repeated")
	requestCmd.Flags().StringVarP(&requestFile, "file", "f", "", "Read the payload from a file")
}

// response is what a request produced.
type response struct {
	status  coap.COAPCode
	format  coap.MediaType
	payload []byte
	err     error
}

// requestTask writes a request and collects its response. All methods run
// on the executor.
type requestTask struct {
	ch      *coap.Channel
	logger  *zap.Logger
	msg     *coap.Message
	payload []byte
	off     int
	rsp     *coap.Message
	buf     []byte
	out     response
	done    chan response
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	method, err := parseMethod(args[0])
	if err != nil {
		return err
	}
	payload, err := readPayload(args[2:], requestFile)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), "request", cfg)
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), func(ctx context.Context) error {
		t := &requestTask{
			ch:      s.ch,
			logger:  s.logger,
			payload: payload,
			buf:     make([]byte, coap.BlockSize),
			done:    make(chan response, 1),
		}
		var err error
		if cerr := s.call(ctx, func() { err = t.begin(args[1], method) }); cerr != nil {
			return cerr
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rsp := <-t.done:
			if rsp.err != nil {
				return rsp.err
			}
			fmt.Printf("%s %s\n", rsp.status.NumberString(), rsp.status)
			if len(rsp.payload) > 0 {
				fmt.Println(formatPayload(rsp.format, rsp.payload))
			}
			return nil
		}
	})
}

func (t *requestTask) begin(uri string, method coap.COAPCode) error {
	msg, reqID, err := t.ch.BeginRequest(uri, method, 0, 0)
	if err != nil {
		return err
	}
	t.msg = msg

	for _, q := range requestQuery {
		if err := msg.AddStringOption(coap.OptURIQuery, q); err != nil {
			return t.abort(err)
		}
	}
	t.logger.Debug("request started",
		zap.Int("reqId", reqID),
		zap.String("uri", uri),
		zap.String("query", msg.QueryString()),
		zap.Stringer("method", method))
	if requestContentType != "" {
		if err := t.addMediaType(coap.OptContentFormat, requestContentType); err != nil {
			return t.abort(err)
		}
	}
	if requestAccept != "" {
		if err := t.addMediaType(coap.OptAccept, requestAccept); err != nil {
			return t.abort(err)
		}
	}
	if err := t.write(); err != nil {
		return t.abort(err)
	}
	return nil
}

func (t *requestTask) addMediaType(opt coap.OptionID, s string) error {
	mt, err := parseMediaType(s)
	if err != nil {
		return err
	}
	return t.msg.AddUintOption(opt, uint32(mt))
}

func (t *requestTask) abort(err error) error {
	t.ch.DestroyMessage(t.msg)
	return err
}

func (t *requestTask) write() error {
	for t.off < len(t.payload) {
		n, res, err := t.ch.WritePayload(t.msg, t.payload[t.off:], t.onWriteBlock, t.onError)
		if err != nil {
			return err
		}
		t.off += n
		if res == coap.ResultWaitBlock {
			return nil
		}
	}
	return t.ch.EndRequest(t.msg, t.onResponse, nil, t.onError)
}

func (t *requestTask) onWriteBlock(*coap.Message) error {
	if err := t.write(); err != nil {
		t.ch.DestroyMessage(t.msg)
		t.finish(err)
		return err
	}
	return nil
}

func (t *requestTask) onResponse(rsp *coap.Message, status coap.COAPCode, reqID int) error {
	t.rsp = rsp
	t.out.status = status
	t.out.format = rsp.ContentFormat()
	return t.read()
}

func (t *requestTask) read() error {
	for {
		n, res, err := t.ch.ReadPayload(t.rsp, t.buf, t.onReadBlock, t.onError)
		if errors.Is(err, coap.ErrEndOfStream) {
			t.ch.DestroyMessage(t.rsp)
			t.finish(nil)
			return nil
		}
		if err != nil {
			t.ch.DestroyMessage(t.rsp)
			t.finish(err)
			return err
		}
		t.out.payload = append(t.out.payload, t.buf[:n]...)
		if res == coap.ResultWaitBlock {
			return nil
		}
	}
}

func (t *requestTask) onReadBlock(*coap.Message) error {
	return t.read()
}

func (t *requestTask) onError(err error, reqID int) {
	t.logger.Warn("request failed", zap.Int("reqId", reqID), zap.Error(err))
	t.finish(err)
}

func (t *requestTask) finish(err error) {
	out := t.out
	if err != nil {
		out = response{err: err}
	}
	select {
	case t.done <- out:
	default:
	}
}
