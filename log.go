// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	LogLevelError string = "error"
	LogLevelWarn  string = "warn"
	LogLevelInfo  string = "info"
	LogLevelDebug string = "debug"
)

type LogFunc func(ts time.Time, level string, msg *Message, err error, log string)

var logFunc LogFunc = defaultLogFunc
var logLevel int = 0
var logger = zap.NewNop()

func SetLogFunc(lf LogFunc) {
	logFunc = lf
}

// SetLogger replaces the zap logger used by the default log func.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("coap")
}

func SetLogLevel(level string) {
	switch level {
	case LogLevelError:
		logLevel = 1
	case LogLevelWarn:
		logLevel = 2
	case LogLevelInfo:
		logLevel = 3
	case LogLevelDebug:
		logLevel = 4
	default:
		logLevel = 0
	}
}

func defaultLogFunc(ts time.Time, level string, msg *Message, err error, l string) {
	fields := make([]zap.Field, 0, 5)
	fields = append(fields, zap.Time("ts", ts))
	if msg != nil {
		fields = append(fields, zap.Int("msgId", msg.id), zap.Int("reqId", msg.requestID), zap.String("uri", msg.uri))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch level {
	case LogLevelError:
		logger.Error(l, fields...)
	case LogLevelWarn:
		logger.Warn(l, fields...)
	case LogLevelInfo:
		logger.Info(l, fields...)
	default:
		logger.Debug(l, fields...)
	}
}

func logError(msg *Message, err error, f string, args ...interface{}) {
	if logLevel < 1 {
		return
	}
	logFunc(time.Now(), LogLevelError, msg, err, fmt.Sprintf(f, args...))
}

func logWarn(msg *Message, err error, f string, args ...interface{}) {
	if logLevel < 2 {
		return
	}
	logFunc(time.Now(), LogLevelWarn, msg, err, fmt.Sprintf(f, args...))
}

func logInfo(msg *Message, err error, f string, args ...interface{}) {
	if logLevel < 3 {
		return
	}
	logFunc(time.Now(), LogLevelInfo, msg, err, fmt.Sprintf(f, args...))
}

func logDebug(msg *Message, err error, f string, args ...interface{}) {
	if logLevel < 4 {
		return
	}
	logFunc(time.Now(), LogLevelDebug, msg, err, fmt.Sprintf(f, args...))
}
