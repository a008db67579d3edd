// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package channel

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/cinesync/cinesync/internal/logging"
)

// watermillLogger bridges Watermill's LoggerAdapter to the zerolog-backed
// logging package so transport logs share the application's output.
type watermillLogger struct {
	fields watermill.LogFields
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	event := logging.Error().Err(err)
	for k, v := range l.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	event := logging.Info()
	for k, v := range l.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	event := logging.Debug()
	for k, v := range l.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	event := logging.Debug()
	for k, v := range l.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{fields: l.fields.Add(fields)}
}
