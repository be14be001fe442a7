// Package mst is the root of the pending multi-signature transaction pool. It
// holds the globals shared by the packages, such as the logger and the
// prometheus collectors.
package mst

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.InfoLevel)

// PromCollectors is the list of prometheus collectors that the packages
// register. The CLI exposes them on an HTTP endpoint when requested.
var PromCollectors []prometheus.Collector
