package handlers

import (
	"time"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/pipeline"
	"github.com/fleetgrid/tracker-receiver/internal/protocols"
	"github.com/fleetgrid/tracker-receiver/internal/protocols/astra"
	"github.com/fleetgrid/tracker-receiver/internal/protocols/gprmc"
	"github.com/fleetgrid/tracker-receiver/internal/protocols/lantrix"
	"github.com/fleetgrid/tracker-receiver/internal/protocols/tk10x"
)

var logger = configuredLogger.Logger

// NewDecoderSet builds one decoder per dialect family, each with its own
// config section. Keys match types.Dialect.ConfigKey.
func NewDecoderSet(cfg *config.Config) map[string]protocols.Decoder {
	return map[string]protocols.Decoder{
		"tk10x":   tk10x.NewDecoder(cfg.DialectConfig("tk10x")),
		"gprmc":   gprmc.NewDecoder(cfg.DialectConfig("gprmc")),
		"lantrix": lantrix.NewDecoder(cfg.DialectConfig("lantrix")),
		"astra":   astra.NewDecoder(cfg.DialectConfig("astra")),
	}
}

func NewTcpHandler(pipe *pipeline.Pipeline, cfg *config.Config) *TcpHandler {
	return &TcpHandler{
		decoders:    NewDecoderSet(cfg),
		pipeline:    pipe,
		cfg:         cfg,
		idleTimeout: time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}
}
