package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	errs "github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/framer"
	"github.com/fleetgrid/tracker-receiver/internal/observability"
	"github.com/fleetgrid/tracker-receiver/internal/pipeline"
	"github.com/fleetgrid/tracker-receiver/internal/protocols"
	"github.com/fleetgrid/tracker-receiver/internal/session"
)

const BUFFER_SIZE = 256 // bytes

// maxBufferedBytes bounds the per-session reassembly buffer. A peer that
// never completes a frame gets its buffer dropped, not the connection.
const maxBufferedBytes = 64 * 1024

const pipelineTimeout = 10 * time.Second

type TcpHandler struct {
	decoders    map[string]protocols.Decoder
	pipeline    *pipeline.Pipeline
	cfg         *config.Config
	idleTimeout time.Duration
}

// endOfStream reports the session dialect's framing preference.
func (t *TcpHandler) endOfStream(s *session.Session) bool {
	return t.cfg.DialectConfig(s.Dialect.ConfigKey()).EndOfStreamFraming
}

func (t *TcpHandler) HandleConnection(conn net.Conn) {
	defer conn.Close()
	observability.ConnectionsAccepted.Inc()
	observability.ActiveSessions.Inc()
	defer observability.ActiveSessions.Dec()

	s := session.New(conn.RemoteAddr().String())
	logger.Info("connection opened",
		zap.String("sessionId", s.ID), zap.String("remoteAddr", s.RemoteAddr))
	defer func() {
		logger.Info("connection closed",
			zap.String("sessionId", s.ID),
			zap.String("modemId", s.ModemID),
			zap.String("dialect", s.Dialect.String()),
			zap.Int("packets", s.PacketCount),
			zap.Int("events", s.EventCount),
			zap.Int("errors", s.ErrorCount))
	}()

	write := func(reply []byte) error {
		_, err := conn.Write(reply)
		return err
	}

	var buf []byte
	tmp := make([]byte, BUFFER_SIZE)
	for {
		if t.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(t.idleTimeout))
		}
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			var done bool
			buf, done = t.consume(s, buf, write)
			if done {
				return
			}
			if len(buf) > maxBufferedBytes {
				logger.Warn("frame never completed, dropping buffer",
					zap.String("sessionId", s.ID), zap.Int("buffered", len(buf)))
				buf = buf[:0]
			}
		}
		if err != nil {
			// a trailing line without its newline still counts
			if len(buf) > 0 {
				if d := framer.Decide(buf, s.Dialect, t.endOfStream(s)); d.Kind == framer.ReadLine || d.Kind == framer.ReadToEOF {
					t.handlePacket(s, buf, write)
				}
			}
			if errors.Is(err, io.EOF) {
				logger.Info("connection closed by peer", zap.String("sessionId", s.ID))
			} else {
				logger.Warn("read error", zap.String("sessionId", s.ID), zap.Error(err))
			}
			return
		}
	}
}

// consume extracts and handles as many complete packets as the buffer holds.
// It returns the remaining bytes and whether the session should end.
func (t *TcpHandler) consume(s *session.Session, buf []byte, write func([]byte) error) ([]byte, bool) {
	for {
		d := framer.Decide(buf, s.Dialect, t.endOfStream(s))
		switch d.Kind {
		case framer.Discard:
			observability.BytesDiscarded.Add(float64(d.N))
			buf = buf[d.N:]
		case framer.Complete:
			done := t.handlePacket(s, buf[:d.N], write)
			buf = buf[d.N:]
			if done {
				return buf, true
			}
		case framer.ReadLine:
			nl := bytes.IndexAny(buf, "\r\n")
			if nl < 0 {
				return buf, false
			}
			line := buf[:nl]
			buf = buf[nl+1:]
			if len(line) > 0 {
				if done := t.handlePacket(s, line, write); done {
					return buf, true
				}
			}
		default: // NeedMore, ReadToEOF
			return buf, false
		}
	}
}

// handlePacket decodes one framed packet, feeds any fixes through the
// pipeline and writes the dialect's reply. It returns true when the session
// should be closed.
func (t *TcpHandler) handlePacket(s *session.Session, packet []byte, write func([]byte) error) bool {
	s.PacketCount++

	dialect := s.Dialect
	if dialect.IsUnknown() {
		dialect = protocols.Sniff(packet)
	}
	decoder, ok := t.decoders[dialect.ConfigKey()]
	if dialect.IsUnknown() || !ok {
		s.ErrorCount++
		observability.DecodeErrors.WithLabelValues("unknown").Inc()
		logger.Warn("unrecognized packet",
			zap.String("sessionId", s.ID), zap.ByteString("packet", packet))
		return false
	}

	result, err := decoder.Decode(packet, s)
	if err != nil {
		s.ErrorCount++
		observability.DecodeErrors.WithLabelValues(dialect.ConfigKey()).Inc()
		logger.Warn("decode failed",
			zap.String("sessionId", s.ID),
			zap.String("dialect", dialect.String()),
			zap.ByteString("packet", packet),
			zap.Error(err))
		// binary dialects nack a corrupt frame
		if result != nil && len(result.Reply) > 0 {
			if werr := write(result.Reply); werr != nil {
				return true
			}
		}
		return false
	}
	observability.PacketsDecoded.WithLabelValues(dialect.ConfigKey()).Inc()

	if len(result.Fixes) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
		n, err := t.pipeline.Process(ctx, s, result.Fixes)
		cancel()
		s.EventCount += n
		if n > 0 {
			observability.EventsPersisted.WithLabelValues(dialect.ConfigKey()).Add(float64(n))
		}
		if err != nil {
			logger.Error("pipeline failed",
				zap.String("sessionId", s.ID),
				zap.String("modemId", s.ModemID),
				zap.Error(err))
			if errors.Is(err, errs.ErrUnknownDevice) || errors.Is(err, errs.ErrNoDeviceID) ||
				errors.Is(err, errs.ErrIPNotAllowed) {
				// no events from devices we cannot identify
				return true
			}
		}
	}

	if len(result.Reply) > 0 {
		if err := write(result.Reply); err != nil {
			logger.Warn("reply write failed", zap.String("sessionId", s.ID), zap.Error(err))
			return true
		}
	}
	return result.Disconnect
}
