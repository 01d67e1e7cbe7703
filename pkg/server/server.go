// Package server implements the transport-level dispatch loops for
// the SIA DC-09 protocol engine: TCP, Osborne-Hoffman obfuscated TCP,
// and UDP, each feeding sia.Pipeline and writing its synthesized
// response back to the peer before handing the event to the
// caller-supplied sink.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/simeonmiteff/sia-server/pkg/account"
	"github.com/simeonmiteff/sia-server/pkg/metrics"
	"github.com/simeonmiteff/sia-server/pkg/sia"
)

// maxFrameSize bounds a single read, per spec.md §4.8 ("read up to
// 1 KiB").
const maxFrameSize = 1024

// Config configures a Server. Accounts and Sink are mandatory;
// everything else defaults per spec.md §6 (a nil Counters gets a fresh
// sia.Counters).
type Config struct {
	Accounts *account.Store
	Sink     func(context.Context, *sia.SIAEvent)
	Counters *sia.Counters

	AllowedPast   time.Duration
	AllowedFuture time.Duration
	IdleTimeout   time.Duration

	Logger     *logrus.Logger
	Registerer prometheus.Registerer
}

// Server runs one or more transport loops over a shared sia.Pipeline.
type Server struct {
	cfg      Config
	pipeline *sia.Pipeline
	log      *logrus.Logger
	metrics  *metrics.Collector

	shutdown int32
	wg       sync.WaitGroup
}

// New builds a Server from cfg. Counters defaults to a fresh
// sia.Counters if cfg.Counters is nil.
func New(cfg Config) (*Server, error) {
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("server: Config.Accounts is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("server: Config.Sink is required")
	}
	if cfg.Counters == nil {
		cfg.Counters = sia.NewCounters()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	s := &Server{
		cfg:      cfg,
		pipeline: sia.NewPipeline(cfg.Accounts, cfg.Counters, cfg.AllowedPast, cfg.AllowedFuture),
		log:      cfg.Logger,
	}

	if cfg.Registerer != nil {
		s.metrics = metrics.NewCollector("sia", cfg.Counters)
		if err := cfg.Registerer.Register(s.metrics); err != nil {
			return nil, fmt.Errorf("server: registering metrics collector: %w", err)
		}
	}

	return s, nil
}

// Shutdown flips the atomic shutdown flag; every running loop exits
// at its next read boundary per spec.md §5. It does not forcibly
// close listeners or in-flight connections.
func (s *Server) Shutdown() {
	atomic.StoreInt32(&s.shutdown, 1)
}

func (s *Server) shuttingDown() bool {
	return atomic.LoadInt32(&s.shutdown) == 1
}

// ListenAndServeTCP accepts cleartext/encrypted DC-09 connections on
// addr until ctx is cancelled or Shutdown is called.
func (s *Server) ListenAndServeTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listening tcp %s: %w", addr, err)
	}
	return s.acceptLoop(ctx, ln, "tcp", s.handleTCPConn)
}

// ListenAndServeOH accepts Osborne-Hoffman obfuscated connections on
// addr until ctx is cancelled or Shutdown is called.
func (s *Server) ListenAndServeOH(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listening oh %s: %w", addr, err)
	}
	return s.acceptLoop(ctx, ln, "oh", s.handleOHConn)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, transport string, handle func(context.Context, net.Conn)) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.WithError(err).WithField("transport", transport).Warn("accept failed")
				continue
			}
		}
		if s.shuttingDown() {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handle(ctx, conn)
		}()
	}
}

// handleTCPConn implements spec.md §4.8: read up to 1 KiB, run the
// pipeline, write the response, dispatch to the sink without blocking
// the next read.
func (s *Server) handleTCPConn(ctx context.Context, raw net.Conn) {
	wrapped := WrapConn(raw)
	if s.metrics != nil {
		s.metrics.Add(wrapped, "tcp")
		defer s.metrics.Remove(wrapped)
	}
	defer wrapped.Close()

	log := s.log.WithField("conn", wrapped.ID.String())
	buf := make([]byte, maxFrameSize)

	for !s.shuttingDown() {
		wrapped.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		n, err := wrapped.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("tcp read ended")
			}
			return
		}
		if n == 0 {
			return
		}

		ev := s.pipeline.ParseAndCheckEvent(buf[:n])
		if ev == nil {
			continue
		}

		resp, err := ev.CreateResponse()
		if err != nil {
			log.WithError(err).Error("creating response")
			continue
		}
		if _, err := wrapped.Write(resp); err != nil {
			log.WithError(err).Debug("tcp write failed")
			return
		}

		if ev.Dispatchable {
			s.dispatch(ctx, ev)
		}
	}
}

// handleOHConn implements spec.md §4.9: send the scrambled key before
// every read, OH-decrypt inbound bytes, run the pipeline, OH-encrypt
// and write the response, then dispatch.
func (s *Server) handleOHConn(ctx context.Context, raw net.Conn) {
	wrapped := WrapConn(raw)
	if s.metrics != nil {
		s.metrics.Add(wrapped, "oh")
		defer s.metrics.Remove(wrapped)
	}
	defer wrapped.Close()

	log := s.log.WithField("conn", wrapped.ID.String())

	ohCtx, err := sia.NewOHContext(sia.DefaultOHSeed)
	if err != nil {
		log.WithError(err).Error("initializing OH context")
		return
	}

	buf := make([]byte, maxFrameSize)
	for !s.shuttingDown() {
		if _, err := wrapped.Write(ohCtx.ScrambledKey()); err != nil {
			log.WithError(err).Debug("oh scrambled-key write failed")
			return
		}

		wrapped.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		n, err := wrapped.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("oh read ended")
			}
			return
		}
		if n == 0 {
			return
		}

		plaintext := ohCtx.DecryptData(buf[:n])
		ev := s.pipeline.ParseAndCheckEvent(plaintext)
		if ev == nil {
			// A garbled OH stream surfaces as a lex failure; since OH
			// carries no framing resync marker, treat it as
			// unrecoverable desync and drop the connection (spec.md §4.4).
			return
		}

		resp, err := ev.CreateResponse()
		if err != nil {
			log.WithError(err).Error("creating response")
			continue
		}
		if _, err := wrapped.Write(ohCtx.EncryptData(resp)); err != nil {
			log.WithError(err).Debug("oh write failed")
			return
		}

		if ev.Dispatchable {
			s.dispatch(ctx, ev)
		}
	}
}

// ListenAndServeUDP reads datagrams on addr until ctx is cancelled or
// Shutdown is called, per spec.md §4.10.
func (s *Server) ListenAndServeUDP(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("server: listening udp %s: %w", addr, err)
	}
	defer conn.Close()
	return s.serveUDP(ctx, conn)
}

// serveUDP runs the datagram read loop over an already-bound
// net.PacketConn, split out from ListenAndServeUDP so tests can drive
// it over a conn whose ephemeral port is known up front.
func (s *Server) serveUDP(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxFrameSize)
	for !s.shuttingDown() {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if s.shuttingDown() {
					return nil
				}
				s.log.WithError(err).Warn("udp read failed")
				continue
			}
		}

		ev := s.pipeline.ParseAndCheckEvent(buf[:n])
		if ev == nil {
			continue
		}

		resp, err := ev.CreateResponse()
		if err != nil {
			s.log.WithError(err).Error("creating response")
			continue
		}
		if _, err := conn.WriteTo(resp, peer); err != nil {
			s.log.WithError(err).Debug("udp write failed")
		}

		if ev.Dispatchable {
			s.dispatch(ctx, ev)
		}
	}
	return nil
}

// Wait blocks until every accept loop's spawned connection handlers
// have returned. Callers typically call this after every
// ListenAndServe* goroutine has returned following Shutdown.
func (s *Server) Wait() {
	s.wg.Wait()
}

// dispatch fires the sink in its own goroutine so it never blocks the
// next read, recovering a panicking sink and counting it into
// errors.user_code, per spec.md §5 and §7.
func (s *Server) dispatch(ctx context.Context, ev *sia.SIAEvent) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.cfg.Counters.Incr(sia.CategoryErrorsUserCode)
				s.log.WithField("panic", r).Error("sink panicked")
			}
		}()
		s.cfg.Sink(ctx, ev)
	}()
}
