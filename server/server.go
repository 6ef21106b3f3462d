// Package server exposes a running blockflow runtime over the network.
//
// The control service is served twice: as Connect (HTTP/JSON) handlers on
// an http.ServeMux and as a gRPC service carrying CBOR. Both call into the
// same ControlService, which hands every request to the runtime's worker.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/chazu/blockflow/host"
)

var log = commonlog.GetLogger("blockflow.server")

// Server serves a runtime's control service.
type Server struct {
	worker *host.Worker
	svc    *ControlService
	mux    *http.ServeMux
	grpc   *grpc.Server
	tick   time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTick sets how often the runtime clock advances while serving.
func WithTick(d time.Duration) ServerOption {
	return func(s *Server) { s.tick = d }
}

// New creates a Server around a worker. The server owns the worker and
// stops it in Stop.
func New(worker *host.Worker, opts ...ServerOption) *Server {
	s := &Server{
		worker: worker,
		svc:    NewControlService(worker),
		mux:    http.NewServeMux(),
		tick:   16 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	registerConnect(s.mux, s.svc)
	s.grpc = NewGRPCServer(s.svc)
	return s
}

// Handler returns the Connect handlers.
func (s *Server) Handler() http.Handler { return s.mux }

// GRPC returns the gRPC server.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// ListenAndServe serves Connect on addr and, if grpcAddr is not empty, gRPC
// on grpcAddr. The runtime clock ticks until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr, grpcAddr string) error {
	hs := &http.Server{Addr: addr, Handler: s.mux}
	var gl net.Listener
	if grpcAddr != "" {
		var err error
		if gl, err = net.Listen("tcp", grpcAddr); err != nil {
			return err
		}
	}

	fmt.Printf("blockflow control server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s/%s/Status\n", addr, ServiceName)
	if gl != nil {
		fmt.Printf("  gRPC (CBOR):         grpc://%s\n", gl.Addr())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if gl != nil {
		g.Go(func() error { return s.grpc.Serve(gl) })
	}
	g.Go(func() error {
		err := s.worker.RunTicker(ctx, s.tick)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpc.GracefulStop()
		return hs.Shutdown(shutdown)
	})
	return g.Wait()
}

// Stop stops the gRPC server and the worker.
func (s *Server) Stop() {
	s.grpc.Stop()
	s.worker.Stop()
}
