package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chazu/blockflow/host"
	"github.com/chazu/blockflow/server"
)

type serveFlags struct {
	scene    string
	addr     string
	grpcAddr string
	load     string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Run a scene in real time behind the control service",
		Long: `Load a scene, advance its clock in real time and serve the control
service: Connect (HTTP/JSON) on --addr and gRPC (CBOR) on --grpc-addr.

Examples:
  blockflow serve                           # serve on the manifest's address
  blockflow serve --addr :8080 --grpc-addr :8081`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, g, f, dirArg(args))
		},
	}
	cmd.Flags().StringVar(&f.scene, "scene", "", "Scene to load (default: project start scene)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "Connect listen address (default: server.addr)")
	cmd.Flags().StringVar(&f.grpcAddr, "grpc-addr", "", "gRPC listen address (default: server.grpc-addr)")
	cmd.Flags().StringVar(&f.load, "load", "", "Restore this save slot before serving")
	return cmd
}

func serve(cmd *cobra.Command, g *globalFlags, f *serveFlags, dir string) error {
	m, err := g.loadManifest(cmd, dir)
	if err != nil {
		return err
	}
	rt, err := openRuntime(m, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.LoadScene(startScene(rt, m, f.scene)); err != nil {
		return err
	}
	if f.load != "" {
		if _, err := rt.Load(ctx, f.load); err != nil {
			return err
		}
	}

	addr := m.Server.Addr
	if f.addr != "" {
		addr = f.addr
	}
	grpcAddr := m.Server.GRPCAddr
	if f.grpcAddr != "" {
		grpcAddr = f.grpcAddr
	}

	srv := server.New(host.NewWorker(rt), server.WithTick(m.Engine.TickInterval()))
	err = srv.ListenAndServe(ctx, addr, grpcAddr)
	srv.Stop()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return autosave(m.Save.Slot, rt)
}

// autosave writes the final state to slot when one is configured.
func autosave(slot string, rt *host.Runtime) error {
	if slot == "" {
		return nil
	}
	_, err := rt.Save(context.Background(), slot, "saved on shutdown")
	return err
}
