package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-run/lattice-host/pkg/api"
	"github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/bus/inproc"
	"github.com/lattice-run/lattice-host/pkg/bus/nats"
	"github.com/lattice-run/lattice-host/pkg/host"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/manifest"
	"github.com/lattice-run/lattice-host/pkg/metrics"
	"github.com/lattice-run/lattice-host/pkg/middleware"
	"github.com/lattice-run/lattice-host/pkg/runtime/testmodule"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "latticed",
	Short:   "latticed runs a wasmCloud-style actor host",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("latticed version %s\ncommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a host, optionally applying a manifest and exposing a control plane",
	RunE:  runHost,
}

func init() {
	runCmd.Flags().String("manifest", "", "path to a manifest YAML document to apply at startup")
	runCmd.Flags().String("nats-url", "", "NATS server URL; when unset the host uses an in-process bus")
	runCmd.Flags().Bool("control-plane", false, "expose the HTTP /healthz, /readyz, /metrics control plane")
	runCmd.Flags().String("http-addr", ":8090", "address for the HTTP control plane")
	runCmd.Flags().Bool("grpc-health", false, "expose the gRPC health-checking service")
	runCmd.Flags().String("grpc-addr", ":8091", "address for the gRPC health server")
}

func runHost(cmd *cobra.Command, _ []string) error {
	natsURL, _ := cmd.Flags().GetString("nats-url")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	enableHTTP, _ := cmd.Flags().GetBool("control-plane")
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	enableGRPC, _ := cmd.Flags().GetBool("grpc-health")
	grpcAddr, _ := cmd.Flags().GetString("grpc-addr")

	b, err := newBus(natsURL)
	if err != nil {
		return err
	}

	// A real sandboxed module runtime is outside this host's scope;
	// testmodule.Loader stands in so `latticed run` is runnable
	// end-to-end against in-process handler tables until an embedder
	// supplies a genuine runtime.Loader through the library API.
	h := host.New(host.Config{
		Bus:    b,
		Loader: &testmodule.Loader{},
		Chain:  defaultChain(),
	})
	defer h.Shutdown()

	collector := metrics.NewCollector(h.Registry(), h.Plugins())
	collector.Start()
	defer collector.Stop()

	var httpSrv *api.Server
	if enableHTTP {
		httpSrv = api.NewServer(h)
		go func() {
			if err := httpSrv.Start(httpAddr); err != nil {
				log.WithComponent("latticed").Error().Err(err).Msg("http control plane stopped")
			}
		}()
		log.WithComponent("latticed").Info().Str("addr", httpAddr).Msg("http control plane listening")
	}

	var grpcSrv *api.GRPCHealthServer
	if enableGRPC {
		grpcSrv = api.NewGRPCHealthServer()
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("latticed: listen %s: %w", grpcAddr, err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.WithComponent("latticed").Error().Err(err).Msg("grpc health server stopped")
			}
		}()
		log.WithComponent("latticed").Info().Str("addr", grpcAddr).Msg("grpc health server listening")
	}

	if manifestPath != "" {
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		natives := manifest.DefaultNativeRegistry(b)
		if err := m.Apply(context.Background(), h, natives); err != nil {
			return fmt.Errorf("latticed: applying manifest: %w", err)
		}
		log.WithComponent("latticed").Info().Str("path", manifestPath).Msg("manifest applied")
	}

	if httpSrv != nil {
		httpSrv.SetReady(true)
	}
	if grpcSrv != nil {
		grpcSrv.SetServing(true)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.WithComponent("latticed").Info().Msg("shutting down")
	if httpSrv != nil {
		httpSrv.SetReady(false)
	}
	if grpcSrv != nil {
		grpcSrv.SetServing(false)
		grpcSrv.Stop()
	}
	return nil
}

func newBus(natsURL string) (bus.Bus, error) {
	if natsURL == "" {
		return inproc.New(), nil
	}
	return nats.Connect(natsURL)
}

func defaultChain() *middleware.Chain {
	chain := middleware.NewChain()
	chain.Add(middleware.NewMetricsMiddleware())
	return chain
}
