// Command rdgateway runs the RDCleanPath WebSocket-to-RDP gateway and its
// HTTP admin surface as one process.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rdcleanpath/gateway/internal/authn"
	"github.com/rdcleanpath/gateway/internal/config"
	"github.com/rdcleanpath/gateway/internal/gateway"
	"github.com/rdcleanpath/gateway/internal/httpapi"
	"github.com/rdcleanpath/gateway/internal/logging"
	"github.com/rdcleanpath/gateway/internal/metrics"
	"github.com/rdcleanpath/gateway/internal/store"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rdgateway",
		Short: "RDCleanPath WebSocket-to-RDP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	return cmd
}

func run() error {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	userStore, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	created, err := userStore.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap store: %w", err)
	}
	if created {
		log.Info("created default root user (root / Koder@123)")
	}

	issuer := authn.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	recorder := metrics.New(prometheus.DefaultRegisterer)

	gatewayOpts := gateway.Options{
		DialTimeout:      cfg.UpstreamDialTimeout,
		X224ReadTimeout:  cfg.X224ReadTimeout,
		TLSValidate:      cfg.TLSValidate,
		RelayBufferBytes: cfg.RelayBufferBytes,
	}
	gwServer := gateway.NewServer(gatewayOpts, log, recorder)

	api := httpapi.New(userStore, issuer, log)
	handler := httpapi.NewRouter(api, gwServer)

	srv := httpapi.NewServer(cfg.ListenAddr, handler)

	log.WithField("addr", cfg.ListenAddr).Info("rdgateway listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
