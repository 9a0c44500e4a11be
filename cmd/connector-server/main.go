package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/proxy-connector/connector"
	"github.com/gosuda/proxy-connector/connector/registry"
	"github.com/gosuda/proxy-connector/connector/squid"
	"github.com/gosuda/proxy-connector/connector/wgeasy"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "connector-server",
	Short: "Provisioning API dispatching credential operations to proxy and VPN backends",
	RunE:  runServer,
}

var (
	flagPort        int
	flagAPIKey      string
	flagServersFile string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&flagPort, "port", envIntOrDefault("PORT", 3100), "HTTP listen port (env: PORT)")
	flags.StringVar(&flagAPIKey, "api-key", os.Getenv("API_KEY"), "API key protecting the v1 routes (env: API_KEY)")
	flags.StringVar(&flagServersFile, "servers-file", envOrDefault("SERVERS_FILE", "servers.json"), "server registry file (env: SERVERS_FILE)")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute root command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.Load(flagServersFile)
	disp := connector.NewDispatcher(squid.New(), wgeasy.New())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", flagPort),
		Handler: newRouter(disp, reg, flagAPIKey),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", flagPort).
			Int("servers", reg.Len()).
			Msg("[server] proxy-connector listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
