package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/api"
	"github.com/mfateev/temporal-mirror-agent/internal/mcpserver"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP control API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, cfg, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.API.Addr
		}
		logger := createLogger()
		server := api.NewServer(api.NewHandler(ctl, logger))

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		fmt.Println(render(successStyle, "Control API listening on http://"+addr))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down control API gracefully", zap.Error(err))
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the device tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := buildComponents()
		if err != nil {
			return err
		}
		defer components.Close()

		server := mcpserver.New(components.Capture, components.Input, components.Screenshots, mcpserver.Config{
			WindowTitle: components.Config.Session.WindowTitle,
			Codec:       components.Config.Session.Codec,
		}, createLogger())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, &gomcp.StdioTransport{})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config api.addr)")
}
