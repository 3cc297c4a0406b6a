package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/swayless"
	"pkt.systems/swayless/ctlsocket"
	"pkt.systems/swayless/internal/appconfig"
	"pkt.systems/swayless/internal/swayipc"
	"pkt.systems/swayless/schema"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var initialTag string
	var swaySocket string
	var noFocusWatch bool
	var noInitialFocus bool
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"serve"},
		Short:   "Run the tag daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if initialTag != "" {
				cfg.InitialTag = initialTag
			}
			if noInitialFocus {
				cfg.SkipInitialFocus = true
			}
			if swaySocket != "" {
				cfg.Sway.SocketPath = swaySocket
			}
			ipcPath, err := swayipc.SocketPath(cfg.Sway.SocketPath)
			if err != nil {
				return err
			}
			wm, err := swayipc.Dial(cmd.Context(), ipcPath, logger)
			if err != nil {
				return err
			}
			defer func() { _ = wm.Close() }()

			deps := swayless.ServerDeps{WindowManager: wm, Logger: logger}
			if !noFocusWatch {
				deps.Focus = wm
			}
			server, err := swayless.New(toServerConfig(cfg), deps)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("daemon stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVar(&initialTag, "initial-tag", "", "tag focused on every output at startup (overrides config)")
	cmd.Flags().StringVar(&swaySocket, "sway-socket", "", "sway IPC socket path (overrides config and $SWAYSOCK)")
	cmd.Flags().BoolVar(&noInitialFocus, "no-initial-focus", false, "keep the current workspaces at startup (overrides config)")
	cmd.Flags().BoolVar(&noFocusWatch, "no-focus-watch", false, "do not track focus changes made outside swayless")
	return cmd
}

func loadConfig(opts *rootOptions) (appconfig.Config, error) {
	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if opts.socketPath != "" {
		cfg.Socket.Path = opts.socketPath
	}
	return cfg, nil
}

func toServerConfig(cfg appconfig.Config) swayless.ServerConfig {
	return swayless.ServerConfig{
		Coordinator: schema.CoordinatorConfig{
			InitialTag:       schema.Tag(cfg.InitialTag),
			SkipInitialFocus: cfg.SkipInitialFocus,
		},
		Socket: ctlsocket.ServerConfig{
			Path:            cfg.Socket.Path,
			ReadTimeout:     cfg.Socket.ReadTimeout(),
			WriteTimeout:    cfg.Socket.WriteTimeout(),
			MaxRequestBytes: cfg.Socket.MaxRequestBytes,
		},
	}
}
