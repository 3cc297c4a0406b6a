package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/swayless/ctlsocket"
	"pkt.systems/swayless/internal/appconfig"
	"pkt.systems/swayless/internal/swayipc"
	"pkt.systems/swayless/schema"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run swayless diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			configPath := opts.configPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := checkSway(ctx, logger, cfg); err != nil {
				return err
			}
			if err := checkDaemon(ctx, logger, cfg); err != nil {
				return err
			}
			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall diagnostics timeout")
	return cmd
}

func checkSway(ctx context.Context, logger pslog.Logger, cfg appconfig.Config) error {
	path, err := swayipc.SocketPath(cfg.Sway.SocketPath)
	if err != nil {
		return err
	}
	client, err := swayipc.Dial(ctx, path, logger)
	if err != nil {
		return fmt.Errorf("sway ipc: %w", err)
	}
	defer func() { _ = client.Close() }()
	logger.Info("doctor sway ipc ok", "path", path)

	outputs, err := client.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	if len(outputs) == 0 {
		return schema.ErrNoOutputs
	}
	for i, out := range outputs {
		logger.Info("doctor output", "ordinal", i, "name", out.Name, "active", out.Active, "focused", out.Focused)
	}
	return nil
}

func checkDaemon(ctx context.Context, logger pslog.Logger, cfg appconfig.Config) error {
	client := ctlsocket.NewClient(cfg.Socket.Path, cfg.Client.Timeout())
	resp, err := client.Send(ctx, schema.Request{Verb: schema.VerbState})
	if err != nil {
		if errors.Is(err, schema.ErrRequestFailed) {
			return err
		}
		logger.Warn("doctor daemon not reachable", "path", cfg.Socket.Path, "err", err)
		return nil
	}
	logger.Info("doctor daemon ok", "path", cfg.Socket.Path, "outputs", len(resp.Outputs))
	for _, out := range resp.Outputs {
		logger.Info("doctor daemon output", "name", out.Name, "tag", out.FocusedTag, "workspace", out.Workspace)
	}
	return nil
}
