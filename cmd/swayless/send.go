package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/swayless/ctlsocket"
	"pkt.systems/swayless/schema"
)

type verbCommand struct {
	verb  schema.Verb
	short string
}

var verbCommands = []verbCommand{
	{verb: schema.VerbFocus, short: "Focus TAG on the focused output"},
	{verb: schema.VerbMove, short: "Move the focused container to TAG"},
	{verb: schema.VerbNextOutput, short: "Move the focused container to the next output"},
	{verb: schema.VerbPrevOutput, short: "Move the focused container to the previous output"},
	{verb: schema.VerbBring, short: "Borrow TAG's containers onto the focused tag, or send them back"},
	{verb: schema.VerbAltTab, short: "Toggle to the previously focused tag"},
	{verb: schema.VerbFocusAllOutputs, short: "Focus TAG on every output"},
}

func newSendCmds(opts *rootOptions) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(verbCommands))
	for _, vc := range verbCommands {
		cmds = append(cmds, newSendCmd(opts, vc))
	}
	return cmds
}

func newSendCmd(opts *rootOptions, vc verbCommand) *cobra.Command {
	var noWait bool
	var printState bool
	use := string(vc.verb)
	args := cobra.NoArgs
	if vc.verb.TakesTag() {
		use += " TAG"
		args = cobra.ExactArgs(1)
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: vc.short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := schema.Request{Verb: vc.verb}
			if len(args) == 1 {
				req.Tag = schema.Tag(args[0])
			}
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			log := pslog.Ctx(cmd.Context()).With("verb", vc.verb)
			if noWait {
				log.Debug("request posted", "tag", req.Tag)
				return client.Post(cmd.Context(), req)
			}
			resp, err := client.Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			log.Debug("request applied", "tag", req.Tag)
			if printState {
				return writeYAML(cmd.OutOrStdout(), resp.Outputs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "send without waiting for the daemon's reply")
	cmd.Flags().BoolVar(&printState, "print-state", false, "print the resulting state")
	return cmd
}

func newStateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print every output's tag state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			resp, err := client.Send(cmd.Context(), schema.Request{Verb: schema.VerbState})
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), resp.Outputs)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream state changes as YAML documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return client.Watch(cmd.Context(), func(event schema.StateEvent) error {
				return enc.Encode(event)
			})
		},
	}
}

func newClient(opts *rootOptions) (*ctlsocket.Client, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return ctlsocket.NewClient(cfg.Socket.Path, cfg.Client.Timeout()), nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
