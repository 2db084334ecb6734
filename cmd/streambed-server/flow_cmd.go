package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
	"github.com/edirooss/streambed-server/internal/protocol"
)

func newFlowCommand(opts *rootOptions) *cobra.Command {
	values := make(map[string]*string)

	cmd := &cobra.Command{
		Use:   "flow <number>",
		Short: "Show or change one flow",
		Long: "Without flags, prints the flow configuration. Each flag sets one " +
			"parameter with the same rules as a control flow message; an empty " +
			"value resets it. Nothing is saved if any value is rejected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return fmt.Errorf("flow number %q: must be 0..%d", args[0], flow.MaxFlows-1)
			}
			path := opts.configPath()
			f, st, err := openStore(path)
			if err != nil {
				return err
			}
			if int(n) >= int(st.Global().FlowCount) {
				return fmt.Errorf("flow %d is out of range; %d flows configured", n, st.Global().FlowCount)
			}

			var patch dto.FlowPatch
			changed := false
			for _, name := range protocol.FlowParams() {
				if !cmd.Flags().Changed(name) {
					continue
				}
				changed = true
				if err := protocol.DecodeFlowParam(&patch, name, *values[name]); err != nil {
					return err
				}
			}
			if changed {
				if _, err := st.ApplyFlow(int(n), &patch); err != nil {
					return fmt.Errorf("rejected: %w", err)
				}
				f.SetFlows(st.Export())
				if err := f.Save(path); err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
			}

			cfg, _ := st.Snapshot(int(n))
			return printYAML(cmd, cfg)
		},
	}

	for _, name := range protocol.FlowParams() {
		values[name] = cmd.Flags().String(name, "", "set "+name)
	}
	return cmd
}
