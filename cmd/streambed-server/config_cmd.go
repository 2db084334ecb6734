package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edirooss/streambed-server/internal/config"
	"github.com/edirooss/streambed-server/internal/dto"
	"github.com/edirooss/streambed-server/internal/protocol"
	"github.com/edirooss/streambed-server/internal/store"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	values := make(map[string]*string)
	var controlAddr string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the global configuration",
		Long: "Without flags, prints the global configuration. Each flag sets one " +
			"parameter with the same rules as a control config message; an empty " +
			"value resets it. Nothing is saved if any value is rejected.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath()
			f, st, err := openStore(path)
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed("control-address")
			var patch dto.ConfigPatch
			for _, name := range protocol.ConfigParams() {
				if !cmd.Flags().Changed(name) {
					continue
				}
				changed = true
				if err := protocol.DecodeConfigParam(&patch, name, *values[name]); err != nil {
					return err
				}
			}
			if !changed {
				return printYAML(cmd, f.Global())
			}

			if _, err := st.ApplyConfig(patch); err != nil {
				return fmt.Errorf("rejected: %w", err)
			}
			if cmd.Flags().Changed("control-address") {
				f.ControlAddress = controlAddr
			}
			f.SetFlows(st.Export())
			if err := f.Save(path); err != nil {
				return fmt.Errorf("save %s: %w", path, err)
			}
			return printYAML(cmd, f.Global())
		},
	}

	for _, name := range protocol.ConfigParams() {
		values[name] = cmd.Flags().String(name, "", "set "+name)
	}
	cmd.Flags().StringVar(&controlAddr, "control-address", "", "TCP address of the control port")
	return cmd
}

// openStore loads path into a fresh store. Fields the store rejects fail
// the command so they are not silently dropped on save.
func openStore(path string) (*config.File, *store.Store, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st := store.New()
	if err := st.Load(f.Global(), f.Flows); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, st, nil
}

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
