package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/wagi/config"
	"github.com/caffeineduck/wagi/hostfunc"
	"github.com/caffeineduck/wagi/resolver"
	"github.com/caffeineduck/wagi/sandbox"
)

var validateCmd = &cobra.Command{
	Use:   "validate [modules.toml]",
	Short: "Check a deployment file",
	Long: `Parse a deployment file, compile every module, and run the same
preflight the gateway runs at startup: the binary must exist and
compile, the entry point must be exported, and a module that imports
outbound HTTP must have allowed_hosts configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	file := "modules.toml"
	if len(args) > 0 {
		file = args[0]
	}

	modules, err := config.LoadModules(file)
	if err != nil {
		return err
	}
	if err := config.CheckFiles(modules); err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := resolver.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	for i, m := range modules {
		// Names are indexed here so duplicate file stems cannot alias
		// each other in the store.
		handle, err := store.Load(ctx, fmt.Sprintf("%d/%s", i, m.Name()), m.Path)
		if err != nil {
			return err
		}

		entry := m.Entrypoint
		if entry == "" {
			entry = sandbox.DefaultEntry
		}
		if !handle.HasExport(entry) {
			return fmt.Errorf("module %s: entry point %q not exported", m.Name(), entry)
		}
		if handle.ImportsFrom(hostfunc.ModuleName) && len(m.AllowedHosts) == 0 {
			return fmt.Errorf("module %s: imports outbound HTTP but allowed_hosts is empty", m.Name())
		}

		fmt.Fprintf(out, "%-24s %-24s entry=%s\n", m.Route, m.Module, entry)
	}
	fmt.Fprintf(out, "%d module(s) ok\n", len(modules))
	return nil
}
