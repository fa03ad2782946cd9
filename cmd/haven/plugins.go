package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haven-hvn/haven/pkg/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect registered plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered plugins",
	RunE:  runPluginsList,
}

var pluginsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Health-check registered plugins",
	RunE:  runPluginsHealth,
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd)
	pluginsCmd.AddCommand(pluginsHealthCmd)
}

// builtinRegistry returns the registry of plugins compiled into this
// binary. The core ships none; deployments register their connectors here
// or link them in via their own main package.
func builtinRegistry() *plugin.Registry {
	return plugin.NewRegistry()
}

func runPluginsList(cmd *cobra.Command, args []string) error {
	registry := builtinRegistry()
	names := registry.Names()
	if len(names) == 0 {
		fmt.Println("No plugins registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tMEDIA TYPES\tCAPABILITIES")
	for _, name := range names {
		p, err := registry.Create(name, nil)
		if err != nil {
			continue
		}
		info := p.Info()
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n",
			info.Name, info.Version, info.MediaTypes, describeCapabilities(info.Capabilities))
	}
	return w.Flush()
}

func runPluginsHealth(cmd *cobra.Command, args []string) error {
	registry := builtinRegistry()
	manager := plugin.NewManager(registry)

	ctx := context.Background()
	for _, name := range registry.Names() {
		if _, err := manager.Get(ctx, name); err != nil {
			fmt.Printf("%s: initialization failed: %v\n", name, err)
		}
	}

	results := manager.HealthCheckAll(ctx)
	if len(results) == 0 {
		fmt.Println("No plugins registered")
		return nil
	}
	for name, healthy := range results {
		state := "healthy"
		if !healthy {
			state = "unhealthy"
		}
		fmt.Printf("%s: %s\n", name, state)
	}
	manager.ShutdownAll(ctx)
	return nil
}

func describeCapabilities(set plugin.CapabilitySet) string {
	names := map[plugin.Capability]string{
		plugin.CapabilityDiscover:    "discover",
		plugin.CapabilityArchive:     "archive",
		plugin.CapabilityStream:      "stream",
		plugin.CapabilitySearch:      "search",
		plugin.CapabilityMetadata:    "metadata",
		plugin.CapabilityHealthCheck: "health-check",
	}

	out := ""
	for _, c := range []plugin.Capability{
		plugin.CapabilityDiscover,
		plugin.CapabilityArchive,
		plugin.CapabilityStream,
		plugin.CapabilitySearch,
		plugin.CapabilityMetadata,
		plugin.CapabilityHealthCheck,
	} {
		if set.Has(c) {
			if out != "" {
				out += ","
			}
			out += names[c]
		}
	}
	if out == "" {
		return "-"
	}
	return out
}
