// Command diagramd runs the diagram generation service: a WebSocket API
// that turns structured requests into SVG, Mermaid, and chart artifacts.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is populated by the linker at release time.
var version = "dev"

var (
	green = color.New(color.FgGreen).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

var configFile string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "diagramd",
		Short: "WebSocket diagram generation service",
		Long: "diagramd serves diagram generation over WebSocket: SVG templates,\n" +
			"Mermaid DSL, and python chart artifacts, with caching and object\n" +
			"store upload.",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare invocation starts the service with file/env configuration.
		RunE: runServeCommand,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: diagramd.yaml in . or /etc/diagramd)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newTemplatesCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("diagramd %s\n", version)
		},
	}
}
