package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/config"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/router"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/template"
)

func newTemplatesCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List loaded SVG templates and the strategy routes per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := template.Load(dir, nil)
			if err != nil {
				return fmt.Errorf("load templates: %w", err)
			}
			routes := router.New(lib.IDs())

			fmt.Printf("%s %s\n", bold("Templates in"), cyan(dir))
			ids := lib.IDs()
			sort.Strings(ids)
			for _, id := range ids {
				tpl, err := lib.Get(id)
				if err != nil {
					return err
				}
				detail := fmt.Sprintf("%s  text_slots=%d fill_slots=%d",
					tpl.Name, tpl.TextSlots, tpl.FillSlots)
				fmt.Printf("  %s %-18s %s\n", green("*"), bold(tpl.ID), gray(detail))
			}

			fmt.Printf("\n%s\n", bold("Supported kinds"))
			for _, kind := range protocol.Kinds() {
				chain, err := routes.Routes(kind)
				if err != nil {
					continue
				}
				names := make([]string, len(chain))
				for i, route := range chain {
					names[i] = string(route.Strategy)
				}
				fmt.Printf("  %-18s %s\n", kind, gray(strings.Join(names, " -> ")))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", config.DefaultTemplateDir, "templates directory")
	return cmd
}
