package main

import (
	"fmt"
	"os"

	"filemarker/cmd/filemarker/ui"
	"filemarker/internal/collect"
	"filemarker/internal/runner"

	"github.com/spf13/cobra"
)

// listCmd lists the collected tests and whether they are selected
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List collected tests with their marks and selection state",
	Args:  noArgs,
	RunE:  runList,
}

type listedItem struct {
	collect.Item
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type listing struct {
	Active     bool         `json:"active"`
	Expression string       `json:"expression,omitempty"`
	Items      []listedItem `json:"items"`
	Plan       runner.Plan  `json:"plan"`
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	p, err := s.configure(ctx, s.options())
	if err != nil {
		return err
	}
	items, err := s.collectItems(ctx)
	if err != nil {
		return err
	}
	selected, _ := selectItems(p, items)

	chosen := make(map[string]bool, len(selected))
	for _, it := range selected {
		chosen[it.ID()] = true
	}

	out := listing{Active: p != nil, Plan: runner.NewPlan(selected)}
	if p != nil {
		out.Expression = p.Selection().Expression
	}
	for _, it := range items {
		out.Items = append(out.Items, listedItem{Item: it, ID: it.ID(), Selected: chosen[it.ID()]})
	}

	if outputFormat == "json" {
		return writeJSON(os.Stdout, out)
	}

	styles := ui.DefaultStyles()
	for _, it := range out.Items {
		fmt.Printf("%-10s %s %s\n", styles.Status(it.Selected), it.ID, renderMarks(styles, it.Marks))
	}
	fmt.Printf("\n%d selected, %d deselected\n", len(selected), len(items)-len(selected))
	return nil
}
