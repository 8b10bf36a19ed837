package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"filemarker/cmd/filemarker/ui"
	"filemarker/internal/plugin"

	"github.com/spf13/cobra"
)

var outputFormat string

// marksCmd prints the collected marks
var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Print the marks declared in the selected files",
	Long: `Inspects the files given with --files (or the files git reports as
changed) and prints the union of the marks they declare, followed by the
marks contributed by each file.`,
	Args: noArgs,
	RunE: runMarks,
}

// selectCmd prints the composed selection
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Print the composed mark expression",
	Long: `Composes the collected marks with --marks-expr and prints the
resulting expression. With --format json the full selection report is
printed, including the per-file sources and the run id.`,
	Args: noArgs,
	RunE: runSelect,
}

func init() {
	for _, cmd := range []*cobra.Command{marksCmd, selectCmd, listCmd} {
		cmd.Flags().StringVar(&outputFormat, "format", "text", "Output format: text or json")
	}
}

// activeOptions forces activation: these commands exist to show a selection.
func activeOptions(s *session) plugin.Options {
	opts := s.options()
	opts.Active = true
	return opts
}

func runMarks(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	p, err := s.configure(ctx, activeOptions(s))
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(os.Stdout, p.Report())
	}

	styles := ui.DefaultStyles()
	marks := p.Marks()
	if len(marks) == 0 {
		fmt.Println(styles.Warning.Render("No marks found"))
	} else {
		fmt.Println(styles.Title.Render("Marks:"), renderMarks(styles, marks))
	}
	for _, src := range p.Sources() {
		fmt.Printf("  %s (%s): %s\n", styles.Path.Render(src.Path), src.Language, renderMarks(styles, src.Marks))
	}
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	p, err := s.configure(ctx, activeOptions(s))
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(os.Stdout, p.Report())
	}

	sel := p.Selection()
	if sel.DeselectAll {
		fmt.Println("deselect all")
		return nil
	}
	fmt.Println(sel.Expression)
	return nil
}

func renderMarks(styles ui.Styles, marks []string) string {
	if len(marks) == 0 {
		return styles.Muted.Render("(none)")
	}
	rendered := make([]string, len(marks))
	for i, m := range marks {
		rendered[i] = styles.Mark.Render(m)
	}
	return strings.Join(rendered, ", ")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
