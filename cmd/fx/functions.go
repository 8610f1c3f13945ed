package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func (a *app) newFunctionsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the built-in functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFunctions(cmd, formula.Category(category))
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only list one category")
	return cmd
}

type functionInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	MinArgs  int    `json:"min_args"`
	MaxArgs  int    `json:"max_args"`
	Volatile bool   `json:"volatile,omitempty"`
	Stub     bool   `json:"stub,omitempty"`
}

func (a *app) runFunctions(cmd *cobra.Command, only formula.Category) error {
	registry := formula.DefaultRegistry()

	var infos []functionInfo
	known := false
	for _, cat := range formula.Categories() {
		if only != "" && cat != only {
			continue
		}
		known = true
		for _, spec := range registry.ByCategory(cat) {
			infos = append(infos, functionInfo{
				Name:     spec.Name,
				Category: string(spec.Category),
				MinArgs:  spec.MinArgs,
				MaxArgs:  spec.MaxArgs,
				Volatile: spec.Volatile,
				Stub:     spec.Stub,
			})
		}
	}
	if !known {
		return fmt.Errorf("unknown category %q", only)
	}

	return a.emit(cmd, infos, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCATEGORY\tARGS")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Category, arity(info.MinArgs, info.MaxArgs))
		}
		return tw.Flush()
	})
}

func arity(minArgs, maxArgs int) string {
	switch {
	case maxArgs == formula.Variadic:
		return strconv.Itoa(minArgs) + "+"
	case minArgs == maxArgs:
		return strconv.Itoa(minArgs)
	}
	return strconv.Itoa(minArgs) + "-" + strconv.Itoa(maxArgs)
}
