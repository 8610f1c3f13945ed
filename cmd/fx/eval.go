package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/workbook"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

type evalFlags struct {
	sets  []string
	file  string
	sheet string
}

func (a *app) newEvalCmd() *cobra.Command {
	var flags evalFlags
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate one formula",
		Example: `  fx eval "1+2*3"
  fx eval --set A1=10 --set A2=32 "SUM(A1:A2)"
  fx eval --set "B1==A1*2" --set A1=4 "B1+1"
  fx eval --file book.xlsx --sheet Data "VLOOKUP(2,A1:C9,3,FALSE)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEval(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringArrayVarP(&flags.sets, "set", "s", nil, "set a cell before evaluating, as ADDRESS=VALUE (repeatable)")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "evaluate against an .xlsx workbook")
	cmd.Flags().StringVar(&flags.sheet, "sheet", "", "sheet the formula is evaluated on")
	return cmd
}

type evalOutput struct {
	Formula string `json:"formula"`
	valueJSON
}

func (a *app) runEval(cmd *cobra.Command, src string, flags evalFlags) error {
	var (
		v   formula.Value
		err error
	)
	if flags.file != "" {
		if len(flags.sets) > 0 {
			return fmt.Errorf("--set cannot be combined with --file")
		}
		v, err = a.evalInBook(flags.file, flags.sheet, src)
	} else {
		v, err = a.evalInWorkbook(flags.sets, flags.sheet, src)
	}
	if err != nil {
		return err
	}

	out := evalOutput{Formula: src, valueJSON: toJSON(v)}
	return a.emit(cmd, out, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, v.String())
		return err
	})
}

func (a *app) evalInBook(path, sheet, src string) (formula.Value, error) {
	book, err := xlsx.Open(path, a.bookOptions()...)
	if err != nil {
		return formula.Value{}, err
	}
	defer book.Close()
	return book.Evaluate(sheet, src)
}

func (a *app) evalInWorkbook(sets []string, sheet, src string) (formula.Value, error) {
	engine, err := formula.NewEngine(append(a.limits(), formula.WithDate1904(a.cfg.Engine.Date1904))...)
	if err != nil {
		return formula.Value{}, err
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	wb := workbook.New(workbook.WithEngine(engine), workbook.WithLogger(a.log))
	if err := wb.AddWorksheet(sheet); err != nil {
		return formula.Value{}, err
	}
	for _, set := range sets {
		address, raw, ok := strings.Cut(set, "=")
		if !ok || address == "" {
			return formula.Value{}, fmt.Errorf("--set %q: want ADDRESS=VALUE", set)
		}
		if err := wb.Set(address, literal(raw)); err != nil {
			return formula.Value{}, fmt.Errorf("--set %s: %w", address, err)
		}
	}
	return wb.Evaluate(src)
}

// literal reads a --set value: formulas keep their "=", then numbers,
// booleans and error literals are recognised, and anything else is text.
func literal(raw string) any {
	if strings.HasPrefix(raw, "=") {
		return raw
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if code, ok := formula.ParseErrorCode(raw); ok {
		return code
	}
	return raw
}
