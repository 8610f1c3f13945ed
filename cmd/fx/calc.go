package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

type calcFlags struct {
	sheets []string
	output string
}

func (a *app) newCalcCmd() *cobra.Command {
	var flags calcFlags
	cmd := &cobra.Command{
		Use:   "calc <book.xlsx>",
		Short: "Evaluate every formula cell of a workbook",
		Long: `calc evaluates the formula cells of an .xlsx workbook from their formula
text, ignoring the values cached in the file, and prints one line per cell.
With --output the computed values are stored as the cached values and the
workbook is written to the given path.`,
		Example: `  fx calc book.xlsx
  fx calc --sheet Summary --output calculated.xlsx book.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCalc(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.sheets, "sheet", nil, "sheets to calculate (default all)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the calculated workbook to this path")
	return cmd
}

type calcCell struct {
	Sheet   string `json:"sheet"`
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
	valueJSON
}

func (a *app) runCalc(cmd *cobra.Command, path string, flags calcFlags) error {
	book, err := xlsx.Open(path, a.bookOptions()...)
	if err != nil {
		return err
	}
	defer book.Close()

	sheets := flags.sheets
	if len(sheets) == 0 {
		sheets = book.Sheets()
	}
	writeBack := flags.output != ""

	var cells []calcCell
	for _, sheet := range sheets {
		results, err := book.Calculate(sheet, writeBack)
		if err != nil {
			return err
		}
		for _, r := range results {
			cells = append(cells, calcCell{
				Sheet:     sheet,
				Cell:      r.Cell,
				Formula:   r.Formula,
				valueJSON: toJSON(r.Value),
			})
		}
	}

	if writeBack {
		if err := book.SaveAs(flags.output); err != nil {
			return err
		}
		a.log.Info("wrote calculated workbook", zap.String("path", flags.output), zap.Int("cells", len(cells)))
	}

	return a.emit(cmd, cells, func(w io.Writer) error {
		for _, c := range cells {
			ref := formula.QuoteSheetName(c.Sheet) + "!" + c.Cell
			if _, err := fmt.Fprintf(w, "%s\t%s\t%v\n", ref, c.Formula, displayValue(c.valueJSON)); err != nil {
				return err
			}
		}
		return nil
	})
}

func displayValue(v valueJSON) string {
	switch x := v.Value.(type) {
	case nil:
		return ""
	case float64:
		return formula.FormatNumber(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	}
	return fmt.Sprint(v.Value)
}
