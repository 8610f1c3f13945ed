// Command fx evaluates spreadsheet formulas from the command line, either
// standalone, against inline cells, or against an .xlsx workbook.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
