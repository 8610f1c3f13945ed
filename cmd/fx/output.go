package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// emit writes v as indented JSON when --json is set and calls text
// otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if !a.jsonOut {
		return text(w)
	}
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// valueJSON is the JSON form of a formula value.
type valueJSON struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func toJSON(v formula.Value) valueJSON {
	return valueJSON{Type: v.Type.String(), Value: plain(v)}
}

// plain converts a value to the nearest JSON-friendly Go value.
func plain(v formula.Value) any {
	switch v.Type {
	case formula.ValueTypeNumber:
		return v.Num
	case formula.ValueTypeText:
		return v.Str
	case formula.ValueTypeBool:
		return v.Bool
	case formula.ValueTypeError:
		return v.Err.String()
	case formula.ValueTypeArray:
		rows := make([][]any, len(v.Rows))
		for i, row := range v.Rows {
			rows[i] = make([]any, len(row))
			for j, cell := range row {
				rows[i][j] = plain(cell)
			}
		}
		return rows
	}
	return nil
}
