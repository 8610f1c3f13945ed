package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/efp"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func (a *app) newTokensCmd() *cobra.Command {
	var withEFP bool
	cmd := &cobra.Command{
		Use:   "tokens <formula>",
		Short: "Print the tokens of a formula",
		Long: `tokens prints the token stream the lexer produces for a formula. With
--efp the tokens of the efp tokenizer are printed as well, which is useful
when comparing how the two read an unusual formula.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTokens(cmd, args[0], withEFP)
		},
	}
	cmd.Flags().BoolVar(&withEFP, "efp", false, "also print the efp tokenizer's tokens")
	return cmd
}

type tokenInfo struct {
	Pos   int    `json:"pos"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type efpTokenInfo struct {
	Type    string `json:"type"`
	SubType string `json:"subtype,omitempty"`
	Value   string `json:"value"`
}

type tokensOutput struct {
	Tokens []tokenInfo    `json:"tokens"`
	EFP    []efpTokenInfo `json:"efp,omitempty"`
}

func (a *app) runTokens(cmd *cobra.Command, src string, withEFP bool) error {
	src = strings.TrimPrefix(src, "=")
	tokens, err := formula.Tokenize(src)
	if err != nil {
		return err
	}

	var out tokensOutput
	for _, tok := range tokens {
		if tok.Type == formula.TokenEOF {
			continue
		}
		out.Tokens = append(out.Tokens, tokenInfo{Pos: tok.Pos, Type: tok.Type.String(), Value: tok.Value})
	}
	if withEFP {
		parser := efp.ExcelParser()
		for _, tok := range parser.Parse("=" + src) {
			out.EFP = append(out.EFP, efpTokenInfo{Type: tok.TType, SubType: tok.TSubType, Value: tok.TValue})
		}
	}

	return a.emit(cmd, out, func(w io.Writer) error {
		for _, tok := range out.Tokens {
			fmt.Fprintf(w, "%d\t%s\t%s\n", tok.Pos, tok.Type, tok.Value)
		}
		if withEFP {
			fmt.Fprintln(w, "-- efp")
			for _, tok := range out.EFP {
				fmt.Fprintf(w, "%s\t%s\t%s\n", tok.Type, tok.SubType, tok.Value)
			}
		}
		return nil
	})
}

func (a *app) newRefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs <formula>",
		Short: "List the cells, ranges and names a formula references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRefs(cmd, args[0])
		},
	}
}

type refInfo struct {
	Ref   string `json:"ref"`
	Kind  string `json:"kind"`
	Sheet string `json:"sheet,omitempty"`
}

func (a *app) runRefs(cmd *cobra.Command, src string) error {
	engine, err := formula.NewEngine(a.limits()...)
	if err != nil {
		return err
	}
	f, err := engine.Parse(src)
	if err != nil {
		return err
	}
	var refs []refInfo
	for _, ref := range f.References() {
		kind := "cell"
		switch {
		case ref.IsName:
			kind = "name"
		case ref.IsRange:
			kind = "range"
		}
		refs = append(refs, refInfo{Ref: ref.String(), Kind: kind, Sheet: ref.Sheet})
	}
	return a.emit(cmd, refs, func(w io.Writer) error {
		for _, r := range refs {
			fmt.Fprintf(w, "%s\t%s\n", r.Kind, r.Ref)
		}
		return nil
	})
}
