package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/internal/config"
	"github.com/vogtb/go-spreadsheet/internal/logger"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

// Version is the fx release.
const Version = "0.3.0"

// app carries the global flags and what setup derives from them.
type app struct {
	cfgFile string
	debug   bool
	jsonOut bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fx",
		Short: "Evaluate spreadsheet formulas",
		Long: `fx parses and evaluates spreadsheet formulas with the go-spreadsheet engine.

Formulas can be evaluated on their own, against cells given on the command
line, or against the sheets of an .xlsx workbook.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "write JSON instead of text")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		a.newEvalCmd(),
		a.newCalcCmd(),
		a.newFunctionsCmd(),
		a.newTokensCmd(),
		a.newRefsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	overrides := map[string]string{}
	if a.debug {
		overrides["logging.level"] = "debug"
	}
	cfg, err := config.NewLoader().WithConfigPath(a.cfgFile).WithOverrides(overrides).Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Logging)
	a.log.Debug("configuration loaded", zap.String("command", cmd.Name()), zap.String("file", a.cfgFile))
	return nil
}

// limits are the engine options that apply whatever the workbook source.
// bookOptions configures workbooks opened from disk. the config's date
// system only applies when the file does not name its own.
func (a *app) bookOptions() []xlsx.Option {
	return []xlsx.Option{
		xlsx.WithLogger(a.log),
		xlsx.WithEngineOptions(a.limits()...),
		xlsx.WithDefaultDate1904(a.cfg.Engine.Date1904),
	}
}

func (a *app) limits() []formula.Option {
	return []formula.Option{
		formula.WithLogger(a.log),
		formula.WithMaxDepth(a.cfg.Engine.MaxDepth),
		formula.WithMaxRangeCells(a.cfg.Engine.MaxRangeCells),
	}
}
