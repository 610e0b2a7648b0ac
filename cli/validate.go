package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/georgepadayatti/trustval/config"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/qualified"
	"github.com/georgepadayatti/trustval/report"
	"github.com/georgepadayatti/trustval/validation"
)

// ValidateOptions contains options for the validate command. Flags given on
// the command line override the configuration file.
type ValidateOptions struct {
	ConfigFile   string
	Policy       string
	TrustedLists string
	Level        string
	Time         string
	Format       string
	Report       string
	Output       string
	NoETSI       bool
	Workers      int
	Verbose      bool
}

func newValidateCommand(code *int) *cobra.Command {
	var opts ValidateOptions

	cmd := &cobra.Command{
		Use:   "validate [options] <diagnostic.json>",
		Short: "Validate the signatures of a diagnostic data file",
		Long: "Validate the signatures described by a diagnostic data file and write the reports.\n\n" +
			"The exit code is 0 when every signature is TOTAL_PASSED, 1 when at least one is not\n" +
			"and 2 on configuration or input errors.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.appConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			valid, err := runValidate(ctx, cfg, args[0], opts.Output, opts.Verbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !valid {
				*code = ExitInvalid
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "Application configuration file (YAML)")
	flags.StringVar(&opts.Policy, "policy", "", "Validation policy file (YAML); the built-in policy is used when empty")
	flags.StringVar(&opts.TrustedLists, "trusted-lists", "", "Trusted list analysis file (JSON) enabling qualification")
	flags.StringVar(&opts.Level, "level", "", "Validation level: basic-signatures, timestamps, long-term-data or archival-data")
	flags.StringVar(&opts.Time, "time", "", "Validation time in RFC 3339 (defaults to the validation date of the data, then now)")
	flags.StringVar(&opts.Format, "format", "", "Output format: json, xml or text")
	flags.StringVar(&opts.Report, "report", "", "Report to write: all, simple, detailed or etsi")
	flags.StringVarP(&opts.Output, "output", "o", "", "Output file (defaults to stdout)")
	flags.BoolVar(&opts.NoETSI, "no-etsi", false, "Do not build the ETSI validation report")
	flags.IntVar(&opts.Workers, "workers", 0, "Maximum parallel evaluations")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log at debug level with the development encoder")

	return cmd
}

// appConfig loads the configuration file, if any, and applies the flags.
func (o *ValidateOptions) appConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg := config.DefaultAppConfig()
	if o.ConfigFile != "" {
		loaded, err := config.LoadAppConfig(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Validation.Policy = o.Policy
	}
	if flags.Changed("trusted-lists") {
		cfg.Validation.TrustedLists = o.TrustedLists
	}
	if flags.Changed("level") {
		cfg.Validation.Level = o.Level
	}
	if flags.Changed("time") {
		cfg.Validation.Time = o.Time
	}
	if flags.Changed("workers") {
		cfg.Validation.Workers = o.Workers
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.Format
	}
	if flags.Changed("report") {
		cfg.Output.Report = o.Report
	}
	if o.NoETSI {
		disabled := false
		cfg.Output.ETSI = &disabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runValidate validates one diagnostic data file and writes the selected
// report. It reports whether every signature is TOTAL_PASSED.
func runValidate(ctx context.Context, cfg *config.AppConfig, input, output string, verbose bool, stdout, stderr io.Writer) (bool, error) {
	logger, err := cfg.Logging.Logger(verbose)
	if err != nil {
		return false, err
	}
	defer func() { _ = logger.Sync() }()

	p, err := cfg.Validation.LoadPolicy()
	if err != nil {
		return false, err
	}
	level, err := cfg.Validation.ValidationLevel()
	if err != nil {
		return false, err
	}
	at, err := cfg.Validation.ValidationTime()
	if err != nil {
		return false, err
	}
	data, err := diagnostic.Load(input)
	if err != nil {
		return false, err
	}

	opts := []validation.Option{
		validation.WithLevel(level),
		validation.WithLogger(logger),
		validation.WithReportConfig(cfg.Output.ReportConfig()),
	}
	if !at.IsZero() {
		opts = append(opts, validation.WithValidationTime(at))
	}
	if cfg.Validation.Workers > 0 {
		opts = append(opts, validation.WithWorkers(cfg.Validation.Workers))
	}
	if cfg.Validation.TrustedLists != "" {
		analysis, err := qualified.LoadAnalysis(cfg.Validation.TrustedLists)
		if err != nil {
			return false, err
		}
		opts = append(opts, validation.WithTrustedListAnalysis(analysis))
	}

	reports, err := validation.NewValidator(p, opts...).Validate(ctx, data)
	if err != nil {
		return false, err
	}
	logger.Debug("Reports assembled", zap.String("input", input), zap.String("format", cfg.Output.Format))

	out, err := render(reports, cfg.Output)
	if err != nil {
		return false, err
	}
	if err := write(out, output, stdout); err != nil {
		return false, err
	}
	if reports.Simple.ValidSignaturesCount < reports.Simple.SignaturesCount {
		fmt.Fprintf(stderr, "%d of %d signatures are not valid\n",
			reports.Simple.SignaturesCount-reports.Simple.ValidSignaturesCount, reports.Simple.SignaturesCount)
	}
	return reports.Simple.SignaturesCount > 0 && reports.Simple.ValidSignaturesCount == reports.Simple.SignaturesCount, nil
}

type renderer interface {
	JSON() ([]byte, error)
	XML() ([]byte, error)
}

func render(reports *report.Reports, cfg *config.OutputConfig) ([]byte, error) {
	if cfg.Format == config.FormatText {
		return []byte(reports.Simple.Text()), nil
	}
	var r renderer
	switch cfg.Report {
	case config.ReportSimple:
		r = reports.Simple
	case config.ReportDetailed:
		r = reports.Detailed
	case config.ReportETSI:
		if reports.ETSI == nil {
			return nil, fmt.Errorf("the ETSI validation report is disabled")
		}
		r = reports.ETSI
	default:
		r = reports
	}
	if cfg.Format == config.FormatXML {
		return r.XML()
	}
	return r.JSON()
}

func write(out []byte, path string, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
