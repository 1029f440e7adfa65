package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/calvinalkan/guardstack/internal/config"
	"github.com/calvinalkan/guardstack/pkg/guardstack"
	"github.com/calvinalkan/guardstack/pkg/guardstack/gsprom"
)

// Run is the main entry point. Returns exit code.
//
// Commands are read from in. When in is a terminal the session is
// interactive (line editing, history); otherwise every line of in is run as
// a command. A single positional argument names a script file to run
// instead of in. A signal on sigCh stops the session between commands.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags, err := parseGlobalFlags(args[min(1, len(args)):])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out)

			return 0
		}

		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    workDir,
		ConfigPath: flags.configPath,
		Overrides:  flags.overrides,
		Env:        env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	script := in
	if script == nil {
		script = strings.NewReader("")
	}

	interactive := isTerminal(in)

	if flags.script != "" && flags.script != "-" {
		path := flags.script
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		f, openErr := os.Open(path) //nolint:gosec // user-supplied script path
		if openErr != nil {
			fprintln(errOut, "error: cannot open script:", openErr)

			return 1
		}

		defer func() { _ = f.Close() }()

		script = f
		interactive = false
	}

	logger, logCloser, err := cfg.OpenLogger(workDir)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = logCloser.Close() }()

	o := NewIO(out, errOut)

	sess, err := newSession(cfg, workDir, logger)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() {
		closeErr := sess.stk.Close()
		if closeErr != nil {
			fprintln(errOut, "error:", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if interactive {
		err = sess.runInteractive(ctx, o, historyPath(cfg, env))
	} else {
		err = sess.runScript(ctx, o, script)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fprintln(errOut, "error:", err)

		return 1
	}

	code := o.Finish()

	if ctx.Err() != nil {
		return 130 //nolint:mnd // conventional exit code for SIGINT
	}

	if sess.failed > 0 && !interactive {
		return 1
	}

	return code
}

// newSession creates the stack and its metrics registry.
func newSession(cfg config.Config, workDir string, logger *zerolog.Logger) (*session, error) {
	opts, err := cfg.StackOptions()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()

	obs, err := gsprom.New(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	region := &trackingAllocator{Allocator: opts.Allocator}

	opts.Allocator = region
	opts.Observer = obs
	opts.Logger = logger

	stk, err := guardstack.NewOf[int32](opts)
	if err != nil {
		return nil, fmt.Errorf("create stack: %w", err)
	}

	if logger != nil {
		logger.Info().
			Stringer("protection", stk.Untyped().Protection()).
			Str("checksum", cfg.Checksum).
			Str("allocator", cfg.Allocator).
			Msg("session started")
	}

	return &session{
		stk:     stk,
		region:  region,
		reg:     reg,
		cfg:     cfg,
		workDir: workDir,
	}, nil
}

type globalFlags struct {
	workDir    string
	configPath string
	overrides  config.Config
	script     string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	fs := flag.NewFlagSet("gstack", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var gf globalFlags

	fs.StringVarP(&gf.workDir, "cwd", "C", "", "run as if started in `dir`")
	fs.StringVarP(&gf.configPath, "config", "c", "", "use the specified config `file`")
	disable := fs.StringSlice("disable", nil, "protection `layers` to switch off")
	fs.StringVar(&gf.overrides.Checksum, "checksum", "", "checksum algorithm")
	fs.StringVar(&gf.overrides.Allocator, "allocator", "", "region allocator")
	fs.IntVar(&gf.overrides.Floor, "floor", 0, "minimum capacity")
	fs.StringVar(&gf.overrides.LogFile, "log-file", "", "write diagnostic records to `file`")
	fs.StringVar(&gf.overrides.LogLevel, "log-level", "", "minimum log `level`")
	fs.StringVar(&gf.overrides.OnCorruption, "on-corruption", "", "corruption policy")
	noHistory := fs.Bool("no-history", false, "do not read or write ~/"+historyName)

	err := fs.Parse(args)
	if err != nil {
		return globalFlags{}, err //nolint:wrapcheck // pflag errors are self-describing
	}

	if fs.Changed("disable") {
		gf.overrides.Disable = *disable
		if gf.overrides.Disable == nil {
			gf.overrides.Disable = []string{}
		}
	}

	if fs.Changed("floor") && gf.overrides.Floor <= 0 {
		return globalFlags{}, fmt.Errorf("%w: --floor must be positive", ErrInvalidArgument)
	}

	if *noHistory {
		history := false
		gf.overrides.History = &history
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		gf.script = rest[0]
	default:
		return globalFlags{}, fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(rest[1:], " "))
	}

	return gf, nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(writer io.Writer) {
	fprintln(writer, `gstack - interactive integrity-checked stack

Usage: gstack [options] [script]

Reads commands from the terminal, from stdin, or from a script file
("-" means stdin). Type 'help' at the prompt for the command list.

Options:
  -C, --cwd <dir>           Run as if started in <dir>
  -c, --config <file>       Use specified config file
      --disable <layers>    Protection layers to switch off
                            (metaguard,dataguard,metahash,datahash,poison)
      --checksum <name>     fold, xxh64 or blake3
      --allocator <name>    heap, mmap or guarded
      --floor <n>           Minimum capacity (default 10)
      --log-file <file>     Write diagnostic records to <file>
      --log-level <level>   trace, debug, info, warn or error
      --on-corruption <p>   report or panic
      --no-history          Do not read or write ~/`+historyName+`
  -h, --help                Show this help`)
}
