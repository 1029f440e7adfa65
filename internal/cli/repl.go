package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/guardstack/internal/config"
	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

const (
	prompt      = ">>> "
	historyName = ".gstack_history"
)

// session is one REPL run over a single stack.
type session struct {
	stk     *guardstack.Of[int32]
	region  *trackingAllocator
	reg     *prometheus.Registry
	cfg     config.Config
	workDir string

	// done is set by the exit command.
	done bool

	// failed counts commands that returned a non-zero code.
	failed int
}

// exec runs one input line. Blank lines and # comments are ignored.
func (s *session) exec(ctx context.Context, o *IO, line string) int {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])

	cmd := s.lookup(name)
	if cmd == nil {
		o.ErrPrintln("error: unknown command:", name, "(type 'help' for commands)")

		return 1
	}

	return cmd.Run(ctx, o, fields[1:])
}

// runScript reads commands line by line until EOF, exit, or a signal.
func (s *session) runScript(ctx context.Context, o *IO, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for !s.done && scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.exec(ctx, o, scanner.Text()) != 0 {
			s.failed++
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

// runInteractive drives the prompt with line editing, history and tab
// completion.
func (s *session) runInteractive(ctx context.Context, o *IO, historyPath string) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil { //nolint:gosec // path is derived from $HOME
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
	}

	o.Printf("gstack - guarded stack REPL (%s, checksum %s, allocator %s)\n",
		s.stk.Untyped().Protection(), s.cfg.Checksum, s.cfg.Allocator)
	o.Println("Type 'help' for available commands.")
	o.Println()

	var loopErr error

	for !s.done && ctx.Err() == nil {
		input, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				o.Println()
				o.Println("Bye!")

				break
			}

			loopErr = fmt.Errorf("reading input: %w", err)

			break
		}

		if strings.TrimSpace(input) == "" {
			continue
		}

		line.AppendHistory(input)

		if s.exec(ctx, o, input) != 0 {
			s.failed++
		}
	}

	if historyPath != "" {
		err := saveHistory(line, historyPath)
		if err != nil {
			o.Warn("cannot save history", err.Error())
		}
	}

	return loopErr
}

func saveHistory(line *liner.State, path string) error {
	f, err := os.Create(path) //nolint:gosec // path is derived from $HOME
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}

	_, err = line.WriteHistory(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("write history: %w", err)
	}

	return f.Close()
}

// complete returns the command names starting with the typed prefix.
func (s *session) complete(line string) []string {
	if strings.Contains(line, " ") {
		return nil
	}

	var completions []string

	lower := strings.ToLower(line)

	for _, cmd := range s.commands() {
		for _, name := range append([]string{cmd.Name()}, cmd.Aliases...) {
			if strings.HasPrefix(name, lower) {
				completions = append(completions, name)
			}
		}
	}

	return completions
}

// historyPath returns ~/.gstack_history, or "" if history is disabled or
// HOME is unknown.
func historyPath(cfg config.Config, env map[string]string) string {
	if !cfg.HistoryEnabled() {
		return ""
	}

	home := env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, historyName)
}
