package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/guardstack/internal/config"
	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// Errors for REPL argument handling.
var (
	ErrArgRequired     = errors.New("missing argument")
	ErrTooManyArgs     = errors.New("too many arguments")
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	formatText = "text"
	formatYAML = "yaml"

	defaultStressRounds = 100
	stressPops          = 10
	stressPushes        = 20
)

// commands builds the command table. Flag sets are fresh on every call so
// values never leak between prompt lines.
func (s *session) commands() []*Command {
	return []*Command{
		s.helpCmd(),
		s.exitCmd(),
		s.pushCmd(),
		s.popCmd(),
		s.topCmd(),
		{Usage: "size", Short: "Print the number of elements", Exec: noArgs(s.execSize)},
		{Usage: "empty", Short: "Check whether the stack is empty", Exec: noArgs(s.execEmpty)},
		{Usage: "capacity", Short: "Print the number of allocated slots", Exec: noArgs(s.execCapacity)},
		s.reserveCmd(),
		s.dumpCmd(),
		{Usage: "error", Short: "Print the stack status", Exec: noArgs(s.execError)},
		s.pokeCmd(),
		s.stressCmd(),
		{Usage: "stats", Short: "Print verification and resize counters", Exec: noArgs(s.execStats)},
		{Usage: "layers", Short: "Print active protection layers", Exec: noArgs(s.execLayers)},
		{Usage: "config", Short: "Print resolved configuration", Exec: noArgs(s.execConfig)},
	}
}

// lookup returns the command named word, or nil.
func (s *session) lookup(word string) *Command {
	for _, cmd := range s.commands() {
		if cmd.Matches(word) {
			return cmd
		}
	}

	return nil
}

func noArgs(fn func(o *IO) error) func(ctx context.Context, o *IO, args []string) error {
	return func(_ context.Context, o *IO, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args, " "))
		}

		return fn(o)
	}
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func (s *session) helpCmd() *Command {
	return &Command{
		Usage:   "help [command]",
		Aliases: []string{"?"},
		Short:   "Print this message",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				s.printHelp(o)

				return nil
			}

			cmd := s.lookup(strings.ToLower(args[0]))
			if cmd == nil {
				return fmt.Errorf("%w: unknown command %q", ErrInvalidArgument, args[0])
			}

			cmd.PrintHelp(o)

			return nil
		},
	}
}

func (s *session) printHelp(o *IO) {
	o.Println("Commands:")

	for _, cmd := range s.commands() {
		o.Println(cmd.HelpLine())
	}
}

func (s *session) exitCmd() *Command {
	return &Command{
		Usage:   "exit",
		Aliases: []string{"quit", "q"},
		Short:   "Quit this program",
		Exec: noArgs(func(o *IO) error {
			s.done = true

			o.Println("Bye!")

			return nil
		}),
	}
}

func (s *session) pushCmd() *Command {
	return &Command{
		Usage: "push <int>...",
		Short: "Push items onto the stack",
		Long:  "Push one or more 32-bit integers, left to right. Stops at the first failure.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: push takes at least one integer", ErrArgRequired)
			}

			values := make([]int32, 0, len(args))

			for _, arg := range args {
				v, err := strconv.ParseInt(arg, 0, 32)
				if err != nil {
					return fmt.Errorf("%w: %q is not a 32-bit integer", ErrInvalidArgument, arg)
				}

				values = append(values, int32(v))
			}

			for _, v := range values {
				err := s.stk.Push(v)
				if err != nil {
					return fmt.Errorf("failed to push %d: %w", v, err)
				}

				o.Printf("Pushed %d to stack\n", v)
			}

			return nil
		},
	}
}

func (s *session) popCmd() *Command {
	return &Command{
		Usage: "pop",
		Short: "Pop the top item",
		Exec: noArgs(func(o *IO) error {
			v, err := s.stk.Pop()
			if err != nil {
				return err //nolint:wrapcheck // already names the operation
			}

			o.Printf("Popped %d from stack\n", v)

			if status := s.stk.Status(); status != guardstack.StatusOK {
				o.Warn("shrinking after pop failed", "the stack keeps its larger region; check memory limits")
			}

			return nil
		}),
	}
}

func (s *session) topCmd() *Command {
	return &Command{
		Usage:   "top",
		Aliases: []string{"peek"},
		Short:   "Peek at the top item",
		Exec: noArgs(func(o *IO) error {
			v, err := s.stk.Peek()
			if err != nil {
				return err //nolint:wrapcheck // already names the operation
			}

			o.Printf("Stack top is %d\n", v)

			return nil
		}),
	}
}

func (s *session) execSize(o *IO) error {
	o.Printf("Stack size is %d\n", s.stk.Len())

	return nil
}

func (s *session) execEmpty(o *IO) error {
	if s.stk.IsEmpty() {
		o.Println("Stack is empty")
	} else {
		o.Println("Stack is not empty")
	}

	return nil
}

func (s *session) execCapacity(o *IO) error {
	o.Printf("Stack capacity is %d\n", s.stk.Cap())

	return nil
}

func (s *session) reserveCmd() *Command {
	return &Command{
		Usage: "reserve <n>",
		Short: "Reserve capacity",
		Long:  "Raise the capacity floor to n slots. The region never shrinks below it afterwards.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: reserve takes exactly one count", ErrArgRequired)
			}

			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("%w: %q is not a non-negative count", ErrInvalidArgument, args[0])
			}

			got, err := s.stk.Reserve(n)
			if err != nil {
				return fmt.Errorf("failed to reserve capacity for %d elements: %w", n, err)
			}

			o.Printf("Reserved capacity for %d elements\n", got)

			return nil
		},
	}
}

func (s *session) dumpCmd() *Command {
	flags := newFlags("dump")
	format := flags.StringP("format", "f", formatText, "output format: text or yaml")
	out := flags.StringP("out", "o", "", "write the dump to `FILE` instead of stdout")

	return &Command{
		Flags: flags,
		Usage: "dump [--format text|yaml] [--out FILE]",
		Short: "Print stack information",
		Long:  "Print every tracked field, guard, checksum and slot. Works on corrupt stacks.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args, " "))
			}

			snap := s.stk.Untyped().Snapshot()

			var data []byte

			switch strings.ToLower(*format) {
			case formatText:
				var buf bytes.Buffer

				err := snap.WriteText(&buf)
				if err != nil {
					return fmt.Errorf("render dump: %w", err)
				}

				data = buf.Bytes()
			case formatYAML:
				var err error

				data, err = snap.YAML()
				if err != nil {
					return fmt.Errorf("render dump: %w", err)
				}
			default:
				return fmt.Errorf("%w: format %q (want text or yaml)", ErrInvalidArgument, *format)
			}

			if *out == "" {
				_, err := o.Out().Write(data)
				if err != nil {
					return fmt.Errorf("write dump: %w", err)
				}

				return nil
			}

			path := *out
			if !filepath.IsAbs(path) {
				path = filepath.Join(s.workDir, path)
			}

			err := atomic.WriteFile(path, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("write dump: %w", err)
			}

			o.Printf("Wrote dump to %s\n", path)

			return nil
		},
	}
}

func (s *session) execError(o *IO) error {
	status := s.stk.Status()
	o.Printf("%s: %s\n", status, status.Message())

	return nil
}

func (s *session) pokeCmd() *Command {
	return &Command{
		Usage: "poke <offset> <byte>",
		Short: "Overwrite one byte of the data region",
		Long: "Overwrite the byte at offset (counted from the start of the data region,\n" +
			"guard padding included) without going through the stack. The next\n" +
			"operation reports the corruption.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 2 { //nolint:mnd // offset and value
				return fmt.Errorf("%w: poke takes an offset and a byte value", ErrArgRequired)
			}

			offset, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: offset %q", ErrInvalidArgument, args[0])
			}

			value, err := strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				return fmt.Errorf("%w: byte %q", ErrInvalidArgument, args[1])
			}

			old, err := s.region.poke(offset, byte(value))
			if err != nil {
				return fmt.Errorf("poke: %w", err)
			}

			o.Printf("Poked offset %d of %d: %02X -> %02X\n", offset, s.region.size(), old, byte(value))

			return nil
		},
	}
}

func (s *session) stressCmd() *Command {
	flags := newFlags("stress")
	rounds := flags.IntP("rounds", "n", defaultStressRounds, "number of pop/push rounds")
	seed := flags.Uint64("seed", 0, "random seed (0 picks one)")

	return &Command{
		Flags: flags,
		Usage: "stress [--rounds N] [--seed S]",
		Short: "Run the pop/push stress scenario",
		Long: fmt.Sprintf("Each round pops %d items (tolerating an empty stack), then pushes %d random\n"+
			"items and checks the top after every push. Finally drains the stack.", stressPops, stressPushes),
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args, " "))
			}

			if *rounds < 0 {
				return fmt.Errorf("%w: rounds %d", ErrInvalidArgument, *rounds)
			}

			src := *seed
			if src == 0 {
				src = rand.Uint64()
			}

			result, err := stress(s.stk, *rounds, rand.New(rand.NewPCG(src, src)))
			if err != nil {
				return fmt.Errorf("stress (seed %d): %w", src, err)
			}

			o.Printf("Stress passed: %d rounds, %d pushes, %d pops, peak size %d, final capacity %d\n",
				*rounds, result.pushes, result.pops, result.peak, s.stk.Cap())

			return nil
		},
	}
}

type stressResult struct {
	pushes int
	pops   int
	peak   int
}

// stress runs the scenario against stk and a slice model.
func stress(stk *guardstack.Of[int32], rounds int, rng *rand.Rand) (stressResult, error) {
	var (
		res   stressResult
		model []int32
	)

	pop := func() error {
		v, err := stk.Pop()
		if len(model) == 0 {
			if !errors.Is(err, guardstack.ErrEmpty) {
				return fmt.Errorf("pop on empty stack: got %v, want %w", err, guardstack.ErrEmpty)
			}

			return nil
		}

		if err != nil {
			return fmt.Errorf("pop: %w", err)
		}

		want := model[len(model)-1]
		model = model[:len(model)-1]
		res.pops++

		if v != want {
			return fmt.Errorf("pop returned %d, want %d", v, want)
		}

		return nil
	}

	for range rounds {
		for range stressPops {
			if err := pop(); err != nil {
				return res, err
			}
		}

		for range stressPushes {
			v := rng.Int32()

			err := stk.Push(v)
			if err != nil {
				return res, fmt.Errorf("push: %w", err)
			}

			model = append(model, v)
			res.pushes++
			res.peak = max(res.peak, len(model))

			top, err := stk.Peek()
			if err != nil {
				return res, fmt.Errorf("peek: %w", err)
			}

			if top != v {
				return res, fmt.Errorf("top is %d after pushing %d", top, v)
			}
		}
	}

	for len(model) > 0 {
		if err := pop(); err != nil {
			return res, err
		}
	}

	if !stk.IsEmpty() {
		return res, fmt.Errorf("stack not empty after drain: %d left", stk.Len())
	}

	return res, nil
}

func (s *session) execStats(o *IO) error {
	families, err := s.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, pair := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
			}

			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			o.Printf("%s %g\n", name, m.GetCounter().GetValue())
		}
	}

	return nil
}

func (s *session) execLayers(o *IO) error {
	stk := s.stk.Untyped()
	snap := stk.Snapshot()

	o.Printf("Protection:   %s\n", stk.Protection())
	o.Printf("Checksum:     %s\n", snap.Checksum)
	o.Printf("Allocator:    %s\n", s.cfg.Allocator)
	o.Printf("Policy:       %s\n", s.cfg.OnCorruption)
	o.Printf("Min capacity: %d\n", snap.MinCapacity)

	return nil
}

func (s *session) execConfig(o *IO) error {
	formatted, err := config.Format(s.cfg)
	if err != nil {
		return err
	}

	o.Println(formatted)
	o.Println()
	o.Println("# Sources:")

	if s.cfg.Sources.Global != "" {
		o.Println("#   global:", s.cfg.Sources.Global)
	}

	if s.cfg.Sources.Project != "" {
		o.Println("#   project:", s.cfg.Sources.Project)
	}

	if s.cfg.Sources.Global == "" && s.cfg.Sources.Project == "" {
		o.Println("#   (using defaults only)")
	}

	return nil
}
