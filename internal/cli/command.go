package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a REPL command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown in help.
	// Includes the command name and arguments/flags.
	// Examples: "push <int>...", "dump [--format text|yaml] [--out FILE]"
	Usage string

	// Aliases are alternative names accepted at the prompt.
	Aliases []string

	// Short is a one-line description for the help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// Matches reports whether word names this command or one of its aliases.
func (c *Command) Matches(word string) bool {
	if word == c.Name() {
		return true
	}

	for _, alias := range c.Aliases {
		if word == alias {
			return true
		}
	}

	return false
}

// HelpLine returns the short help line for the command listing.
func (c *Command) HelpLine() string {
	usage := c.Usage
	if len(c.Aliases) > 0 {
		usage = strings.Join(append([]string{c.Name()}, c.Aliases...), " / ")
		if _, args, ok := strings.Cut(c.Usage, " "); ok {
			usage += " " + args
		}
	}

	return fmt.Sprintf("  %-40s %s", usage, c.Short)
}

// PrintHelp prints the full help output for "help <cmd>" and "<cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage:", c.Usage)

	if len(c.Aliases) > 0 {
		o.Println("Aliases:", strings.Join(c.Aliases, ", "))
	}

	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	// Without a flag set arguments are passed through untouched, so values
	// like "-5" are not mistaken for flags.
	if c.Flags == nil {
		if len(args) == 1 && (args[0] == "-h" || args[0] == "--help") {
			c.PrintHelp(o)

			return 0
		}

		return c.exec(ctx, o, args)
	}

	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	return c.exec(ctx, o, c.Flags.Args())
}

func (c *Command) exec(ctx context.Context, o *IO, args []string) int {
	if err := c.Exec(ctx, o, args); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}
