package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// DefaultAddr is the daemon address used when neither -addr nor PERMCTL_ADDR is set
const DefaultAddr = "http://127.0.0.1:8085"

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// NewRootCommand creates the root command writing to out
func NewRootCommand(out io.Writer) *Command {
	root := &Command{
		Name:        "permctl",
		Description: "permctl - administer a permissions daemon",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("permctl", flag.ContinueOnError),
		out:         out,
	}

	root.Subcommands["rcon"] = newRconCommand(out)
	root.Subcommands["groups"] = newGroupsCommand(out)
	root.Subcommands["sessions"] = newSessionsCommand(out)
	root.Subcommands["resync"] = newResyncCommand(out)
	root.Subcommands["health"] = newHealthCommand(out)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// addrFlag registers the shared -addr flag
func addrFlag(fs *flag.FlagSet) *string {
	addr := DefaultAddr
	if env := os.Getenv("PERMCTL_ADDR"); env != "" {
		addr = env
	}
	return fs.String("addr", addr, "Daemon address")
}
