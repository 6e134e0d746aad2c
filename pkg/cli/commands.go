package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
)

func newRconCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "rcon",
		Description: "Run a Permissions.* command",
		Flags:       flag.NewFlagSet("rcon", flag.ContinueOnError),
		out:         out,
	}
	addr := addrFlag(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("command is required, e.g. permctl rcon Permissions.ListGroups")
		}

		reply, err := NewClient(*addr).Rcon(context.Background(), strings.Join(cmd.Flags.Args(), " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
		return nil
	}
	return cmd
}

func newGroupsCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "groups",
		Description: "Show groups of a player or tribe, or list all groups",
		Flags:       flag.NewFlagSet("groups", flag.ContinueOnError),
		out:         out,
	}
	addr := addrFlag(cmd.Flags)
	player := cmd.Flags.String("player", "", "Player identity")
	tribe := cmd.Flags.Int64("tribe", 0, "Tribe ID")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		var command string
		switch {
		case *player != "" && *tribe != 0:
			return fmt.Errorf("-player and -tribe are mutually exclusive")
		case *player != "":
			command = "Permissions.PlayerGroups " + *player
		case *tribe != 0:
			command = fmt.Sprintf("Permissions.TribeGroups %d", *tribe)
		default:
			command = "Permissions.ListGroups"
		}

		reply, err := NewClient(*addr).Rcon(context.Background(), command)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
		return nil
	}
	return cmd
}

func newSessionsCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "sessions",
		Description: "List connected players",
		Flags:       flag.NewFlagSet("sessions", flag.ContinueOnError),
		out:         out,
	}
	addr := addrFlag(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		sessions, err := NewClient(*addr).Sessions(context.Background())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No players online")
			return nil
		}

		fmt.Fprintf(out, "%-34s %-12s %s\n", "IDENTITY", "PLAYER", "TRIBE")
		for _, s := range sessions {
			fmt.Fprintf(out, "%-34s %-12d %d\n", s.Identity, s.PlayerID, s.TribeID)
		}
		return nil
	}
	return cmd
}

func newResyncCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "resync",
		Description: "Reconnect the daemon to its database and refresh caches",
		Flags:       flag.NewFlagSet("resync", flag.ContinueOnError),
		out:         out,
	}
	addr := addrFlag(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		status, err := NewClient(*addr).Resync(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Resync complete (every %ds)\n", status.IntervalSeconds)
		return nil
	}
	return cmd
}

func newHealthCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "health",
		Description: "Check daemon readiness",
		Flags:       flag.NewFlagSet("health", flag.ContinueOnError),
		out:         out,
	}
	addr := addrFlag(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		status, err := NewClient(*addr).Health(context.Background())
		if status.Status == "" {
			return err
		}
		fmt.Fprintf(out, "status: %s\n", status.Status)

		names := make([]string, 0, len(status.Dependencies))
		for name := range status.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			dep := status.Dependencies[name]
			line := fmt.Sprintf("  %s: %s", name, dep.Status)
			if dep.Message != "" {
				line += " (" + dep.Message + ")"
			}
			fmt.Fprintln(out, line)
		}
		return err
	}
	return cmd
}
