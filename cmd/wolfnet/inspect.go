package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/client"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/demo"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
)

func inspectCmd() *cobra.Command {
	var entities bool
	cmd := &cobra.Command{
		Use:   "inspect <demo>",
		Short: "Print the contents of a recorded demo",
		Long: `Decode a recorded demo and print its gamestate and one line per
snapshot.

Examples:
  wolfnet inspect demos/slot0-20260101-120000.dm
  wolfnet inspect --entities match.dm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.New("W300").Wrap(err)
			}
			defer f.Close()
			_, err = inspect(cmd.OutOrStdout(), f, entities)
			return err
		},
	}
	cmd.Flags().BoolVar(&entities, "entities", false, "List the entity numbers of each snapshot")
	return cmd
}

// demoSummary counts what inspect decoded.
type demoSummary struct {
	Messages  int
	Snapshots int
	Commands  int
}

// inspect decodes the demo read from r and writes a report to w.
func inspect(w io.Writer, r io.Reader, entities bool) (demoSummary, error) {
	var sum demoSummary
	p := client.NewParser(nil, slog.Default())
	p.OnCommand = func(args []string) {
		sum.Commands++
		fmt.Fprintf(w, "  command  %s\n", strings.Join(args, " "))
	}

	dr := demo.NewReader(r)
	printedGamestate := false
	for {
		seq, msg, err := dr.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, errors.New("W301").Wrap(err)
		}
		sum.Messages++
		if err := p.Parse(seq, msg); err != nil {
			return sum, errors.New("W301").WithDetail(fmt.Sprintf("message %d", seq)).Wrap(err)
		}
		if p.HasGamestate() && !printedGamestate {
			printedGamestate = true
			printGamestate(w, p)
		}
		if !p.TakeNewSnapshot() {
			continue
		}
		snap, _ := p.Snapshot()
		sum.Snapshots++
		kind := "full"
		if snap.DeltaNum != 0 {
			kind = fmt.Sprintf("delta %d", snap.DeltaNum)
		}
		fmt.Fprintf(w, "  snap %-6d %-10s time %-8d entities %d\n", snap.MessageNum, kind, snap.ServerTime, len(snap.Entities))
		if entities && len(snap.Entities) > 0 {
			nums := make([]string, len(snap.Entities))
			for i, e := range snap.Entities {
				nums[i] = fmt.Sprint(e.Number)
			}
			fmt.Fprintf(w, "           [%s]\n", strings.Join(nums, " "))
		}
	}
	if !printedGamestate {
		return sum, errors.New("W301").WithDetail("no gamestate")
	}
	fmt.Fprintf(w, "%d messages, %d snapshots, %d commands\n", sum.Messages, sum.Snapshots, sum.Commands)
	return sum, nil
}

func printGamestate(w io.Writer, p *client.Parser) {
	info := protocol.ParseInfo(p.Configstring(server.CSServerInfo))
	fmt.Fprintf(w, "gamestate: server %q, client %d, server id %d\n",
		info.ValueForKey("sv_hostname"), p.ClientNum(), p.ServerID())
	n := 0
	for i := range protocol.MaxConfigstrings {
		if p.Configstring(i) != "" {
			n++
		}
	}
	fmt.Fprintf(w, "  %d configstrings\n", n)
}
