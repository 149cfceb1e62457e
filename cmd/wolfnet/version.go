package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// buildInfo is what `wolfnet version --json` prints.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Protocol  int    `json:"protocol"`
	MaxMsgLen int    `json:"maxMsgLen"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		Protocol:  protocol.Version,
		MaxMsgLen: protocol.MaxMsgLen,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and protocol information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bi := currentBuild()
			switch {
			case short:
				fmt.Fprintln(out, bi.Version)
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bi)
			default:
				printBanner()
				fmt.Fprintf(out, "  Version:     %s (%s, %s)\n", bi.Version, bi.Commit, bi.Date)
				fmt.Fprintf(out, "  Protocol:    %d, messages up to %d bytes\n", bi.Protocol, bi.MaxMsgLen)
				fmt.Fprintf(out, "  Go:          %s %s\n", bi.GoVersion, bi.Platform)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
