package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/jeeftor/rowpilot/cmd.buildVersion=..."
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildTime    = "unknown"
)

var shortOutput bool

// formattedBuildTime accepts RFC3339 or a unix timestamp
func formattedBuildTime() string {
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		return t.Format("2006-01-02 15:04:05 MST")
	}
	if sec, err := strconv.ParseInt(buildTime, 10, 64); err == nil {
		return time.Unix(sec, 0).Format("2006-01-02 15:04:05 MST")
	}
	return buildTime
}

// displayVersion falls back to the module version recorded by go install
func displayVersion() string {
	if buildVersion != "dev" {
		return buildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return "dev (" + info.Main.Version + ")"
	}
	return buildVersion
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		if shortOutput {
			fmt.Fprintln(w, buildVersion)
			return
		}

		label := color.New(color.FgWhite)
		rows := []struct {
			name  string
			value string
			c     *color.Color
		}{
			{"Version:", displayVersion(), color.New(color.FgCyan, color.Bold)},
			{"Built:", formattedBuildTime(), color.New(color.FgYellow)},
			{"Commit:", buildCommit, color.New(color.FgGreen)},
			{"OS/Arch:", runtime.GOOS + "/" + runtime.GOARCH, color.New(color.FgMagenta)},
			{"Go:", runtime.Version(), color.New(color.FgRed)},
		}
		for _, r := range rows {
			label.Fprintf(w, "%-9s", r.name)
			r.c.Fprintln(w, r.value)
		}
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&shortOutput, "short", "n", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}
