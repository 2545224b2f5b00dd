package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/cmd/root"
)

// Build information. Set with -ldflags -X by `make build`; Commit and Date
// otherwise fall back to the VCS stamps of the main module.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var asJSON bool

type BuildInfo struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Info collects the build information of the running binary.
func Info() BuildInfo {
	info := BuildInfo{
		App:       anonapi.AppName,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromVCS(&info, bi.Settings)
	}
	return info
}

func fillFromVCS(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}
}

func (i BuildInfo) write(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", i.App, i.Version)
	fmt.Fprintf(w, "  Commit:     %s\n", i.Commit)
	fmt.Fprintf(w, "  Built:      %s\n", i.Date)
	fmt.Fprintf(w, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(w, "  OS/Arch:    %s\n", i.Platform)
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, build date, and Go version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := Info()
		if asJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
		}
		info.write(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&asJSON, "json", false, "print the build information as JSON")
	root.RootCmd.AddCommand(VersionCmd)
}
