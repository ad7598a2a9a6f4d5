package cmd

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// Release, when set with -ldflags at build time, overrides the version recorded by the go toolchain
var Release string

// buildRecord is what the binary knows about how it was built
type buildRecord struct {
	Version  string   `yaml:"version"`
	Revision string   `yaml:"revision,omitempty"`
	Time     string   `yaml:"time,omitempty"`
	Modified bool     `yaml:"modified,omitempty"`
	Go       string   `yaml:"go"`
	Backends []string `yaml:"backends"`
}

func readBuildRecord() buildRecord {
	record := buildRecord{
		Version:  "dev",
		Go:       runtime.Version(),
		Backends: []string{backendMemory, backendBadger, backendPebble, backendLocalFS},
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			record.Version = v
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				record.Revision = setting.Value
			case "vcs.time":
				record.Time = setting.Value
			case "vcs.modified":
				record.Modified = setting.Value == "true"
			}
		}
	}

	if Release != "" {
		record.Version = Release
	}
	return record
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print how this graphstore binary was built",
	Long: `Print the version of this graphstore binary as YAML, with the source revision it was built from
when known, the go runtime and the storage backends it supports.`,
	Run: func(cmd *cobra.Command, args []string) {
		b, err := yaml.Marshal(readBuildRecord())
		if err != nil {
			wrapFatalln("marshal build record", err)
			return
		}
		_, _ = cmd.OutOrStdout().Write(b)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
