package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ValentinKolb/dRender/cmd/probe"
	"github.com/ValentinKolb/dRender/cmd/serve"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drender",
		Short: "remote rendering server",
		Long: fmt.Sprintf(`dRender (v%s)

A remote rendering server written in Go. Clients create and
parameterize scene objects over the network, the server drives
a rendering library and streams the rendered frames back.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRender",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRender v%s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Printf("libraries: %v\n", engine.Libraries())
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(probe.ProbeCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
