// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papermaked",
	Short: "papermaked serves a content-addressable template registry and render pipeline",
	Long: `papermaked publishes versioned document templates into a content-addressable
registry and renders them to PDF against caller-supplied data.

It is not a web service by itself: this binary exposes the core registry and
render operations as CLI subcommands for scripting and local development.
`,
}

// used to patch over calls to os.Exit() during test
var (
	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// logStdOut wraps informative output to stdout, patchable in tests the
	// same way the teacher's flags.go patches its own logStdOut.
	logStdOut = fmt.Printf
)

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
		return
	}
	logFatalf("%v", fmt.Errorf(msg+": %w", err))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main and needs to happen only once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
}
