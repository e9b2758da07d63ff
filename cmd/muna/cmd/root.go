// Package cmd wires muna's cobra subcommands: lex, parse, compile, run,
// disasm, version.
package cmd

import (
	"fmt"
	"os"

	"github.com/kerbonaut11/muna/internal/diagnostics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags).
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	verbose    bool
	colorFlag  string // "auto" | "always" | "never"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "muna",
	Short: "muna language toolchain",
	Long: `muna is a small dynamically-typed, Lua-family scripting language.

This tool tokenizes, parses, compiles, and runs muna source, and can
disassemble a compiled module back to a readable instruction listing.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "colorize diagnostics: auto, always, never")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a VM tunables YAML file (see internal/config)")
}

// wantColor resolves the --color flag against whether stderr is a real
// terminal, the same detection internal/diagnostics.StderrIsTerminal
// performs.
func wantColor() bool {
	switch colorFlag {
	case "always":
		return true
	case "never":
		return false
	default:
		return diagnostics.StderrIsTerminal(os.Stderr.Fd())
	}
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+msg+"\n", args...)
	os.Exit(1)
}
