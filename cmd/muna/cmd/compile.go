package cmd

import (
	"os"
	"strings"

	"github.com/kerbonaut11/muna/internal/bytecode"
	"github.com/kerbonaut11/muna/internal/compiler"
	"github.com/kerbonaut11/muna/internal/diagnostics"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
	"github.com/spf13/cobra"
)

var (
	compileEvalExpr string
	compileOut      string
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile source to a .munac bytecode module",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, filename, err := loadSource(compileEvalExpr, args)
		if err != nil {
			return err
		}

		m, err := compileSource(src, filename)
		if err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
			return nil
		}

		out := compileOut
		if out == "" {
			out = outputPath(filename)
		}
		if err := os.WriteFile(out, m.Encode(), 0o644); err != nil {
			return err
		}
		if verbose {
			cmd.Printf("wrote %s\n", out)
		}
		return nil
	},
}

// compileSource runs the lex/parse/compile pipeline shared by compile
// and run, stopping at the first error.
func compileSource(src []byte, filename string) (*bytecode.Module, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	block, err := parser.Parse(toks)
	if err != nil {
		return nil, err
	}
	return compiler.NewCompiler().Compile(block)
}

func outputPath(filename string) string {
	if filename == "" || filename == "<eval>" {
		return "out.munac"
	}
	if ext := strings.LastIndex(filename, "."); ext != -1 {
		return filename[:ext] + ".munac"
	}
	return filename + ".munac"
}

func init() {
	compileCmd.Flags().StringVarP(&compileEvalExpr, "eval", "e", "", "compile an inline source string instead of a file")
	compileCmd.Flags().StringVarP(&compileOut, "output", "o", "", "output path for the compiled module (default: input name with .munac)")
	rootCmd.AddCommand(compileCmd)
}
