package cmd

import (
	"github.com/kerbonaut11/muna/internal/diagnostics"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

var parseEvalExpr string

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse source and print the resulting syntax tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, filename, err := loadSource(parseEvalExpr, args)
		if err != nil {
			return err
		}

		toks, err := lexer.Tokenize(src)
		if err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
			return nil
		}

		block, err := parser.Parse(toks)
		if err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
			return nil
		}

		pretty.Println(block)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseEvalExpr, "eval", "e", "", "parse an inline source string instead of a file")
	rootCmd.AddCommand(parseCmd)
}
