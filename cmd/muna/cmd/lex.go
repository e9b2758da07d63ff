package cmd

import (
	"fmt"

	"github.com/kerbonaut11/muna/internal/diagnostics"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/spf13/cobra"
)

var (
	lexShowPos  bool
	lexEvalExpr string
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize source and print the resulting tokens",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, filename, err := loadSource(lexEvalExpr, args)
		if err != nil {
			return err
		}

		toks, err := lexer.Tokenize(src)
		if err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
			return nil
		}

		for _, tok := range toks {
			if lexShowPos {
				fmt.Printf("%4d:%-3d %-12s %q\n", tok.Line, tok.Col, tok.Type, tok.Literal)
			} else {
				fmt.Printf("%-12s %q\n", tok.Type, tok.Literal)
			}
		}
		return nil
	},
}

func init() {
	lexCmd.Flags().BoolVar(&lexShowPos, "show-pos", false, "print line:col alongside each token")
	lexCmd.Flags().StringVarP(&lexEvalExpr, "eval", "e", "", "tokenize an inline source string instead of a file")
	rootCmd.AddCommand(lexCmd)
}
