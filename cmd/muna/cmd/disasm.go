package cmd

import (
	"fmt"
	"os"

	"github.com/kerbonaut11/muna/internal/bytecode"
	"github.com/spf13/cobra"
)

var disasmQuery string

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.munac>",
	Short: "Disassemble a compiled module into a readable instruction listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		m, err := bytecode.DecodeModule(data)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", args[0], err)
		}

		if disasmQuery != "" {
			result := m.QueryJSON(disasmQuery)
			fmt.Println(result.String())
			return nil
		}

		fmt.Println(bytecode.Disassemble(m))
		return nil
	},
}

func init() {
	disasmCmd.Flags().StringVar(&disasmQuery, "query", "", "gjson path to query against the module's JSON dump instead of disassembling")
	rootCmd.AddCommand(disasmCmd)
}
