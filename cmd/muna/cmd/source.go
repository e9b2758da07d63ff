package cmd

import (
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// loadSource resolves a subcommand's "[file]" positional arg plus the
// shared -e/--eval flag into source bytes and a display filename. A
// leading UTF-8 BOM is stripped here, in the CLI's file-loading path —
// not inside internal/lexer, which stays ASCII-only and BOM-unaware per
// its own tokenizing contract.
func loadSource(evalExpr string, args []string) (src []byte, filename string, err error) {
	if evalExpr != "" {
		return []byte(evalExpr), "<eval>", nil
	}
	if len(args) != 1 {
		return nil, "", fmt.Errorf("either provide a file path or use -e/--eval for inline code")
	}
	filename = args[0]
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	stripped, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return stripped, filename, nil
}
