package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flora/internal/ledger"
	"flora/internal/transform"
)

func newTransformCommand(ctx *commandContext) *cobra.Command {
	var xlsx bool

	cmd := &cobra.Command{
		Use:   "transform CSV",
		Short: "Write a species-level summary next to a results ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output, err := transform.Transform(input)
			if err != nil {
				return err
			}
			result := map[string]string{"csv": output}

			if xlsx {
				led, err := ledger.Load(input)
				if err != nil {
					return err
				}
				workbook := transform.OutputPath(input, ".xlsx")
				if err := transform.WriteWorkbook(led, workbook); err != nil {
					return fmt.Errorf("write workbook: %w", err)
				}
				result["xlsx"] = workbook
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", output)
			if path, ok := result["xlsx"]; ok {
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "Also write an Excel workbook")
	return cmd
}
