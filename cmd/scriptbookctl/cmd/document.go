package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the notebook document",
	Long:  `Download the notebook as a versioned document. The document is written to --output, or to stdout when no file is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")

		doc, err := newClient().Export()
		if err != nil {
			printError(cmd, err)
			return
		}

		if output == "" {
			cmd.Println(string(doc))
			return
		}

		if err := os.WriteFile(output, doc, 0o644); err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		cmd.Printf("✓ Notebook exported to %s\n", output)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the notebook with a document",
	Long:  `Upload a notebook document. A malformed document is rejected and the server keeps its current notebook.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		nb, err := newClient().Import(data)
		if err != nil {
			printError(cmd, err)
			return
		}

		cmd.Printf("✓ Notebook imported!\nCells: %d\n", len(nb.Cells))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringP("output", "o", "", "Write the document to a file")
}
