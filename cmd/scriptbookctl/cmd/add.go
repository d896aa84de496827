package cmd

import (
	"os"

	apihttp "github.com/aescanero/scriptbook/pkg/api/http"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a cell to the notebook",
	Long:  `Append a cell to the notebook, or insert it before an existing cell with --before. The source is taken from --source or read from --file.`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		kind, _ := flags.GetString("kind")
		file, _ := flags.GetString("file")
		before, _ := flags.GetInt64("before")

		req := apihttp.AddCellRequest{Kind: kind}

		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				cmd.Printf("Error: %v\n", err)
				return
			}
			source := string(data)
			req.Source = &source
		case flags.Changed("source"):
			source, _ := flags.GetString("source")
			req.Source = &source
		}

		if flags.Changed("before") {
			req.Before = &before
		}

		cell, err := newClient().AddCell(req)
		if err != nil {
			printError(cmd, err)
			return
		}

		cmd.Printf("✓ Cell added!\nID: %d\nKind: %s\n", cell.ID, cell.Kind)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)

	flags := addCmd.Flags()
	flags.StringP("kind", "k", "script", "Cell kind: script or markup")
	flags.StringP("source", "s", "", "Cell source")
	flags.StringP("file", "f", "", "Read the cell source from a file")
	flags.Int64("before", 0, "Insert before the cell with this id")
}
