package cmd

import (
	"os"
	"strings"

	"github.com/aescanero/scriptbook/internal/application/orchestrator"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/render/markdown"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render markup to HTML locally",
	Long: `Render a markup file to HTML without contacting a server. With --notebook the
file is read as a notebook document and every markup cell is rendered in order.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		asNotebook, _ := cmd.Flags().GetBool("notebook")
		if !asNotebook {
			cmd.Println(markdown.Render(string(data)))
			return
		}

		v := orchestrator.NewValidator()
		doc, err := v.Parse(data)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		specs, err := v.Validate(doc)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		var parts []string
		for _, spec := range specs {
			if spec.Kind == domain.CellKindMarkup {
				parts = append(parts, markdown.Render(spec.Source))
			}
		}
		cmd.Println(strings.Join(parts, "\n"))
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Bool("notebook", false, "Read the file as a notebook document")
}
