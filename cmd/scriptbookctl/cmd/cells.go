package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	apihttp "github.com/aescanero/scriptbook/pkg/api/http"
	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/spf13/cobra"
)

var cellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "List the cells of the notebook",
	Run: func(cmd *cobra.Command, args []string) {
		nb, err := newClient().Notebook()
		if err != nil {
			printError(cmd, err)
			return
		}

		if len(nb.Cells) == 0 {
			cmd.Println("Notebook is empty.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATE\tSOURCE")
		for _, cell := range nb.Cells {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cell.ID, cell.Kind, cell.State, firstLine(cell.Source))
		}
		_ = w.Flush()

		if nb.ActiveExecutions > 0 {
			cmd.Printf("\n%d cell(s) running\n", nb.ActiveExecutions)
		}
	},
}

func init() {
	rootCmd.AddCommand(cellsCmd)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func stateIcon(state domain.LifecycleState) string {
	switch state {
	case domain.LifecycleCompleted:
		return colorGreen + "✓" + colorReset
	case domain.LifecycleFailed:
		return colorRed + "✗" + colorReset
	case domain.LifecycleCancelled:
		return colorYellow + "■" + colorReset
	case domain.LifecycleRunning:
		return colorYellow + "⏳" + colorReset
	default:
		return "•"
	}
}

// printCell prints a cell's state and output
func printCell(cmd *cobra.Command, cell *apihttp.CellResponse) {
	cmd.Printf("%s Cell %d (%s) %s\n", stateIcon(cell.State), cell.ID, cell.Kind, cell.State)

	out := cell.Output
	if out == nil {
		return
	}
	switch out.Kind {
	case domain.ArtifactError:
		cmd.Printf("%s%s%s\n", colorRed, out.Content, colorReset)
	case domain.ArtifactEmpty:
		cmd.Printf("%sno output%s\n", colorDim, colorReset)
	default:
		if out.Content != "" {
			cmd.Print(ensureNewline(out.Content))
		}
		if out.Stderr != "" {
			cmd.Printf("%s%s%s", colorDim, ensureNewline(out.Stderr), colorReset)
		}
	}
	if len(out.Images) > 0 {
		cmd.Printf("%s%d figure(s)%s\n", colorDim, len(out.Images), colorReset)
	}
}

func printError(cmd *cobra.Command, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("Error: %v\n", err)
}

func parseCellID(cmd *cobra.Command, arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		cmd.Printf("Error: invalid cell id %q\n", arg)
		return 0, false
	}
	return id, true
}

func firstLine(s string) string {
	line, _, more := strings.Cut(s, "\n")
	if more {
		return line + " ..."
	}
	return line
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
