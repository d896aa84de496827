package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// pollInterval is how often run --wait checks the cell
var pollInterval = 250 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run [cell_id]",
	Short: "Run a script cell",
	Long:  `Dispatch a script cell to the interpreter. With --wait the command polls the cell until it completes, fails or is cancelled, then prints its output.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, ok := parseCellID(cmd, args[0])
		if !ok {
			return
		}
		wait, _ := cmd.Flags().GetBool("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client := newClient()
		cell, err := client.RunCell(id)
		if err != nil {
			printError(cmd, err)
			return
		}

		if !wait || isSettled(cell) {
			printCell(cmd, cell)
			return
		}

		deadline := time.Now().Add(timeout)
		for !isSettled(cell) {
			if time.Now().After(deadline) {
				cmd.Printf("Cell %d still running after %s\n", id, timeout)
				return
			}
			time.Sleep(pollInterval)

			cell, err = client.Cell(id)
			if err != nil {
				printError(cmd, err)
				return
			}
		}

		printCell(cmd, cell)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [cell_id]",
	Short: "Stop a running cell",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, ok := parseCellID(cmd, args[0])
		if !ok {
			return
		}

		cell, err := newClient().StopCell(id)
		if err != nil {
			printError(cmd, err)
			return
		}

		printCell(cmd, cell)
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every cell in order",
	Long:  `Start running every cell in document order. Each cell waits for the previous one to finish; a failing cell does not stop the rest. Use "scriptbookctl cells" to follow progress.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().RunAll(); err != nil {
			printError(cmd, err)
			return
		}
		cmd.Println("🚀 Run all started!")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(runAllCmd)

	runCmd.Flags().BoolP("wait", "w", false, "Wait for the cell to finish")
	runCmd.Flags().Duration("timeout", time.Minute, "Maximum time to wait")
}
