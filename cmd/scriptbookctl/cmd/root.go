package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scriptbookctl",
	Short: "scriptbookctl drives a Scriptbook notebook server",
	Long: `scriptbookctl is the command-line interface for a Scriptbook server.

A notebook is an ordered list of script and markup cells. Script cells are run
by the server's interpreter pool; markup cells are rendered to HTML.

Common workflows:

  List the cells of the notebook:
    scriptbookctl cells

  Append a script cell and run it:
    scriptbookctl add --source "print(1)"
    scriptbookctl run 2 --wait

  Run every cell in order:
    scriptbookctl run-all

  Save and restore a notebook file:
    scriptbookctl export -o analysis.pysb
    scriptbookctl import analysis.pysb

  Render markup locally, without a server:
    scriptbookctl render README.md

Configuration:
  Set the server endpoint via flag, environment variable or config file:
    SCRIPTBOOK_URL    Server endpoint (default: http://localhost:8080)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in home directory with name ".scriptbookctl"
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".scriptbookctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "SCRIPTBOOK_VARNAME"
	viper.SetEnvPrefix("SCRIPTBOOK")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scriptbookctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "Scriptbook server URL")
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}

// newClient builds an API client for the configured server
func newClient() *NotebookClient {
	return NewNotebookClient(viper.GetString("url"))
}
