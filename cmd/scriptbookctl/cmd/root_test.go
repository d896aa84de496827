package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
	viper.SetEnvPrefix("SCRIPTBOOK")
	viper.AutomaticEnv()
}

// resetFlags restores a command's flags to their defaults between runs of
// the shared root command
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// execute runs the root command with args and returns everything it printed
func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out.String()
}

func TestRootCommand_DefaultURL(t *testing.T) {
	resetViper()

	cmd := &cobra.Command{}
	cmd.PersistentFlags().String("url", "http://localhost:8080", "Scriptbook server URL")
	_ = viper.BindPFlag("url", cmd.PersistentFlags().Lookup("url"))

	if url := viper.GetString("url"); url != "http://localhost:8080" {
		t.Errorf("expected default url http://localhost:8080, got: %s", url)
	}
}

func TestRootCommand_EnvVarBinding(t *testing.T) {
	resetViper()
	t.Setenv("SCRIPTBOOK_URL", "http://custom-url:9000")

	if url := viper.GetString("url"); url != "http://custom-url:9000" {
		t.Errorf("expected url from env var, got: %s", url)
	}
}

func TestRootCommand_Help(t *testing.T) {
	resetViper()

	out := execute(t, "--help")
	if !bytes.Contains([]byte(out), []byte("scriptbookctl")) {
		t.Errorf("expected usage text, got: %s", out)
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{
		"cells": false, "add": false, "run [cell_id]": false, "stop [cell_id]": false,
		"run-all": false, "export": false, "import [file]": false, "render [file]": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Use]; ok {
			want[cmd.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered", use)
		}
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	resetViper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"unknown-command-xyz"})

	if err := Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRootCommand_CustomConfigFile(t *testing.T) {
	resetViper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "scriptbookctl-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	_, _ = tmpFile.WriteString("url: http://custom-from-config:9999\n")
	_ = tmpFile.Close()

	cfgFile = tmpFile.Name()
	defer func() { cfgFile = "" }()
	initConfig()

	if url := viper.GetString("url"); url != "http://custom-from-config:9999" {
		t.Errorf("expected url from config file, got: %s", url)
	}
}
