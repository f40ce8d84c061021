package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nas-tidy/internal/config"
	"nas-tidy/internal/tui"
)

var (
	configPath string
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:   "nas-tidy",
	Short: "Index, deduplicate and clean up a NAS share",
	Long: `A CLI tool that keeps a content index of a file share on a NAS, finds
duplicate files by content, removes small files and pushes local folders
to the share.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(config.ResolvePath(configPath)); err != nil {
			fmt.Println("Config file not found")
			fmt.Println("USAGE:")
			fmt.Println("Make sure you have the config file by running.")
			fmt.Println("nas-tidy init")
			return nil
		}
		return runMenu(cmd)
	},
}

var menuEntries = []tui.Entry{
	{Key: "index", Hint: "update the index"},
	{Key: "dupes", Hint: "delete duplicate files"},
	{Key: "small", Hint: "delete small files"},
	{Key: "originals", Hint: "delete originals of upscaled files"},
	{Key: "cleanup", Hint: "run the configured cleanup"},
	{Key: "history", Hint: "show deleted files"},
	{Key: "exit"},
}

func runMenu(cmd *cobra.Command) error {
	for {
		if err := cmd.Context().Err(); err != nil {
			fmt.Println("⏹ Cancelled")
			return nil
		}
		choice, err := tui.ShowMenu(menuEntries, "nas-tidy")
		if err != nil {
			return err
		}
		var sub *cobra.Command
		switch choice {
		case "index":
			sub = indexCmd
		case "dupes":
			sub = dupesCmd
		case "small":
			sub = smallCmd
		case "originals":
			sub = originalsCmd
		case "cleanup":
			sub = cleanupCmd
		case "history":
			sub = historyCmd
		default:
			return nil
		}
		sub.SetContext(cmd.Context())
		if err := sub.RunE(sub, nil); err != nil {
			errColor.Printf("❌ %v\n", err)
		}
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config file",
	Long:  `Generate a default nas-tidy.yaml config file in the current directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolvePath(configPath)
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		okColor.Printf("✅ Created %s\n", path)
		fmt.Println("💡 Set NAS_HOST and NAS_USER in the environment or in .env, then run 'nas-tidy index'")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.ConfigFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "confirm destructive actions without asking")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(smallCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(originalsCmd)
	rootCmd.AddCommand(historyCmd)
}

// ExecuteContext allows running the root command with a supplied context for cancellation.
func ExecuteContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	defer closeLogFile()
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}
