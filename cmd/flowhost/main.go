package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	envFile    string
	headless   bool
	maxTicks   uint64
	assetsOut  string
)

var rootCmd = &cobra.Command{
	Use:   "flowhost",
	Short: "Run procedures on the tickflow module scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tick loop with the demo procedures",
	Long: `The run command loads configuration, initializes the asset package and walks
the boot, login and gameplay procedures. Without --headless the runtime state is
drawn to the terminal; press q or Escape to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the flowhost version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}

var genAssetsCmd = &cobra.Command{
	Use:   "gen-assets",
	Short: "Write a demo asset package with generated tones",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root := cfg.Assets.Root
		if assetsOut != "" {
			root = assetsOut
		}
		files, err := generateAssets(root, cfg.Assets.DefaultPackage, cfg.Assets.Version)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %d files to %s\n", len(files), root)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Env file with TICKFLOW_* overrides")
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without the terminal view, logging to stderr")
	runCmd.Flags().Uint64Var(&maxTicks, "ticks", 0, "Stop after this many ticks, 0 runs until interrupted")
	genAssetsCmd.Flags().StringVarP(&assetsOut, "out", "o", "", "Asset root to write to, defaults to assets.root")

	rootCmd.AddCommand(runCmd, versionCmd, genAssetsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
