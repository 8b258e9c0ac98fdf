package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jiangyuyi/feather-trace/cmd/history"
	"github.com/jiangyuyi/feather-trace/cmd/scan"
	"github.com/jiangyuyi/feather-trace/cmd/taxonomy"
	"github.com/jiangyuyi/feather-trace/internal/conf"
)

// RootCommand creates and returns the root command with all subcommands
// attached.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "feather-trace",
		Short: "FeatherTrace wildlife photo archival CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		scan.Command(settings),
		taxonomy.Command(settings),
		history.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Output.Root, "output", viper.GetString("output.root"), "Archive output directory")
	rootCmd.PersistentFlags().IntVarP(&settings.Processing.Workers, "workers", "w", viper.GetInt("processing.workers"), "Number of concurrent file workers")
	rootCmd.PersistentFlags().StringVar(&settings.Recognition.Mode, "mode", viper.GetString("recognition.mode"), "Candidate filtering mode: china, auto or global")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
