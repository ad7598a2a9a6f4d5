// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "graphstore",
	Short: "graphstore stores versioned graph models",
	Long: `graphstore stores versioned graph models.

Projects hold immutable objects, addressed by the hash of their content. Commits are objects
pointing to the root of a model and to the commits they derive from. Branches are named, mutable
pointers to commits, moved with compare-and-swap semantics.

The storage backend is configured with the --backend flag, the GRAPHSTORE_BACKEND environment
variable or the "backend" key of the graphstore.yaml configuration file.
`,
	SilenceUsage: true,
}

var config *CLIConfig

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigDefaults()
	if cfgFile := os.Getenv("GRAPHSTORE_CONFIG"); cfgFile != "" {
		// Use config file from the environment.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.graphstore")
		viper.AddConfigPath("/etc/graphstore")
		viper.SetConfigName("graphstore")
	}

	viper.SetEnvPrefix("graphstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	config, err = newConfig()
	if err != nil {
		wrapFatalln("invalid configuration", err)
		return
	}
}
