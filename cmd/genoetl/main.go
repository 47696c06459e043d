// Command genoetl runs the genomics metadata ETL pipeline and its tooling:
// ad hoc queries over the outputs, run history, scheduling, S3 sync,
// profiling and schema inspection.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"genoetl/internal/config"

	// register every history backend with the storage factory; the config
	// picks one at run time.
	_ "genoetl/internal/storage/all"
)

// app is the state shared by every command: global flags, the logger and
// the resolved configuration.
type app struct {
	log      *logrus.Logger
	cfgFile  string
	logLevel string
	envFile  string
	cfg      config.Pipeline
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newRootCmd(&app{log: log}).Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "genoetl",
		Short: "Genomics metadata ETL pipeline",
		Long: `genoetl ingests samples, sequencing runs and QC metrics, validates them
against schema and business rules, and writes a small star schema as
zstd-compressed Parquet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(a.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
			}
			a.log.SetLevel(level)

			if err := config.LoadEnvFile(a.envFile); err != nil {
				return err
			}
			if a.cfg, err = config.Load(a.cfgFile); err != nil {
				return err
			}
			a.log.WithField("config", a.cfgFile).Debug("configuration loaded")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "pipeline config file (.json, .yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info",
		"log level ("+strings.Join(logLevels(), ", ")+")")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config; missing is fine")

	root.AddCommand(
		newRunCmd(a),
		newQueryCmd(a),
		newBenchmarkCmd(a),
		newHistoryCmd(a),
		newScheduleCmd(a),
		newS3PushCmd(a),
		newS3PullCmd(a),
		newProfileCmd(a),
		newInspectCmd(a),
		newUploadCmd(a),
		newMergeCmd(a),
		newServeCmd(a),
		newValidateConfigCmd(a),
	)
	return root
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}
