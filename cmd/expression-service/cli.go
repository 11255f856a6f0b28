/*
Copyright © 2023 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/processor"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = processor.ExitStatusOK
	// ExitStatusConfiguration is an error code related to program configuration
	ExitStatusConfiguration = processor.ExitStatusConfiguration
)

const (
	versionMessage = "Expression evaluator service version 1.0"
	authorsMessage = "Pavel Tisnovsky, Red Hat Inc."
)

// showVersion function displays version information.
func showVersion() {
	fmt.Println(versionMessage)
}

// showAuthors function displays information about authors.
func showAuthors() {
	fmt.Println(authorsMessage)
}

// setupCliFlags defines and parses all command line options
func setupCliFlags() types.CliFlags {
	var cliFlags types.CliFlags
	flag.StringVar(&cliFlags.Expression, "expression", "", "evaluate one expression given on command line")
	flag.StringVar(&cliFlags.InputFile, "input", "", "file with expressions, one per line (- for standard input)")
	flag.BoolVar(&cliFlags.ShowTokens, "show-tokens", false, "print token sequence of each expression")
	flag.BoolVar(&cliFlags.ShowPostfix, "show-postfix", false, "print postfix form of each expression")
	flag.BoolVar(&cliFlags.FailOnError, "fail-on-error", false, "exit with error status when any expression can not be evaluated")
	flag.BoolVar(&cliFlags.ShowVersion, "show-version", false, "show version and exit")
	flag.BoolVar(&cliFlags.ShowAuthors, "show-authors", false, "show authors and exit")
	flag.BoolVar(&cliFlags.ShowConfiguration, "show-configuration", false, "show configuration and exit")
	flag.BoolVar(&cliFlags.PrintHistory, "print-history", false, "print latest evaluations stored in database")
	flag.BoolVar(&cliFlags.PrintOldEvaluationsForCleanup, "print-old-evaluations-for-cleanup", false, "print old evaluations to be cleaned up")
	flag.BoolVar(&cliFlags.PerformOldEvaluationsCleanup, "old-evaluations-cleanup", false, "perform old evaluations clean up")
	flag.BoolVar(&cliFlags.Verbose, "verbose", false, "verbose logs")
	flag.StringVar(&cliFlags.MaxAge, "max-age", "", "max age for displaying/cleaning old records")
	flag.Parse()
	return cliFlags
}

// showConfiguration function displays actual configuration.
func showConfiguration(config *conf.ConfigStruct) {
	storageConfig := conf.GetStorageConfiguration(config)
	log.Info().
		Bool("Enabled", storageConfig.Enabled).
		Str("Driver", storageConfig.Driver).
		Str("SQLite data source", storageConfig.SQLiteDataSource).
		Str("DB Name", storageConfig.PGDBName).
		Str("Username", storageConfig.PGUsername). // password is omitted on purpose
		Str("Host", storageConfig.PGHost).
		Int("Port", storageConfig.PGPort).
		Bool("LogSQLQueries", storageConfig.LogSQLQueries).
		Str("Parameters", storageConfig.PGParams).
		Msg("Storage configuration")

	brokerConfig := conf.GetKafkaBrokerConfiguration(config)
	log.Info().
		Bool("Enabled", brokerConfig.Enabled).
		Str("Address", brokerConfig.Address).
		Str("SecurityProtocol", brokerConfig.SecurityProtocol).
		Str("SaslMechanism", brokerConfig.SaslMechanism).
		Str("Topic", brokerConfig.Topic).
		Str("Timeout", brokerConfig.Timeout.String()).
		Msg("Broker configuration")

	loggingConfig := conf.GetLoggingConfiguration(config)
	log.Info().
		Str("Level", loggingConfig.LogLevel).
		Bool("Pretty colored debug logging", loggingConfig.Debug).
		Msg("Logging configuration")

	metricsConfig := conf.GetMetricsConfiguration(config)

	// Authentication token is omitted on purpose
	log.Info().
		Str("Job", metricsConfig.Job).
		Str("Namespace", metricsConfig.Namespace).
		Str("Subsystem", metricsConfig.Subsystem).
		Str("Push Gateway", metricsConfig.GatewayURL).
		Int("Retries", metricsConfig.Retries).
		Str("Retry after", metricsConfig.RetryAfter.String()).
		Msg("Metrics configuration")

	processingConfig := conf.GetProcessingConfiguration(config)
	log.Info().
		Int("Workers", processingConfig.Workers).
		Int("Max expression length", processingConfig.MaxExpressionLength).
		Msg("Processing configuration")

	cleanerConfig := conf.GetCleanerConfiguration(config)
	log.Info().
		Str("Max age", cleanerConfig.MaxAge).
		Msg("Cleaner configuration")
}

// validateArgs function checks combination of command line options
func validateArgs(args *types.CliFlags) error {
	if args.PrintOldEvaluationsForCleanup && args.PerformOldEvaluationsCleanup {
		return errors.New("only one cleanup operation can be selected")
	}
	if args.Expression != "" && args.InputFile != "" {
		return errors.New("expression and input file can not be specified together")
	}
	return nil
}

// checkArgs function handles command line options passed to the process
func checkArgs(args *types.CliFlags) {
	switch {
	case args.ShowVersion:
		showVersion()
		os.Exit(ExitStatusOK)
	case args.ShowAuthors:
		showAuthors()
		os.Exit(ExitStatusOK)
	case args.ShowConfiguration:
		// config not loaded yet, just skip the rest of function for
		// now
		return
	default:
	}

	if err := validateArgs(args); err != nil {
		log.Error().Err(err).Msg("Wrong command line arguments")
		os.Exit(ExitStatusConfiguration)
	}
}

func convertLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}

	return zerolog.DebugLevel
}
