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

// Entry point to the expression evaluator service.
//
// The service reads arithmetic expressions written in infix notation (one
// expression per line) from command line, from input file or from standard
// input. Each expression is tokenized, converted into postfix notation by
// the shunting-yard algorithm and evaluated using single precision floating
// point arithmetic. Results are printed to standard output, optionally
// stored into the history database (SQLite or PostgreSQL) and sent to the
// configured Kafka topic.
//
// Additionally this service exposes several metrics about read and
// evaluated expressions. These metrics are pushed to Prometheus push gateway
// at the end of each run.
package main

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/

import (
	"os"

	"github.com/RedHatInsights/insights-operator-utils/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/processor"
)

// Configuration-related constants
const (
	loadConfigurationMessage = "Load configuration"
)

func main() {
	cliFlags := setupCliFlags()
	checkArgs(&cliFlags)

	// config has exactly the same structure as *.toml file
	config, err := conf.LoadConfiguration(conf.ConfigFileEnvVariableName, conf.DefaultConfigFileName)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		os.Exit(ExitStatusConfiguration)
	}

	err = logger.InitZerolog(
		conf.GetLoggingConfiguration(&config),
		conf.GetCloudWatchConfiguration(&config),
		conf.GetSentryLoggingConfiguration(&config),
		conf.GetKafkaZerologConfiguration(&config),
	)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		os.Exit(ExitStatusConfiguration)
	}

	// configuration is loaded, so it would be possible to display it if
	// asked by user
	if cliFlags.ShowConfiguration {
		showConfiguration(&config)
		os.Exit(ExitStatusOK)
	}

	// override default value by one read from configuration file
	if cliFlags.MaxAge == "" {
		cliFlags.MaxAge = conf.GetCleanerConfiguration(&config).MaxAge
	}

	if config.LoggingConf.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logLevel := convertLogLevel(config.LoggingConf.LogLevel)
	zerolog.SetGlobalLevel(logLevel)
	log.Info().
		Str("configured", config.LoggingConf.LogLevel).
		Int("internal", int(logLevel)).
		Msg("Log level")

	if cliFlags.Verbose {
		showConfiguration(&config)
	}

	os.Exit(processor.Run(config, cliFlags))
}
