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

// Package processor contains the batch part of expression evaluator
// service. Expressions are read from command line, from input file or from
// standard input, evaluated in parallel by a pool of workers, printed,
// stored into the history database and sent to Kafka topic. Metrics about
// the whole process are pushed to Prometheus push gateway at the end.
package processor

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/producer"
	"github.com/RedHatInsights/expression-evaluator-service/producer/disabled"
	"github.com/RedHatInsights/expression-evaluator-service/producer/kafka"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

// Exit codes
const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = iota
	// ExitStatusConfiguration is an error code related to program configuration
	ExitStatusConfiguration
	// ExitStatusError is a general error code
	ExitStatusError
	// ExitStatusStorageError is returned in case of any storage-related error
	ExitStatusStorageError
	// ExitStatusKafkaBrokerError is for kafka broker connection establishment errors
	ExitStatusKafkaBrokerError
	// ExitStatusKafkaProducerError is for kafka event production failures
	ExitStatusKafkaProducerError
	// ExitStatusCleanerError is raised when clean operation is not successful
	ExitStatusCleanerError
	// ExitStatusMetricsError is raised when prometheus metrics cannot be pushed
	ExitStatusMetricsError
	// ExitStatusInputError is raised when expressions can not be read
	ExitStatusInputError
	// ExitStatusEvaluationError is raised when at least one expression could
	// not be evaluated and -fail-on-error flag is set
	ExitStatusEvaluationError
)

// Messages
const (
	separator                = "------------------------------------------------------------"
	operationFailedMessage   = "Operation failed"
	metricsPushFailedMessage = "Couldn't push prometheus metrics"
	storageDisabledMessage   = "storage is disabled in configuration"
	expressionsAttribute     = "expressions"
	failedAttribute          = "failed"
	stdinName                = "-"
)

// historyLimit is number of records displayed by -print-history
const historyLimit = 20

// Run function is entry point to the expression processor. It returns exit
// status for the whole process.
func Run(config conf.ConfigStruct, cliFlags types.CliFlags) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runWithIO(ctx, config, cliFlags, os.Stdin, os.Stdout)
}

// runWithIO function performs the whole processing using given input and
// output streams
func runWithIO(ctx context.Context, config conf.ConfigStruct, cliFlags types.CliFlags,
	input io.Reader, output io.Writer) int {
	log.Info().Msg("Processor started")
	log.Info().Msg(separator)

	registerMetrics(conf.GetMetricsConfiguration(&config))

	// prepare the storage
	storage, err := setupStorage(conf.GetStorageConfiguration(&config))
	if err != nil {
		StorageErrors.Inc()
		log.Err(err).Msg(operationFailedMessage)
		return ExitStatusStorageError
	}

	if cleanupOperationSpecified(cliFlags) {
		status := ExitStatusOK
		if err := PerformCleanupOperation(storage, cliFlags); err != nil {
			status = ExitStatusCleanerError
		}
		return closeStorage(storage, status)
	}

	if cliFlags.PrintHistory {
		status := printHistory(storage, output)
		return closeStorage(storage, status)
	}

	expressions, err := readInput(cliFlags, input, conf.GetProcessingConfiguration(&config).MaxExpressionLength)
	if err != nil {
		log.Err(err).Msg("Read expressions")
		return closeStorage(storage, ExitStatusInputError)
	}
	ExpressionsRead.Add(float64(len(expressions)))
	log.Info().Int(expressionsAttribute, len(expressions)).Msg("Read expressions: done")

	log.Info().Msg(separator)
	log.Info().Msg("Preparing Kafka producer")
	notifier, err := setupProducer(&config)
	if err != nil {
		log.Err(err).Msg(operationFailedMessage)
		return closeStorage(storage, ExitStatusKafkaBrokerError)
	}

	log.Info().Msg(separator)
	workers := conf.GetProcessingConfiguration(&config).Workers
	log.Info().Int("workers", workers).Msg("Evaluating expressions")
	records := EvaluateBatch(ctx, expressions, workers)

	failed := printRecords(output, records, cliFlags)
	log.Info().
		Int(expressionsAttribute, len(records)).
		Int(failedAttribute, failed).
		Msg("Evaluation finished")

	status := ExitStatusOK
	if storeRecords(storage, records) > 0 {
		status = ExitStatusStorageError
	}
	if produceRecords(notifier, records) > 0 && status == ExitStatusOK {
		status = ExitStatusKafkaProducerError
	}

	log.Info().Msg(separator)
	if err := notifier.Close(); err != nil {
		log.Err(err).Msg(operationFailedMessage)
		if status == ExitStatusOK {
			status = ExitStatusKafkaBrokerError
		}
	}
	status = closeStorage(storage, status)

	if metricsStatus := pushMetrics(conf.GetMetricsConfiguration(&config)); status == ExitStatusOK {
		status = metricsStatus
	}

	if status == ExitStatusOK && cliFlags.FailOnError && failed > 0 {
		status = ExitStatusEvaluationError
	}
	if len(records) < len(expressions) && status == ExitStatusOK {
		log.Warn().Int("skipped", len(expressions)-len(records)).Msg("Evaluation interrupted")
		status = ExitStatusError
	}

	log.Info().Int("status", status).Msg("Processor finished")
	return status
}

// registerMetrics registers metrics using the provided namespace, if any
func registerMetrics(metricsConfig conf.MetricsConfiguration) {
	if metricsConfig.Namespace != "" {
		log.Info().Str("namespace", metricsConfig.Namespace).Msg("Setting metrics namespace")
		AddMetricsWithNamespaceAndSubsystem(
			metricsConfig.Namespace,
			metricsConfig.Subsystem)
	}
}

// setupStorage function returns storage selected in configuration. When
// storage is disabled, no-op storage is returned.
func setupStorage(storageConfiguration conf.StorageConfiguration) (Storage, error) {
	if !storageConfiguration.Enabled {
		log.Info().Msg("Storage is disabled, evaluations won't be persisted")
		return NoopStorage{}, nil
	}

	storage, err := NewStorage(storageConfiguration)
	if err != nil {
		return nil, &StorageError{Msg: err.Error()}
	}

	if err := storage.CreateTables(); err != nil {
		_ = storage.Close()
		return nil, &StorageError{Msg: err.Error()}
	}
	return storage, nil
}

// setupProducer function returns Kafka producer when Kafka is enabled in
// configuration and disabled producer otherwise
func setupProducer(config *conf.ConfigStruct) (producer.Producer, error) {
	if !conf.GetKafkaBrokerConfiguration(config).Enabled {
		log.Info().Msg("Broker config for Kafka is disabled")
		return &disabled.Producer{}, nil
	}

	kafkaProducer, err := kafka.New(config)
	if err != nil {
		log.Err(err).Msg("Kafka producer setup failed")
		return nil, &KafkaBrokerError{}
	}
	log.Info().Msg("Kafka producer ready")
	return kafkaProducer, nil
}

// closeStorage closes the storage and returns given status or storage error
// status when the storage can not be closed
func closeStorage(storage Storage, status int) int {
	err := storage.Close()
	if err != nil {
		log.Err(err).Msg(operationFailedMessage)
		if status == ExitStatusOK {
			return ExitStatusStorageError
		}
	}
	return status
}

// readInput function reads expressions from command line, input file or
// standard input, in this order of preference
func readInput(cliFlags types.CliFlags, stdin io.Reader, maxLength int) ([]string, error) {
	if cliFlags.Expression != "" {
		return ReadExpressions(strings.NewReader(cliFlags.Expression), maxLength)
	}

	if cliFlags.InputFile == "" || cliFlags.InputFile == stdinName {
		log.Info().Msg("Reading expressions from standard input")
		return ReadExpressions(stdin, maxLength)
	}

	log.Info().Str("file", cliFlags.InputFile).Msg("Reading expressions from file")
	// file name is specified by user on command line
	// #nosec G304
	file, err := os.Open(cliFlags.InputFile)
	if err != nil {
		return nil, &InputError{Msg: err.Error()}
	}

	defer func() {
		err := file.Close()
		if err != nil {
			log.Error().Err(err).Msg("Unable to close input file")
		}
	}()

	return ReadExpressions(file, maxLength)
}

// printRecords function prints all evaluation records and returns number of
// failed evaluations
func printRecords(output io.Writer, records []types.EvaluationRecord, cliFlags types.CliFlags) int {
	failed := 0
	for _, record := range records {
		if cliFlags.ShowTokens && record.Tokens != "" {
			fmt.Fprintf(output, "tokens:  %s\n", record.Tokens)
		}
		if cliFlags.ShowPostfix && record.Postfix != "" {
			fmt.Fprintf(output, "postfix: %s\n", record.Postfix)
		}
		fmt.Fprintln(output, FormatResult(record))
		if record.Failed() {
			failed++
		}
	}
	return failed
}

// printHistory function prints the latest evaluations read from storage
func printHistory(storage Storage, output io.Writer) int {
	records, err := storage.ReadLatestEvaluations(historyLimit)
	if err != nil {
		StorageErrors.Inc()
		log.Err(err).Msg("Read history")
		return ExitStatusStorageError
	}

	for _, record := range records {
		fmt.Fprintf(output, "%s  %s\n",
			time.Time(record.EvaluatedAt).Format(time.RFC3339),
			FormatResult(record))
	}
	return ExitStatusOK
}

// storeRecords function writes all evaluation records into storage and
// returns number of records that could not be written
func storeRecords(storage Storage, records []types.EvaluationRecord) int {
	errors := 0
	for _, record := range records {
		previous, err := storage.ReadEvaluationsByHash(record.Hash)
		if err != nil {
			StorageErrors.Inc()
			log.Err(err).Str(ExpressionMessage, record.Expression).Msg("Read previous evaluations")
		} else if len(previous) > 0 {
			log.Debug().
				Str(ExpressionMessage, record.Expression).
				Int("times", len(previous)).
				Msg("Expression has been evaluated before")
		}

		if err := storage.WriteEvaluationRecord(record); err != nil {
			StorageErrors.Inc()
			errors++
		}
	}
	return errors
}

// produceRecords function sends all evaluation records to Kafka and returns
// number of records that could not be sent
func produceRecords(notifier producer.Producer, records []types.EvaluationRecord) int {
	errors := 0
	for _, record := range records {
		message, err := serializeRecord(record)
		if err != nil {
			ProducerErrors.Inc()
			log.Err(err).Str(EvaluationIDMessage, string(record.ID)).Msg("Unable to serialize evaluation record")
			errors++
			continue
		}

		_, offset, err := notifier.ProduceMessage(message)
		if err != nil {
			ProducerErrors.Inc()
			log.Err(err).Str(EvaluationIDMessage, string(record.ID)).Msg("Unable to send evaluation result")
			errors++
			continue
		}
		if offset >= 0 {
			ResultsProduced.Inc()
		}
	}
	return errors
}

// pushMetrics function pushes metrics to the configured push gateway and
// retries when configured to do so
func pushMetrics(metricsConf conf.MetricsConfiguration) int {
	if metricsConf.GatewayURL == "" {
		log.Info().Msg("Push gateway is not configured, metrics won't be pushed")
		return ExitStatusOK
	}

	err := PushCollectedMetrics(metricsConf)
	if err == nil {
		log.Info().Msg("Metrics pushed successfully")
		return ExitStatusOK
	}

	log.Err(err).Msg(metricsPushFailedMessage)
	if metricsConf.RetryAfter == 0 || metricsConf.Retries == 0 {
		return ExitStatusMetricsError
	}
	for i := metricsConf.Retries; i > 0; i-- {
		time.Sleep(metricsConf.RetryAfter)
		log.Info().Msgf("Push metrics. Retrying (%d/%d attempts left)", i, metricsConf.Retries)
		err = PushCollectedMetrics(metricsConf)
		if err == nil {
			log.Info().Msg("Metrics pushed successfully")
			return ExitStatusOK
		}
		log.Err(err).Msg(metricsPushFailedMessage)
	}
	return ExitStatusMetricsError
}
