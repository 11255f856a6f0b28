/*
Copyright © 2021, 2023 Red Hat, Inc.

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

// Package conf contains definition of data type named ConfigStruct that
// represents configuration of the expression evaluator service. This package
// also contains function named LoadConfiguration that can be used to load
// configuration from provided configuration file and/or from environment
// variables. Additionally several specific functions named
// GetStorageConfiguration, GetLoggingConfiguration,
// GetKafkaBrokerConfiguration, GetProcessingConfiguration and
// GetMetricsConfiguration are to be used to return specific configuration
// options.
package conf

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/conf

// Default name of configuration file is config.toml
// It can be changed via environment variable EXPRESSION_SERVICE_CONFIG_FILE

// An example of configuration file that can be used in devel environment:
//
// [storage]
// enabled = true
// db_driver = "sqlite3"
// sqlite_datasource = "evaluations.db"
//
// [processing]
// workers = 4
//
// [logging]
// debug = true
// log_level = ""
//
// Environment variables that can be used to override configuration file
// settings are prefixed by EXPRESSION_SERVICE_, for example
// EXPRESSION_SERVICE_PROCESSING__WORKERS=8

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/RedHatInsights/insights-operator-utils/logger"
	clowder "github.com/redhatinsights/app-common-go/pkg/api/v1"
	"github.com/spf13/viper"
)

// Common constants used by the service
const (
	// ConfigFileEnvVariableName is name of env. variable holding path to
	// configuration file
	ConfigFileEnvVariableName = "EXPRESSION_SERVICE_CONFIG_FILE"
	// DefaultConfigFileName is name of configuration file used when the
	// env. variable is not set
	DefaultConfigFileName = "config"

	envPrefix = "EXPRESSION_SERVICE"

	// DefaultWorkers is number of evaluation workers used when the
	// configuration does not specify it
	DefaultWorkers = 4

	// DefaultMetricsJob is job name used when pushing metrics to Prometheus
	// push gateway when the configuration does not specify it
	DefaultMetricsJob = "expression_evaluator_service"

	noBrokerConfig = "warning: no broker configurations found in clowder config"
	noTopicMapping = "warning: no kafka mapping found for topic %s"
)

// ConfigStruct is a structure holding the whole expression evaluator
// service configuration
type ConfigStruct struct {
	LoggingConf       logger.LoggingConfiguration       `mapstructure:"logging" toml:"logging"`
	CloudWatchConf    logger.CloudWatchConfiguration    `mapstructure:"cloudwatch" toml:"cloudwatch"`
	SentryLoggingConf logger.SentryLoggingConfiguration `mapstructure:"sentry" toml:"sentry"`
	KafkaZerologConf  logger.KafkaZerologConfiguration  `mapstructure:"kafka_zerolog" toml:"kafka_zerolog"`
	Storage           StorageConfiguration              `mapstructure:"storage" toml:"storage"`
	Kafka             KafkaConfiguration                `mapstructure:"kafka_broker" toml:"kafka_broker"`
	Processing        ProcessingConfiguration           `mapstructure:"processing" toml:"processing"`
	Metrics           MetricsConfiguration              `mapstructure:"metrics" toml:"metrics"`
	Cleaner           CleanerConfiguration              `mapstructure:"cleaner" toml:"cleaner"`
}

// StorageConfiguration represents configuration of data storage used to
// keep history of evaluated expressions
type StorageConfiguration struct {
	Enabled          bool   `mapstructure:"enabled"           toml:"enabled"`
	Driver           string `mapstructure:"db_driver"         toml:"db_driver"`
	SQLiteDataSource string `mapstructure:"sqlite_datasource" toml:"sqlite_datasource"`
	PGUsername       string `mapstructure:"pg_username"       toml:"pg_username"`
	PGPassword       string `mapstructure:"pg_password"       toml:"pg_password"`
	PGHost           string `mapstructure:"pg_host"           toml:"pg_host"`
	PGPort           int    `mapstructure:"pg_port"           toml:"pg_port"`
	PGDBName         string `mapstructure:"pg_db_name"        toml:"pg_db_name"`
	PGParams         string `mapstructure:"pg_params"         toml:"pg_params"`
	LogSQLQueries    bool   `mapstructure:"log_sql_queries"   toml:"log_sql_queries"`
}

// KafkaConfiguration represents configuration of Kafka broker and topic
// where evaluation results are published
type KafkaConfiguration struct {
	Enabled          bool          `mapstructure:"enabled"           toml:"enabled"`
	Address          string        `mapstructure:"address"           toml:"address"`
	SecurityProtocol string        `mapstructure:"security_protocol" toml:"security_protocol"`
	CertPath         string        `mapstructure:"cert_path"         toml:"cert_path"`
	SaslMechanism    string        `mapstructure:"sasl_mechanism"    toml:"sasl_mechanism"`
	SaslUsername     string        `mapstructure:"sasl_username"     toml:"sasl_username"`
	SaslPassword     string        `mapstructure:"sasl_password"     toml:"sasl_password"`
	Topic            string        `mapstructure:"topic"             toml:"topic"`
	Timeout          time.Duration `mapstructure:"timeout"           toml:"timeout"`
}

// ProcessingConfiguration represents configuration of expression processing
type ProcessingConfiguration struct {
	// Workers is number of goroutines evaluating expressions in parallel
	Workers int `mapstructure:"workers" toml:"workers"`

	// MaxExpressionLength limits length of one expression, zero means
	// no limit
	MaxExpressionLength int `mapstructure:"max_expression_length" toml:"max_expression_length"`
}

// CleanerConfiguration represents configuration for the history cleaner
type CleanerConfiguration struct {
	// MaxAge is specification of max age for records to be cleaned
	MaxAge string `mapstructure:"max_age" toml:"max_age"`
}

// MetricsConfiguration holds metrics related configuration
type MetricsConfiguration struct {
	Job              string        `mapstructure:"job_name"           toml:"job_name"`
	Namespace        string        `mapstructure:"namespace"          toml:"namespace"`
	Subsystem        string        `mapstructure:"subsystem"          toml:"subsystem"`
	GatewayURL       string        `mapstructure:"gateway_url"        toml:"gateway_url"`
	GatewayAuthToken string        `mapstructure:"gateway_auth_token" toml:"gateway_auth_token"`
	Retries          int           `mapstructure:"retries"            toml:"retries"`
	RetryAfter       time.Duration `mapstructure:"retry_after"        toml:"retry_after"`
}

// LoadConfiguration loads configuration from defaultConfigFile, file set in
// configFileEnvVariableName or from env
func LoadConfiguration(configFileEnvVariableName, defaultConfigFile string) (ConfigStruct, error) {
	var config ConfigStruct

	// env. variable holding name of configuration file
	configFile, specified := os.LookupEnv(configFileEnvVariableName)
	if specified {
		// we need to separate the directory name and filename without
		// extension
		directory, basename := filepath.Split(configFile)
		file := strings.TrimSuffix(basename, filepath.Ext(basename))
		// parse the configuration
		viper.SetConfigName(file)
		viper.AddConfigPath(directory)
	} else {
		// parse the configuration
		viper.SetConfigName(defaultConfigFile)
		viper.AddConfigPath(".")
	}

	// try to read the whole configuration
	err := viper.ReadInConfig()
	if _, isNotFoundError := err.(viper.ConfigFileNotFoundError); !specified && isNotFoundError {
		// If config file is not present (which might be correct in
		// some environment) we need to read configuration from
		// environment variables The problem is that Viper is not smart
		// enough to understand the structure of config by itself, so
		// we need to read fake config file
		fakeTomlConfigWriter := new(bytes.Buffer)

		err := toml.NewEncoder(fakeTomlConfigWriter).Encode(config)
		if err != nil {
			return config, err
		}

		fakeTomlConfig := fakeTomlConfigWriter.String()

		viper.SetConfigType("toml")

		err = viper.ReadConfig(strings.NewReader(fakeTomlConfig))
		if err != nil {
			return config, err
		}
	} else if err != nil {
		// error is processed on caller side
		return config, fmt.Errorf("fatal error config file: %s", err)
	}

	// override config from env if there's variable in env
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "__"))

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Processing.Workers <= 0 {
		config.Processing.Workers = DefaultWorkers
	}
	if config.Metrics.Job == "" {
		config.Metrics.Job = DefaultMetricsJob
	}

	if clowder.IsClowderEnabled() {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is enabled")
		updateBrokerCfgFromClowder(&config)
	} else {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is disabled")
	}

	// everything's should be ok
	return config, nil
}

// updateBrokerCfgFromClowder replaces broker address and topic name by
// values provided by Clowder
func updateBrokerCfgFromClowder(configuration *ConfigStruct) {
	if clowder.LoadedConfig == nil || clowder.LoadedConfig.Kafka == nil ||
		len(clowder.LoadedConfig.Kafka.Brokers) == 0 {
		fmt.Println(noBrokerConfig)
		return
	}

	broker := clowder.LoadedConfig.Kafka.Brokers[0]
	// port can be empty in clowder, so taking it into account
	if broker.Port != nil {
		configuration.Kafka.Address = fmt.Sprintf("%s:%d", broker.Hostname, *broker.Port)
	} else {
		configuration.Kafka.Address = broker.Hostname
	}

	if topicCfg, ok := clowder.KafkaTopics[configuration.Kafka.Topic]; ok {
		configuration.Kafka.Topic = topicCfg.Name
	} else {
		fmt.Printf(noTopicMapping+"\n", configuration.Kafka.Topic)
	}
}

// GetStorageConfiguration returns storage configuration
func GetStorageConfiguration(config *ConfigStruct) StorageConfiguration {
	return config.Storage
}

// GetLoggingConfiguration returns logging configuration
func GetLoggingConfiguration(config *ConfigStruct) logger.LoggingConfiguration {
	return config.LoggingConf
}

// GetCloudWatchConfiguration returns cloudwatch configuration
func GetCloudWatchConfiguration(config *ConfigStruct) logger.CloudWatchConfiguration {
	return config.CloudWatchConf
}

// GetSentryLoggingConfiguration returns the sentry log configuration
func GetSentryLoggingConfiguration(config *ConfigStruct) logger.SentryLoggingConfiguration {
	return config.SentryLoggingConf
}

// GetKafkaZerologConfiguration returns the kafkazero log configuration
func GetKafkaZerologConfiguration(config *ConfigStruct) logger.KafkaZerologConfiguration {
	return config.KafkaZerologConf
}

// GetKafkaBrokerConfiguration returns kafka broker configuration
func GetKafkaBrokerConfiguration(config *ConfigStruct) KafkaConfiguration {
	return config.Kafka
}

// GetProcessingConfiguration returns processing configuration
func GetProcessingConfiguration(config *ConfigStruct) ProcessingConfiguration {
	return config.Processing
}

// GetMetricsConfiguration returns metrics configuration
func GetMetricsConfiguration(config *ConfigStruct) MetricsConfiguration {
	return config.Metrics
}

// GetCleanerConfiguration returns cleaner configuration
func GetCleanerConfiguration(config *ConfigStruct) CleanerConfiguration {
	return config.Cleaner
}
