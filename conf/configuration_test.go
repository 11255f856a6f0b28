/*
Copyright © 2021, 2022, 2023 Red Hat, Inc.

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

package conf_test

import (
	"os"
	"time"

	"testing"

	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	conf "github.com/RedHatInsights/expression-evaluator-service/conf"
)

const envVar = "EXPRESSION_SERVICE_CONFIG_FILE"

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func mustLoadConfiguration(envVar string) conf.ConfigStruct {
	config, err := conf.LoadConfiguration(envVar, "../tests/config1")
	if err != nil {
		panic(err)
	}
	return config
}

func mustSetEnv(t *testing.T, key, val string) {
	err := os.Setenv(key, val)
	helpers.FailOnError(t, err)
}

func mustLoadConfig2(t *testing.T) conf.ConfigStruct {
	os.Clearenv()
	mustSetEnv(t, envVar, "../tests/config2")

	config, err := conf.LoadConfiguration(envVar, "")
	assert.Nil(t, err, "Failed loading configuration file from env var!")
	return config
}

// TestLoadDefaultConfiguration loads a configuration file for testing
func TestLoadDefaultConfiguration(t *testing.T) {
	os.Clearenv()
	config := mustLoadConfiguration("nonExistingEnvVar")

	assert.Equal(t, 2, conf.GetProcessingConfiguration(&config).Workers)
}

// TestLoadConfigurationFromEnvVariable tests loading the config. file for testing from an environment variable
func TestLoadConfigurationFromEnvVariable(t *testing.T) {
	os.Clearenv()

	mustSetEnv(t, envVar, "../tests/config2")
	mustLoadConfiguration(envVar)
}

// TestLoadConfigurationNonEnvVarUnknownConfigFile tests loading an unexisting config file when no environment variable is provided
func TestLoadConfigurationNonEnvVarUnknownConfigFile(t *testing.T) {
	os.Clearenv()

	config, err := conf.LoadConfiguration("", "foobar")
	assert.Nil(t, err)

	// default values are used when nothing is configured
	assert.Equal(t, conf.DefaultWorkers, conf.GetProcessingConfiguration(&config).Workers)
	assert.Equal(t, conf.DefaultMetricsJob, conf.GetMetricsConfiguration(&config).Job)
}

// TestLoadConfigurationBadConfigFile tests loading malformed config file
func TestLoadConfigurationBadConfigFile(t *testing.T) {
	os.Clearenv()

	_, err := conf.LoadConfiguration("", "../tests/config3")
	assert.Contains(t, err.Error(), `fatal error config file: While parsing config:`)
}

// TestLoadingConfigurationEnvVariableBadValueNoDefaultConfig tests loading a non-existent configuration file set in environment
func TestLoadingConfigurationEnvVariableBadValueNoDefaultConfig(t *testing.T) {
	os.Clearenv()

	mustSetEnv(t, envVar, "non existing file")

	_, err := conf.LoadConfiguration(envVar, "")
	assert.Contains(t, err.Error(), `fatal error config file: Config File "non existing file" Not Found in`)
}

// TestLoadingConfigurationEnvVariableBadValueDefaultConfigFailure tests that if env var is provided, it must point to a valid config file
func TestLoadingConfigurationEnvVariableBadValueDefaultConfigFailure(t *testing.T) {
	os.Clearenv()

	mustSetEnv(t, envVar, "non existing file")

	_, err := conf.LoadConfiguration(envVar, "../tests/config1")
	assert.Contains(t, err.Error(), `fatal error config file: Config File "non existing file" Not Found in`)
}

// TestLoadBrokerConfiguration tests loading the broker configuration sub-tree
func TestLoadBrokerConfiguration(t *testing.T) {
	expectedTimeout, _ := time.ParseDuration("20s")

	config := mustLoadConfig2(t)
	brokerCfg := conf.GetKafkaBrokerConfiguration(&config)

	assert.True(t, brokerCfg.Enabled)
	assert.Equal(t, "localhost:29092", brokerCfg.Address)
	assert.Equal(t, "ccx_test_expressions", brokerCfg.Topic)
	assert.Equal(t, expectedTimeout, brokerCfg.Timeout)
}

// TestLoadStorageConfiguration tests loading the storage configuration sub-tree
func TestLoadStorageConfiguration(t *testing.T) {
	config := mustLoadConfig2(t)
	storageCfg := conf.GetStorageConfiguration(&config)

	assert.True(t, storageCfg.Enabled)
	assert.Equal(t, "sqlite3", storageCfg.Driver)
	assert.Equal(t, "evaluations.db", storageCfg.SQLiteDataSource)
	assert.Equal(t, "user", storageCfg.PGUsername)
	assert.Equal(t, "password", storageCfg.PGPassword)
	assert.Equal(t, "localhost", storageCfg.PGHost)
	assert.Equal(t, 5432, storageCfg.PGPort)
	assert.Equal(t, "expressions", storageCfg.PGDBName)
	assert.Equal(t, "", storageCfg.PGParams)
	assert.Equal(t, true, storageCfg.LogSQLQueries)
}

// TestLoadLoggingConfiguration tests loading the logging configuration sub-tree
func TestLoadLoggingConfiguration(t *testing.T) {
	config := mustLoadConfig2(t)
	loggingCfg := conf.GetLoggingConfiguration(&config)

	assert.Equal(t, true, loggingCfg.Debug)
	assert.Equal(t, "", loggingCfg.LogLevel)

	// remote log destinations are not configured
	assert.Equal(t, conf.GetCloudWatchConfiguration(&config), config.CloudWatchConf)
	assert.Equal(t, conf.GetSentryLoggingConfiguration(&config), config.SentryLoggingConf)
	assert.Equal(t, conf.GetKafkaZerologConfiguration(&config), config.KafkaZerologConf)
}

// TestLoadProcessingConfiguration tests loading the processing configuration sub-tree
func TestLoadProcessingConfiguration(t *testing.T) {
	config := mustLoadConfig2(t)
	processingCfg := conf.GetProcessingConfiguration(&config)

	assert.Equal(t, 8, processingCfg.Workers)
	assert.Equal(t, 1024, processingCfg.MaxExpressionLength)
}

// TestLoadCleanerConfiguration tests loading the cleaner configuration sub-tree
func TestLoadCleanerConfiguration(t *testing.T) {
	config := mustLoadConfig2(t)

	assert.Equal(t, "30 days", conf.GetCleanerConfiguration(&config).MaxAge)
}

// TestLoadMetricsConfiguration tests loading the metrics configuration sub-tree
func TestLoadMetricsConfiguration(t *testing.T) {
	config := mustLoadConfig2(t)
	metricsCfg := conf.GetMetricsConfiguration(&config)

	assert.Equal(t, "expression_service", metricsCfg.Job)
	assert.Equal(t, "expression_service_namespace", metricsCfg.Namespace)
	assert.Equal(t, "evaluator", metricsCfg.Subsystem)
	assert.Equal(t, ":9091", metricsCfg.GatewayURL)
	assert.Equal(t, "", metricsCfg.GatewayAuthToken)
	assert.Equal(t, 3, metricsCfg.Retries)
	assert.Equal(t, 2*time.Second, metricsCfg.RetryAfter)
}

// TestLoadConfigurationOverrideFromEnv tests overriding configuration
// options by environment variables
func TestLoadConfigurationOverrideFromEnv(t *testing.T) {
	os.Clearenv()
	mustSetEnv(t, envVar, "../tests/config2")
	mustSetEnv(t, "EXPRESSION_SERVICE_PROCESSING__WORKERS", "16")

	config, err := conf.LoadConfiguration(envVar, "")
	helpers.FailOnError(t, err)

	assert.Equal(t, 16, conf.GetProcessingConfiguration(&config).Workers)
}

// TestLoadConfigurationFromEnvVariableClowderEnabled tests loading the config.
// file for testing from an environment variable. Clowder config is enabled in
// this case, but no brokers are provided by it.
func TestLoadConfigurationFromEnvVariableClowderEnabled(t *testing.T) {
	os.Clearenv()

	mustSetEnv(t, envVar, "../tests/config2")
	mustSetEnv(t, "ACG_CONFIG", "tests/clowder_config.json")
	config := mustLoadConfiguration(envVar)

	assert.Equal(t, "localhost:29092", conf.GetKafkaBrokerConfiguration(&config).Address)
}
