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

// Package kafka contains an implementation of Producer interface that
// publishes evaluation results to the configured Kafka topic.
package kafka

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/producer/kafka

import (
	"crypto/sha512"
	"strings"

	tlsutils "github.com/RedHatInsights/insights-operator-utils/tls"
	"github.com/Shopify/sarama"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

// Message headers
const (
	contentTypeHeader = "content-type"
	contentTypeJSON   = "application/json"
)

// Producer sends serialized evaluation records to Kafka
type Producer struct {
	Configuration conf.KafkaConfiguration
	Producer      sarama.SyncProducer
}

// New connects to brokers listed in configuration and returns producer
// ready to publish evaluation results
func New(config *conf.ConfigStruct) (*Producer, error) {
	kafkaConfig := conf.GetKafkaBrokerConfiguration(config)

	saramaConfig, err := SaramaConfigFromBrokerConfig(&kafkaConfig)
	if err != nil {
		log.Error().Err(err).Msg("Invalid broker configuration")
		return nil, err
	}

	brokers := strings.Split(kafkaConfig.Address, ",")
	syncProducer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		log.Error().Strs("brokers", brokers).Err(err).Msg("Connection to brokers failed")
		return nil, err
	}

	log.Debug().Str("topic", kafkaConfig.Topic).Msg("Results will be published")
	return &Producer{
		Configuration: kafkaConfig,
		Producer:      syncProducer,
	}, nil
}

// newProducerMessage wraps JSON payload into message for the results topic
func newProducerMessage(topic string, payload types.ProducerMessage) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(contentTypeHeader), Value: []byte(contentTypeJSON)},
		},
	}
}

// ProduceMessage publishes one evaluation result and returns partition and
// offset assigned by the broker
func (producer *Producer) ProduceMessage(payload types.ProducerMessage) (partitionID int32, offset int64, err error) {
	message := newProducerMessage(producer.Configuration.Topic, payload)

	partitionID, offset, err = producer.Producer.SendMessage(message)
	if err != nil {
		log.Error().Err(err).Str("topic", message.Topic).Msg("Evaluation result not published")
		return partitionID, offset, err
	}

	log.Debug().
		Int32("partition", partitionID).
		Int64("offset", offset).
		Msg("Evaluation result published")
	return partitionID, offset, nil
}

// Close flushes and closes the underlying producer
func (producer *Producer) Close() error {
	log.Info().Msg("Closing results producer")
	err := producer.Producer.Close()
	if err != nil {
		log.Error().Err(err).Msg("Results producer can not be closed")
	}
	return err
}

// SaramaConfigFromBrokerConfig function prepares Sarama configuration from
// broker configuration: TLS, SASL authentication and timeouts
func SaramaConfigFromBrokerConfig(cfg *conf.KafkaConfiguration) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_0_0_0
	// sync producer needs successes to be reported back
	saramaConfig.Producer.Return.Successes = true

	applyTimeout(saramaConfig, cfg)

	switch {
	case strings.EqualFold(cfg.SecurityProtocol, "SSL"):
		if err := applyTLS(saramaConfig, cfg.CertPath); err != nil {
			return nil, err
		}
	case strings.HasPrefix(cfg.SecurityProtocol, "SASL_"):
		if strings.Contains(cfg.SecurityProtocol, "SSL") {
			saramaConfig.Net.TLS.Enable = true
		}
		applySASL(saramaConfig, cfg)
	}

	return saramaConfig, nil
}

func applyTimeout(saramaConfig *sarama.Config, cfg *conf.KafkaConfiguration) {
	if cfg.Timeout <= 0 {
		return
	}
	saramaConfig.Net.DialTimeout = cfg.Timeout
	saramaConfig.Net.ReadTimeout = cfg.Timeout
	saramaConfig.Net.WriteTimeout = cfg.Timeout
	saramaConfig.Producer.Timeout = cfg.Timeout
}

func applyTLS(saramaConfig *sarama.Config, certPath string) error {
	saramaConfig.Net.TLS.Enable = true
	if certPath == "" {
		return nil
	}

	tlsConfig, err := tlsutils.NewTLSConfig(certPath)
	if err != nil {
		log.Error().Err(err).Str("certificate", certPath).Msg("TLS configuration can not be loaded")
		return err
	}
	saramaConfig.Net.TLS.Config = tlsConfig
	return nil
}

func applySASL(saramaConfig *sarama.Config, cfg *conf.KafkaConfiguration) {
	log.Info().Str("mechanism", cfg.SaslMechanism).Msg("Broker uses SASL authentication")
	saramaConfig.Net.SASL.Enable = true
	saramaConfig.Net.SASL.User = cfg.SaslUsername
	saramaConfig.Net.SASL.Password = cfg.SaslPassword
	saramaConfig.Net.SASL.Mechanism = sarama.SASLMechanism(cfg.SaslMechanism)

	if strings.EqualFold(cfg.SaslMechanism, sarama.SASLTypeSCRAMSHA512) {
		saramaConfig.Net.SASL.Handshake = true
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &SCRAMClient{HashGeneratorFcn: sha512.New}
		}
	}
}
