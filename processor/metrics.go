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

package processor

// File metrics contains all metrics that needs to be exposed to Prometheus and
// indirectly to Grafana.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
)

// Metrics names
const (
	ExpressionsReadName      = "expressions_read"
	ExpressionsEvaluatedName = "expressions_evaluated"
	EvaluationErrorsName     = "evaluation_errors"
	DivisionByZeroName       = "division_by_zero"
	NonFiniteResultsName     = "non_finite_results"
	StorageErrorsName        = "storage_errors"
	ResultsProducedName      = "results_produced"
	ProducerErrorsName       = "producer_errors"
)

// Metrics helps
const (
	ExpressionsReadHelp      = "The total number of expressions read from input"
	ExpressionsEvaluatedHelp = "The total number of expressions evaluated successfully"
	EvaluationErrorsHelp     = "The total number of expressions that could not be evaluated, by error kind"
	DivisionByZeroHelp       = "The total number of evaluations that divided by zero"
	NonFiniteResultsHelp     = "The total number of evaluations with infinite or NaN result"
	StorageErrorsHelp        = "The total number of errors when accessing the storage"
	ResultsProducedHelp      = "The total number of evaluation results sent to Kafka"
	ProducerErrorsHelp       = "The total number of errors when sending evaluation results to Kafka"
)

// kindLabel is the label used to split evaluation errors by their kind
const kindLabel = "kind"

// PushGatewayClient is a simple wrapper over http.Client so that prometheus
// can do HTTP requests with the given authentication header
type PushGatewayClient struct {
	AuthToken string

	httpClient http.Client
}

// Do is a simple wrapper over http.Client.Do method that includes
// the authentication header configured in the PushGatewayClient instance
func (pgc *PushGatewayClient) Do(request *http.Request) (*http.Response, error) {
	if pgc.AuthToken != "" {
		log.Debug().Msg("Adding authorization header to HTTP request")
		request.Header.Set("Authorization", "Basic "+pgc.AuthToken)
	} else {
		log.Debug().Msg("No authorization token provided. Making HTTP request without credentials.")
	}
	log.Debug().Str("request", request.URL.String()).Str("method", request.Method).Msg("Pushing metrics to Prometheus push gateway")
	resp, err := pgc.httpClient.Do(request)
	if resp != nil {
		log.Debug().Int("code", resp.StatusCode).Msg("Returned status code")
	}
	return resp, err
}

// ExpressionsRead shows number of expressions read from input
var ExpressionsRead = promauto.NewCounter(prometheus.CounterOpts{
	Name: ExpressionsReadName,
	Help: ExpressionsReadHelp,
})

// ExpressionsEvaluated shows number of expressions evaluated without error
var ExpressionsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
	Name: ExpressionsEvaluatedName,
	Help: ExpressionsEvaluatedHelp,
})

// EvaluationErrors shows number of failed evaluations split by error kind
var EvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: EvaluationErrorsName,
	Help: EvaluationErrorsHelp,
}, []string{kindLabel})

// DivisionByZero shows number of evaluations where a division had zero
// divisor
var DivisionByZero = promauto.NewCounter(prometheus.CounterOpts{
	Name: DivisionByZeroName,
	Help: DivisionByZeroHelp,
})

// NonFiniteResults shows number of evaluations with infinite or NaN result,
// regardless of the cause
var NonFiniteResults = promauto.NewCounter(prometheus.CounterOpts{
	Name: NonFiniteResultsName,
	Help: NonFiniteResultsHelp,
})

// StorageErrors shows number of errors when accessing storage
var StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: StorageErrorsName,
	Help: StorageErrorsHelp,
})

// ResultsProduced shows number of results sent to the configured Kafka topic
var ResultsProduced = promauto.NewCounter(prometheus.CounterOpts{
	Name: ResultsProducedName,
	Help: ResultsProducedHelp,
})

// ProducerErrors shows number of results not sent because of a Kafka
// producer error
var ProducerErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ProducerErrorsName,
	Help: ProducerErrorsHelp,
})

// AddMetricsWithNamespaceAndSubsystem register the desired metrics using a
// given namespace and subsystem
func AddMetricsWithNamespaceAndSubsystem(namespace, subsystem string) {
	// Unregister all metrics and registrer them again
	prometheus.Unregister(ExpressionsRead)
	prometheus.Unregister(ExpressionsEvaluated)
	prometheus.Unregister(EvaluationErrors)
	prometheus.Unregister(DivisionByZero)
	prometheus.Unregister(NonFiniteResults)
	prometheus.Unregister(StorageErrors)
	prometheus.Unregister(ResultsProduced)
	prometheus.Unregister(ProducerErrors)

	ExpressionsRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ExpressionsReadName,
		Help:      ExpressionsReadHelp,
	})

	ExpressionsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ExpressionsEvaluatedName,
		Help:      ExpressionsEvaluatedHelp,
	})

	EvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      EvaluationErrorsName,
		Help:      EvaluationErrorsHelp,
	}, []string{kindLabel})

	DivisionByZero = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      DivisionByZeroName,
		Help:      DivisionByZeroHelp,
	})

	NonFiniteResults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NonFiniteResultsName,
		Help:      NonFiniteResultsHelp,
	})

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      StorageErrorsName,
		Help:      StorageErrorsHelp,
	})

	ResultsProduced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ResultsProducedName,
		Help:      ResultsProducedHelp,
	})

	ProducerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ProducerErrorsName,
		Help:      ProducerErrorsHelp,
	})
}

// PushCollectedMetrics function pushes the metrics to the configured
// prometheus push gateway
func PushCollectedMetrics(metricsConf conf.MetricsConfiguration) error {
	client := PushGatewayClient{metricsConf.GatewayAuthToken, http.Client{}}

	// Creates a pusher to the gateway "$PUSHGW_URL/metrics/job/$(job_name)
	return push.New(metricsConf.GatewayURL, metricsConf.Job).
		Collector(ExpressionsRead).
		Collector(ExpressionsEvaluated).
		Collector(EvaluationErrors).
		Collector(DivisionByZero).
		Collector(NonFiniteResults).
		Collector(StorageErrors).
		Collector(ResultsProduced).
		Collector(ProducerErrors).
		Client(&client).
		Push()
}
