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

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/RedHatInsights/expression-evaluator-service/calc"
	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

// HashExpression function computes digest of expression text. Runs of
// whitespaces are collapsed so equally written expressions share the hash.
func HashExpression(expression string) types.ExpressionHash {
	normalized := strings.Join(strings.Fields(expression), " ")
	return types.ExpressionHash(xxhash.Sum64String(normalized))
}

// EvaluateOne function evaluates one expression and returns the record
// describing the evaluation. Metrics are updated accordingly.
func EvaluateOne(expression string) types.EvaluationRecord {
	record := types.EvaluationRecord{
		ID:          types.EvaluationID(uuid.New().String()),
		Expression:  expression,
		Hash:        HashExpression(expression),
		EvaluatedAt: types.Timestamp(time.Now().UTC()),
	}

	result, err := evaluateStages(expression, &record)
	if err != nil {
		kind := calc.ErrorKindOf(err).String()
		record.ErrorKind = kind
		record.ErrorText = err.Error()
		EvaluationErrors.WithLabelValues(kind).Inc()
		return record
	}

	record.Result = result
	ExpressionsEvaluated.Inc()
	if record.DivisionByZero {
		DivisionByZero.Inc()
	}
	if isNonFinite(result) {
		NonFiniteResults.Inc()
	}
	return record
}

// evaluateStages runs all evaluation stages one by one so the intermediate
// token sequences can be kept in the record
func evaluateStages(expression string, record *types.EvaluationRecord) (float32, error) {
	if err := CheckCharacterSet(expression); err != nil {
		return 0, err
	}

	tokens, err := calc.Tokenize(expression)
	if err != nil {
		return 0, err
	}
	record.Tokens = calc.FormatTokens(tokens)

	postfix, err := calc.ToPostfix(tokens)
	if err != nil {
		return 0, err
	}
	record.Postfix = calc.FormatTokens(postfix)

	result, err := calc.Evaluate(postfix)
	if err != nil {
		return 0, err
	}
	record.DivisionByZero = calc.DividesByZero(postfix)
	return result, nil
}

// EvaluateBatch function evaluates all expressions using the given number of
// workers. Records are returned in the same order as expressions. When the
// context is cancelled no further expressions are dispatched and only records
// for already dispatched expressions are returned.
func EvaluateBatch(ctx context.Context, expressions []string, workers int) []types.EvaluationRecord {
	if workers <= 0 {
		workers = conf.DefaultWorkers
	}

	records := make([]types.EvaluationRecord, len(expressions))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = EvaluateOne(expressions[i])
			}
		}()
	}

	dispatched := 0
dispatch:
	for dispatched < len(expressions) {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- dispatched:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	return records[:dispatched]
}

// isNonFinite returns true for infinite and NaN results
func isNonFinite(result float32) bool {
	value := float64(result)
	return math.IsInf(value, 0) || math.IsNaN(value)
}

// FormatValue function prints evaluation result in the shortest form that
// is parsed back to the same float32 value. Infinities are printed as +Inf
// and -Inf.
func FormatValue(result float32) string {
	return strconv.FormatFloat(float64(result), 'f', -1, 32)
}

// FormatResult function prints one evaluation record in human readable form.
// Infinite and NaN results are reported as division by zero only when a
// zero divisor was seen, overflow and similar cases are reported as
// non-finite result.
func FormatResult(record types.EvaluationRecord) string {
	switch {
	case record.Failed():
		return fmt.Sprintf("%s => error %s: %s", record.Expression, record.ErrorKind, record.ErrorText)
	case isNonFinite(record.Result) && record.DivisionByZero:
		return fmt.Sprintf("%s => division by zero (%s)", record.Expression, FormatValue(record.Result))
	case isNonFinite(record.Result):
		return fmt.Sprintf("%s => non-finite result (%s)", record.Expression, FormatValue(record.Result))
	default:
		return fmt.Sprintf("%s = %s", record.Expression, FormatValue(record.Result))
	}
}

// NewEvaluationMessage function converts evaluation record into a message
// that is sent to Kafka
func NewEvaluationMessage(record types.EvaluationRecord) types.EvaluationMessage {
	message := types.EvaluationMessage{
		ID:          record.ID,
		Expression:  record.Expression,
		Postfix:     record.Postfix,
		EvaluatedAt: time.Time(record.EvaluatedAt).Format(time.RFC3339),
	}
	if record.Failed() {
		message.ErrorKind = record.ErrorKind
		message.ErrorText = record.ErrorText
	} else {
		message.Result = FormatValue(record.Result)
		message.DivisionByZero = record.DivisionByZero
	}
	return message
}

// serializeRecord converts evaluation record into JSON payload
func serializeRecord(record types.EvaluationRecord) (types.ProducerMessage, error) {
	payload, err := json.Marshal(NewEvaluationMessage(record))
	if err != nil {
		return nil, err
	}
	return types.ProducerMessage(payload), nil
}
