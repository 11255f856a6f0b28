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

// Package types contains data types shared by the expression evaluator
// service packages.
package types

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/types

import (
	"time"
)

// Timestamp represents any timestamp in a form gathered from database
type Timestamp time.Time

// EvaluationID is an unique identifier of one evaluation (UUID)
type EvaluationID string

// ExpressionHash is a digest of expression text used to look up previous
// evaluations of the same expression
type ExpressionHash uint64

// DBDriver type for db driver enum
type DBDriver int

const (
	// DBDriverSQLite3 shows that db driver is sqlite
	DBDriverSQLite3 DBDriver = iota
	// DBDriverPostgres shows that db driver is postgres
	DBDriverPostgres
	// DBDriverGeneral general sql(used for mock now)
	DBDriverGeneral
)

// ProducerMessage is a type used to represent an already serialized message
type ProducerMessage []byte

// EvaluationRecord represents result of evaluation of one expression. Either
// Result or ErrorKind+ErrorText are meaningful. DivisionByZero is set when
// any division during evaluation had zero divisor.
type EvaluationRecord struct {
	ID             EvaluationID
	Expression     string
	Hash           ExpressionHash
	Tokens         string
	Postfix        string
	Result         float32
	DivisionByZero bool
	ErrorKind      string
	ErrorText      string
	EvaluatedAt    Timestamp
}

// Failed returns true if the expression was not evaluated
func (record EvaluationRecord) Failed() bool {
	return record.ErrorKind != ""
}

// EvaluationMessage is the payload sent to Kafka for each evaluated
// expression. Result is stored as string because JSON can not represent
// infinities and NaN.
type EvaluationMessage struct {
	ID             EvaluationID `json:"id"`
	Expression     string       `json:"expression"`
	Postfix        string       `json:"postfix,omitempty"`
	Result         string       `json:"result,omitempty"`
	DivisionByZero bool         `json:"division_by_zero,omitempty"`
	ErrorKind      string       `json:"error_kind,omitempty"`
	ErrorText      string       `json:"error,omitempty"`
	EvaluatedAt    string       `json:"evaluated_at"`
}

// CliFlags represents structure holding all command line arguments and flags.
type CliFlags struct {
	Expression                    string
	InputFile                     string
	ShowTokens                    bool
	ShowPostfix                   bool
	FailOnError                   bool
	ShowVersion                   bool
	ShowAuthors                   bool
	ShowConfiguration             bool
	PrintHistory                  bool
	PrintOldEvaluationsForCleanup bool
	PerformOldEvaluationsCleanup  bool
	Verbose                       bool
	MaxAge                        string
}
