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

package processor_test

import (
	"bytes"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/processor"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

var (
	evaluatedAt = time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	successfulRecord = types.EvaluationRecord{
		ID:          "0d6f7d1c-0a55-4f5e-8f9e-1b8a3e4e7c11",
		Expression:  "2 + 3 * 4 / 2",
		Hash:        processor.HashExpression("2 + 3 * 4 / 2"),
		Tokens:      "2 + 3 * 4 / 2",
		Postfix:     "2 3 4 * 2 / +",
		Result:      8,
		EvaluatedAt: types.Timestamp(evaluatedAt),
	}

	failedRecord = types.EvaluationRecord{
		ID:          "a7a0d1b8-7a0c-4c38-a8e4-92a5d0b5c7f2",
		Expression:  "(2 + 3",
		Hash:        processor.HashExpression("(2 + 3"),
		Tokens:      "( 2 + 3",
		ErrorKind:   "UnbalancedParentheses",
		ErrorText:   "unbalanced parentheses at position 0",
		EvaluatedAt: types.Timestamp(evaluatedAt),
	}

	evaluationColumns = []string{
		"id", "expression", "expression_hash", "postfix", "result",
		"error_kind", "error_text", "evaluated_at",
	}
)

// mustCreateMockConnection function tries to create a new mock connection and
// checks if the operation was finished without problems.
func mustCreateMockConnection(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	// try to initialize new mock connection
	connection, mock, err := sqlmock.New()

	// check the status
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	return connection, mock
}

// checkAllExpectations function checks if all database-related operations have
// been really met.
func checkAllExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	// check if all expectations were met
	err := mock.ExpectationsWereMet()

	// check the error status
	if err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestNewStorageUnsupportedDriver checks that unknown driver is refused
func TestNewStorageUnsupportedDriver(t *testing.T) {
	_, err := processor.NewStorage(conf.StorageConfiguration{
		Driver: "mysql",
	})
	assert.EqualError(t, err, "driver mysql is not supported")
}

// TestNewStoragePostgres checks that connection to PostgreSQL can be
// prepared without contacting the server
func TestNewStoragePostgres(t *testing.T) {
	storage, err := processor.NewStorage(conf.StorageConfiguration{
		Driver:     "postgres",
		PGUsername: "user",
		PGPassword: "password",
		PGHost:     "localhost",
		PGPort:     5432,
		PGDBName:   "expressions",
		PGParams:   "sslmode=disable",
	})
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())
}

// TestCreateTables checks that table and index are created
func TestCreateTables(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS evaluations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS evaluations_expression_hash_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	helpers.FailOnError(t, storage.CreateTables())
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestCreateTablesError checks that DB error is propagated
func TestCreateTablesError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mockedError := errors.New("permission denied")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS evaluations").
		WillReturnError(mockedError)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	assert.ErrorIs(t, storage.CreateTables(), mockedError)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestWriteEvaluationRecord checks that all columns are written
func TestWriteEvaluationRecord(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(
			string(successfulRecord.ID),
			successfulRecord.Expression,
			int64(successfulRecord.Hash),
			successfulRecord.Postfix,
			float64(8),
			"",
			"",
			evaluatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	helpers.FailOnError(t, storage.WriteEvaluationRecord(successfulRecord))
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestWriteFailedEvaluationRecord checks that result of failed evaluation is
// stored as NULL
func TestWriteFailedEvaluationRecord(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(
			string(failedRecord.ID),
			failedRecord.Expression,
			int64(failedRecord.Hash),
			"",
			nil,
			failedRecord.ErrorKind,
			failedRecord.ErrorText,
			evaluatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	helpers.FailOnError(t, storage.WriteEvaluationRecord(failedRecord))
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestWriteEvaluationRecordError checks that DB error is propagated
func TestWriteEvaluationRecordError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mockedError := errors.New("duplicate key value violates unique constraint")

	mock.ExpectExec("INSERT INTO evaluations").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	assert.ErrorIs(t, storage.WriteEvaluationRecord(successfulRecord), mockedError)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestReadEvaluationsByHash checks reading of previous evaluations
func TestReadEvaluationsByHash(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows(evaluationColumns).
		AddRow(string(successfulRecord.ID), successfulRecord.Expression,
			int64(successfulRecord.Hash), successfulRecord.Postfix, float64(8),
			"", "", evaluatedAt).
		AddRow("second", successfulRecord.Expression,
			int64(successfulRecord.Hash), successfulRecord.Postfix, float64(8),
			nil, nil, evaluatedAt.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM evaluations WHERE expression_hash = \\$1").
		WithArgs(int64(successfulRecord.Hash)).
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	records, err := storage.ReadEvaluationsByHash(successfulRecord.Hash)
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())

	if assert.Len(t, records, 2) {
		assert.Equal(t, successfulRecord.ID, records[0].ID)
		assert.Equal(t, successfulRecord.Hash, records[0].Hash)
		assert.Equal(t, successfulRecord.Postfix, records[0].Postfix)
		assert.Equal(t, float32(8), records[0].Result)
		assert.False(t, records[0].Failed())
		assert.Equal(t, types.EvaluationID("second"), records[1].ID)
		assert.Equal(t, types.Timestamp(evaluatedAt.Add(-time.Hour)), records[1].EvaluatedAt)
	}

	checkAllExpectations(t, mock)
}

// TestReadEvaluationsByHashScanError checks that wrong column content is
// reported
func TestReadEvaluationsByHashScanError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows(evaluationColumns).
		AddRow("id", "1 + 1", "this is not a number", "1 1 +", float64(2),
			"", "", evaluatedAt)

	mock.ExpectQuery("SELECT (.+) FROM evaluations").WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	_, err := storage.ReadEvaluationsByHash(1)
	assert.Error(t, err)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestReadLatestEvaluations checks reading of evaluation history
func TestReadLatestEvaluations(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows(evaluationColumns).
		AddRow(string(failedRecord.ID), failedRecord.Expression,
			int64(failedRecord.Hash), nil, nil,
			failedRecord.ErrorKind, failedRecord.ErrorText, evaluatedAt)

	mock.ExpectQuery("SELECT (.+) FROM evaluations ORDER BY evaluated_at DESC LIMIT \\$1").
		WithArgs(10).
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	records, err := storage.ReadLatestEvaluations(10)
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())

	if assert.Len(t, records, 1) {
		assert.True(t, records[0].Failed())
		assert.Equal(t, failedRecord.ErrorKind, records[0].ErrorKind)
		assert.Equal(t, failedRecord.ErrorText, records[0].ErrorText)
		assert.Equal(t, "", records[0].Postfix)
	}

	checkAllExpectations(t, mock)
}

// TestReadLatestEvaluationsError checks that DB error is propagated
func TestReadLatestEvaluationsError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mockedError := errors.New("connection reset")

	mock.ExpectQuery("SELECT (.+) FROM evaluations").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	records, err := storage.ReadLatestEvaluations(10)
	assert.ErrorIs(t, err, mockedError)
	assert.Empty(t, records)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestCleanupOldEvaluationsPostgres checks the cleanup statement used for
// PostgreSQL
func TestCleanupOldEvaluationsPostgres(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("DELETE FROM evaluations WHERE evaluated_at < NOW\\(\\) - \\$1::INTERVAL").
		WithArgs("90 days").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	deleted, err := storage.CleanupOldEvaluations("90 days")
	helpers.FailOnError(t, err)
	assert.Equal(t, 3, deleted)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestCleanupOldEvaluationsSQLite checks the cleanup statement used for
// SQLite
func TestCleanupOldEvaluationsSQLite(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("DELETE FROM evaluations WHERE evaluated_at < datetime\\('now', '-' \\|\\| \\$1\\)").
		WithArgs("90 days").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverSQLite3)
	deleted, err := storage.CleanupOldEvaluations("90 days")
	helpers.FailOnError(t, err)
	assert.Equal(t, 1, deleted)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestCleanupOldEvaluationsError checks that DB error is propagated
func TestCleanupOldEvaluationsError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mockedError := errors.New("invalid input syntax for type interval")

	mock.ExpectExec("DELETE FROM evaluations").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	deleted, err := storage.CleanupOldEvaluations("foo")
	assert.ErrorIs(t, err, mockedError)
	assert.Equal(t, 0, deleted)
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestPrintOldEvaluationsForCleanup checks that old records are read
func TestPrintOldEvaluationsForCleanup(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"id", "expression", "evaluated_at"}).
		AddRow("first", "1 + 1", evaluatedAt).
		AddRow("second", "2 * 2", evaluatedAt)

	mock.ExpectQuery("SELECT id, expression, evaluated_at FROM evaluations WHERE evaluated_at < NOW\\(\\)").
		WithArgs("30 days").
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverPostgres)
	helpers.FailOnError(t, storage.PrintOldEvaluationsForCleanup("30 days"))
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestPrintOldEvaluationsForCleanupScanError checks that wrong column
// content is reported
func TestPrintOldEvaluationsForCleanupScanError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"id", "expression", "evaluated_at"}).
		AddRow("first", "1 + 1", "not a timestamp")

	mock.ExpectQuery("SELECT id, expression, evaluated_at FROM evaluations").
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverSQLite3)
	assert.Error(t, storage.PrintOldEvaluationsForCleanup("30 days"))
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestNoopStorage checks storage used when persistence is disabled
func TestNoopStorage(t *testing.T) {
	var storage processor.Storage = processor.NoopStorage{}

	helpers.FailOnError(t, storage.CreateTables())
	helpers.FailOnError(t, storage.WriteEvaluationRecord(successfulRecord))

	records, err := storage.ReadEvaluationsByHash(successfulRecord.Hash)
	helpers.FailOnError(t, err)
	assert.Empty(t, records)

	records, err = storage.ReadLatestEvaluations(10)
	helpers.FailOnError(t, err)
	assert.Empty(t, records)

	var storageError *processor.StorageError
	assert.ErrorAs(t, storage.PrintOldEvaluationsForCleanup("1 day"), &storageError)
	_, err = storage.CleanupOldEvaluations("1 day")
	assert.ErrorAs(t, err, &storageError)

	helpers.FailOnError(t, storage.Close())
}

// TestSQLiteStorageRoundTrip checks the whole storage against real SQLite
// database file
func TestSQLiteStorageRoundTrip(t *testing.T) {
	storage, err := processor.NewStorage(conf.StorageConfiguration{
		Enabled:          true,
		Driver:           "sqlite3",
		SQLiteDataSource: filepath.Join(t.TempDir(), "evaluations.db"),
	})
	helpers.FailOnError(t, err)
	defer func() {
		helpers.FailOnError(t, storage.Close())
	}()

	helpers.FailOnError(t, storage.CreateTables())
	// tables are created only once
	helpers.FailOnError(t, storage.CreateTables())

	old := failedRecord
	old.EvaluatedAt = types.Timestamp(time.Now().UTC().AddDate(-1, 0, 0))
	recent := successfulRecord
	recent.EvaluatedAt = types.Timestamp(time.Now().UTC())

	helpers.FailOnError(t, storage.WriteEvaluationRecord(old))
	helpers.FailOnError(t, storage.WriteEvaluationRecord(recent))

	records, err := storage.ReadEvaluationsByHash(recent.Hash)
	helpers.FailOnError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, recent.ID, records[0].ID)
		assert.Equal(t, recent.Result, records[0].Result)
	}

	records, err = storage.ReadLatestEvaluations(10)
	helpers.FailOnError(t, err)
	if assert.Len(t, records, 2) {
		// the most recent first
		assert.Equal(t, recent.ID, records[0].ID)
		assert.Equal(t, old.ID, records[1].ID)
		assert.True(t, records[1].Failed())
	}

	helpers.FailOnError(t, storage.PrintOldEvaluationsForCleanup("30 days"))

	deleted, err := storage.CleanupOldEvaluations("30 days")
	helpers.FailOnError(t, err)
	assert.Equal(t, 1, deleted)

	records, err = storage.ReadLatestEvaluations(10)
	helpers.FailOnError(t, err)
	assert.Len(t, records, 1)
}

// TestWriteNaNEvaluationRecord checks that NaN result is stored as NULL
func TestWriteNaNEvaluationRecord(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	record := processor.EvaluateOne("0 / 0")

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(
			string(record.ID),
			record.Expression,
			int64(record.Hash),
			"0 0 /",
			nil,
			"",
			"",
			time.Time(record.EvaluatedAt),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverSQLite3)
	helpers.FailOnError(t, storage.WriteEvaluationRecord(record))
	helpers.FailOnError(t, storage.Close())

	checkAllExpectations(t, mock)
}

// TestReadNonFiniteEvaluations checks that NULL result of successful
// evaluation is read as NaN and that division by zero is recognized from
// stored postfix form
func TestReadNonFiniteEvaluations(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows(evaluationColumns).
		AddRow("nan", "0 / 0", int64(1), "0 0 /", nil, "", "", evaluatedAt).
		AddRow("inf", "1 / 0", int64(2), "1 0 /", math.Inf(1), nil, nil, evaluatedAt).
		AddRow("overflow", "300000000000000000000000000000000000000 * 10", int64(3),
			"300000000000000000000000000000000000000 10 *", math.Inf(1), "", "", evaluatedAt)

	mock.ExpectQuery("SELECT (.+) FROM evaluations").WillReturnRows(rows)
	mock.ExpectClose()

	storage := processor.NewFromConnection(connection, types.DBDriverSQLite3)
	records, err := storage.ReadLatestEvaluations(10)
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())

	if assert.Len(t, records, 3) {
		assert.False(t, records[0].Failed())
		assert.True(t, math.IsNaN(float64(records[0].Result)))
		assert.True(t, records[0].DivisionByZero)
		assert.Equal(t, "0 / 0 => division by zero (NaN)", processor.FormatResult(records[0]))

		assert.True(t, records[1].DivisionByZero)
		assert.Equal(t, "1 / 0 => division by zero (+Inf)", processor.FormatResult(records[1]))

		assert.False(t, records[2].DivisionByZero)
		assert.Equal(t,
			"300000000000000000000000000000000000000 * 10 => non-finite result (+Inf)",
			processor.FormatResult(records[2]))
	}

	checkAllExpectations(t, mock)
}

// TestSQLiteStorageNonFiniteRoundTrip checks that infinite and NaN results
// are displayed the same way after they are read back from SQLite
func TestSQLiteStorageNonFiniteRoundTrip(t *testing.T) {
	storage, err := processor.NewStorage(conf.StorageConfiguration{
		Enabled:          true,
		Driver:           "sqlite3",
		SQLiteDataSource: filepath.Join(t.TempDir(), "evaluations.db"),
	})
	helpers.FailOnError(t, err)
	defer func() {
		helpers.FailOnError(t, storage.Close())
	}()
	helpers.FailOnError(t, storage.CreateTables())

	for _, expression := range []string{
		"0 / 0",
		"1 / 0",
		"(0 - 1) / 0",
		"300000000000000000000000000000000000000 * 10",
		"1 / (1 / 0)",
	} {
		t.Run(expression, func(t *testing.T) {
			record := processor.EvaluateOne(expression)
			helpers.FailOnError(t, storage.WriteEvaluationRecord(record))

			records, err := storage.ReadEvaluationsByHash(record.Hash)
			helpers.FailOnError(t, err)
			if assert.Len(t, records, 1) {
				assert.False(t, records[0].Failed())
				assert.Equal(t, record.DivisionByZero, records[0].DivisionByZero)
				assert.Equal(t, processor.FormatResult(record), processor.FormatResult(records[0]))
			}
		})
	}
}

// TestLogSQLQueries checks that SQL statements are logged only when it is
// enabled in configuration
func TestLogSQLQueries(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	}()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	for _, enabled := range []bool{true, false} {
		buffer := new(bytes.Buffer)
		log.Logger = zerolog.New(buffer)

		storage, err := processor.NewStorage(conf.StorageConfiguration{
			Enabled:          true,
			Driver:           "sqlite3",
			SQLiteDataSource: filepath.Join(t.TempDir(), "evaluations.db"),
			LogSQLQueries:    enabled,
		})
		helpers.FailOnError(t, err)
		helpers.FailOnError(t, storage.CreateTables())
		helpers.FailOnError(t, storage.WriteEvaluationRecord(successfulRecord))
		helpers.FailOnError(t, storage.Close())

		if enabled {
			assert.Contains(t, buffer.String(), "CREATE TABLE IF NOT EXISTS evaluations")
			assert.Contains(t, buffer.String(), "INSERT INTO evaluations")
		} else {
			assert.NotContains(t, buffer.String(), "CREATE TABLE")
			assert.NotContains(t, buffer.String(), "INSERT INTO")
		}
	}
}
