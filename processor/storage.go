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

// This source file contains an implementation of interface between Go code and
// (almost any) SQL database like PostgreSQL or SQLite. The database is used
// to keep history of all evaluated expressions.
//
// It is possible to configure connection to selected database by using
// StorageConfiguration structure.

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL database driver
	_ "github.com/mattn/go-sqlite3" // SQLite database driver

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/expression-evaluator-service/calc"
	"github.com/RedHatInsights/expression-evaluator-service/conf"
	"github.com/RedHatInsights/expression-evaluator-service/types"
)

// Storage represents an interface to almost any database or storage system
type Storage interface {
	Close() error
	CreateTables() error
	WriteEvaluationRecord(record types.EvaluationRecord) error
	ReadEvaluationsByHash(hash types.ExpressionHash) ([]types.EvaluationRecord, error)
	ReadLatestEvaluations(limit int) ([]types.EvaluationRecord, error)
	PrintOldEvaluationsForCleanup(maxAge string) error
	CleanupOldEvaluations(maxAge string) (int, error)
}

// DBStorage is an implementation of Storage interface that use selected SQL
// like database like SQLite or PostgreSQL. That implementation is based on
// the standard sql package.
type DBStorage struct {
	connection    *sql.DB
	dbDriverType  types.DBDriver
	logSQLQueries bool
}

// error messages
const (
	unableToCloseDBRowsHandle = "Unable to close DB rows handle"
)

// other messages
const (
	EvaluationIDMessage = "Evaluation ID"
	ExpressionMessage   = "Expression"
	EvaluatedAtMessage  = "Evaluated at"
	AgeMessage          = "Age"
	MaxAgeAttribute     = "max age"
	DeleteStatement     = "delete statement"
)

// SQL statements
const (
	createEvaluationsTable = `
		CREATE TABLE IF NOT EXISTS evaluations (
		    id              VARCHAR NOT NULL,
		    expression      VARCHAR NOT NULL,
		    expression_hash BIGINT NOT NULL,
		    postfix         VARCHAR,
		    result          REAL,
		    error_kind      VARCHAR,
		    error_text      VARCHAR,
		    evaluated_at    TIMESTAMP NOT NULL,

		    PRIMARY KEY (id)
		)
`

	createExpressionHashIndex = `
		CREATE INDEX IF NOT EXISTS evaluations_expression_hash_idx
		    ON evaluations (expression_hash)
`

	insertEvaluationStatement = `
		INSERT INTO evaluations
		(id, expression, expression_hash, postfix, result, error_kind, error_text, evaluated_at)
		VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)
`

	readEvaluationsByHashQuery = `
		SELECT id, expression, expression_hash, postfix, result, error_kind, error_text, evaluated_at
		  FROM evaluations
		 WHERE expression_hash = $1
		 ORDER BY evaluated_at DESC
`

	readLatestEvaluationsQuery = `
		SELECT id, expression, expression_hash, postfix, result, error_kind, error_text, evaluated_at
		  FROM evaluations
		 ORDER BY evaluated_at DESC
		 LIMIT $1
`

	// Delete older records from evaluations table
	deleteOldEvaluationsPostgres = `
		DELETE
		  FROM evaluations
		 WHERE evaluated_at < NOW() - $1::INTERVAL
`

	deleteOldEvaluationsSQLite = `
		DELETE
		  FROM evaluations
		 WHERE evaluated_at < datetime('now', '-' || $1)
`

	// Display older records from evaluations table
	displayOldEvaluationsPostgres = `
		SELECT id, expression, evaluated_at
		  FROM evaluations
		 WHERE evaluated_at < NOW() - $1::INTERVAL
		 ORDER BY evaluated_at
`

	displayOldEvaluationsSQLite = `
		SELECT id, expression, evaluated_at
		  FROM evaluations
		 WHERE evaluated_at < datetime('now', '-' || $1)
		 ORDER BY evaluated_at
`
)

// NewStorage function creates and initializes a new instance of Storage interface
func NewStorage(configuration conf.StorageConfiguration) (*DBStorage, error) {
	driverType, driverName, dataSource, err := initAndGetDriver(configuration)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf(
		"Making connection to data storage, driver=%s",
		driverName,
	)

	connection, err := sql.Open(driverName, dataSource)
	if err != nil {
		log.Error().Err(err).Msg("Can not connect to data storage")
		return nil, err
	}

	storage := NewFromConnection(connection, driverType)
	storage.logSQLQueries = configuration.LogSQLQueries
	return storage, nil
}

// NewFromConnection function creates and initializes a new instance of Storage interface from prepared connection
func NewFromConnection(connection *sql.DB, dbDriverType types.DBDriver) *DBStorage {
	return &DBStorage{
		connection:   connection,
		dbDriverType: dbDriverType,
	}
}

// initAndGetDriver checks if the configured driver is supported and returns
// driver type, driver name, dataSource and error
func initAndGetDriver(configuration conf.StorageConfiguration) (driverType types.DBDriver, driverName, dataSource string, err error) {
	driverName = configuration.Driver

	switch driverName {
	case "sqlite3":
		driverType = types.DBDriverSQLite3
		dataSource = configuration.SQLiteDataSource
	case "postgres":
		driverType = types.DBDriverPostgres
		dataSource = fmt.Sprintf(
			"postgresql://%v:%v@%v:%v/%v?%v",
			configuration.PGUsername,
			configuration.PGPassword,
			configuration.PGHost,
			configuration.PGPort,
			configuration.PGDBName,
			configuration.PGParams,
		)
	default:
		err = fmt.Errorf("driver %v is not supported", driverName)
		return
	}

	return
}

// Close method closes the connection to database. Needs to be called at the end of application lifecycle.
func (storage DBStorage) Close() error {
	log.Info().Msg("Closing connection to data storage")
	if storage.connection != nil {
		err := storage.connection.Close()
		if err != nil {
			log.Error().Err(err).Msg("Can not close connection to data storage")
			return err
		}
	}
	return nil
}

// CreateTables method creates the evaluations table and its index when they
// do not exist yet
func (storage DBStorage) CreateTables() error {
	for _, statement := range []string{createEvaluationsTable, createExpressionHashIndex} {
		storage.logStatement(statement)
		if _, err := storage.connection.Exec(statement); err != nil {
			log.Error().Err(err).Str("statement", getPrintableStatement(statement)).Msg("Unable to create table")
			return err
		}
	}
	return nil
}

// WriteEvaluationRecord method writes one evaluation record into the table
// `evaluations`. Result of failed evaluation is stored as NULL, NaN result
// is stored as NULL too because SQLite can not keep it.
func (storage DBStorage) WriteEvaluationRecord(record types.EvaluationRecord) error {
	var result sql.NullFloat64
	if !record.Failed() && !math.IsNaN(float64(record.Result)) {
		result = sql.NullFloat64{Float64: float64(record.Result), Valid: true}
	}

	storage.logStatement(insertEvaluationStatement)
	_, err := storage.connection.Exec(insertEvaluationStatement,
		string(record.ID),
		record.Expression,
		int64(record.Hash),
		record.Postfix,
		result,
		record.ErrorKind,
		record.ErrorText,
		time.Time(record.EvaluatedAt))
	if err != nil {
		log.Err(err).
			Str(EvaluationIDMessage, string(record.ID)).
			Str(ExpressionMessage, record.Expression).
			Msg("Unable to write record into evaluations table")
		return err
	}
	return nil
}

// ReadEvaluationsByHash method reads all previous evaluations of expressions
// with the given hash, the most recent first
func (storage DBStorage) ReadEvaluationsByHash(hash types.ExpressionHash) ([]types.EvaluationRecord, error) {
	storage.logStatement(readEvaluationsByHashQuery)
	rows, err := storage.connection.Query(readEvaluationsByHashQuery, int64(hash))
	if err != nil {
		return []types.EvaluationRecord{}, err
	}
	return scanEvaluations(rows)
}

// ReadLatestEvaluations method reads up to limit most recent evaluations
func (storage DBStorage) ReadLatestEvaluations(limit int) ([]types.EvaluationRecord, error) {
	storage.logStatement(readLatestEvaluationsQuery)
	rows, err := storage.connection.Query(readLatestEvaluationsQuery, limit)
	if err != nil {
		return []types.EvaluationRecord{}, err
	}
	return scanEvaluations(rows)
}

// scanEvaluations reads all evaluation records from the result set and closes
// it afterwards
func scanEvaluations(rows *sql.Rows) ([]types.EvaluationRecord, error) {
	var records = make([]types.EvaluationRecord, 0)

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	for rows.Next() {
		var (
			id          string
			expression  string
			hash        int64
			postfix     sql.NullString
			result      sql.NullFloat64
			errorKind   sql.NullString
			errorText   sql.NullString
			evaluatedAt time.Time
		)

		if err := rows.Scan(&id, &expression, &hash, &postfix, &result,
			&errorKind, &errorText, &evaluatedAt); err != nil {
			return records, err
		}
		record := types.EvaluationRecord{
			ID:          types.EvaluationID(id),
			Expression:  expression,
			Hash:        types.ExpressionHash(uint64(hash)),
			Postfix:     postfix.String,
			Result:      float32(result.Float64),
			ErrorKind:   errorKind.String,
			ErrorText:   errorText.String,
			EvaluatedAt: types.Timestamp(evaluatedAt),
		}
		if !record.Failed() {
			// NULL result of successful evaluation is NaN
			if !result.Valid {
				record.Result = float32(math.NaN())
			}
			record.DivisionByZero = postfixDividesByZero(record.Postfix)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// postfixDividesByZero checks stored postfix form for division by zero
func postfixDividesByZero(postfix string) bool {
	tokens, err := calc.Tokenize(postfix)
	if err != nil {
		return false
	}
	return calc.DividesByZero(tokens)
}

// logStatement logs SQL statement when it is enabled in configuration
func (storage DBStorage) logStatement(statement string) {
	if storage.logSQLQueries {
		log.Info().Str("statement", getPrintableStatement(statement)).Msg("SQL statement")
	}
}

// getPrintableStatement returns SQL statement in form prepared for logging
func getPrintableStatement(sqlStatement string) string {
	s := strings.ReplaceAll(sqlStatement, "\n", " ")
	s = strings.ReplaceAll(s, "\t", "")
	return strings.Trim(s, " ")
}

// oldEvaluationsStatements returns statements used to display and to delete
// evaluations older than given max age for the actual database driver
func (storage DBStorage) oldEvaluationsStatements() (display, cleanup string) {
	if storage.dbDriverType == types.DBDriverSQLite3 {
		return displayOldEvaluationsSQLite, deleteOldEvaluationsSQLite
	}
	return displayOldEvaluationsPostgres, deleteOldEvaluationsPostgres
}

// PrintOldEvaluationsForCleanup method prints all evaluations older than
// specified relative time
func (storage DBStorage) PrintOldEvaluationsForCleanup(maxAge string) error {
	query, _ := storage.oldEvaluationsStatements()

	log.Info().
		Str(MaxAgeAttribute, maxAge).
		Str("select statement", getPrintableStatement(query)).
		Msg("PrintOldEvaluationsForCleanup operation")

	storage.logStatement(query)
	rows, err := storage.connection.Query(query, maxAge)
	if err != nil {
		return err
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	// used to compute a real record age
	now := time.Now()

	// iterate over all old records
	for rows.Next() {
		var (
			id          string
			expression  string
			evaluatedAt time.Time
		)

		if err := rows.Scan(&id, &expression, &evaluatedAt); err != nil {
			return err
		}

		// compute the real record age
		age := int(math.Ceil(now.Sub(evaluatedAt).Hours() / 24)) // in days

		log.Info().
			Str(EvaluationIDMessage, id).
			Str(ExpressionMessage, expression).
			Str(EvaluatedAtMessage, evaluatedAt.Format(time.RFC3339)).
			Int(AgeMessage, age).
			Msg("Old evaluation from `evaluations` table")
	}
	return rows.Err()
}

// CleanupOldEvaluations method deletes all evaluations older than specified
// relative time. Number of deleted rows is returned.
func (storage DBStorage) CleanupOldEvaluations(maxAge string) (int, error) {
	_, statement := storage.oldEvaluationsStatements()

	log.Info().
		Str(MaxAgeAttribute, maxAge).
		Str(DeleteStatement, getPrintableStatement(statement)).
		Msg("Cleanup operation for evaluations")

	// perform the SQL statement
	storage.logStatement(statement)
	result, err := storage.connection.Exec(statement, maxAge)
	if err != nil {
		return 0, err
	}

	// read number of affected (deleted) rows
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// NoopStorage is an implementation of Storage interface used when storage is
// disabled in configuration. Nothing is persisted and nothing is read back.
type NoopStorage struct{}

// Close method does nothing
func (NoopStorage) Close() error {
	return nil
}

// CreateTables method does nothing
func (NoopStorage) CreateTables() error {
	return nil
}

// WriteEvaluationRecord method drops the record
func (NoopStorage) WriteEvaluationRecord(types.EvaluationRecord) error {
	return nil
}

// ReadEvaluationsByHash method returns no records
func (NoopStorage) ReadEvaluationsByHash(types.ExpressionHash) ([]types.EvaluationRecord, error) {
	return []types.EvaluationRecord{}, nil
}

// ReadLatestEvaluations method returns no records
func (NoopStorage) ReadLatestEvaluations(int) ([]types.EvaluationRecord, error) {
	return []types.EvaluationRecord{}, nil
}

// PrintOldEvaluationsForCleanup method refuses to work without storage
func (NoopStorage) PrintOldEvaluationsForCleanup(string) error {
	return &StorageError{Msg: storageDisabledMessage}
}

// CleanupOldEvaluations method refuses to work without storage
func (NoopStorage) CleanupOldEvaluations(string) (int, error) {
	return 0, &StorageError{Msg: storageDisabledMessage}
}
