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

package mocks

import (
	types "github.com/RedHatInsights/expression-evaluator-service/types"
	mock "github.com/stretchr/testify/mock"
)

// Storage is a mock type for the Storage type
type Storage struct {
	mock.Mock
}

// Close provides a mock function with given fields:
func (_m *Storage) Close() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CreateTables provides a mock function with given fields:
func (_m *Storage) CreateTables() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// WriteEvaluationRecord provides a mock function with given fields: record
func (_m *Storage) WriteEvaluationRecord(record types.EvaluationRecord) error {
	ret := _m.Called(record)

	var r0 error
	if rf, ok := ret.Get(0).(func(types.EvaluationRecord) error); ok {
		r0 = rf(record)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// ReadEvaluationsByHash provides a mock function with given fields: hash
func (_m *Storage) ReadEvaluationsByHash(hash types.ExpressionHash) ([]types.EvaluationRecord, error) {
	ret := _m.Called(hash)

	var r0 []types.EvaluationRecord
	if rf, ok := ret.Get(0).(func(types.ExpressionHash) []types.EvaluationRecord); ok {
		r0 = rf(hash)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.EvaluationRecord)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(types.ExpressionHash) error); ok {
		r1 = rf(hash)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadLatestEvaluations provides a mock function with given fields: limit
func (_m *Storage) ReadLatestEvaluations(limit int) ([]types.EvaluationRecord, error) {
	ret := _m.Called(limit)

	var r0 []types.EvaluationRecord
	if rf, ok := ret.Get(0).(func(int) []types.EvaluationRecord); ok {
		r0 = rf(limit)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.EvaluationRecord)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(int) error); ok {
		r1 = rf(limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PrintOldEvaluationsForCleanup provides a mock function with given fields: maxAge
func (_m *Storage) PrintOldEvaluationsForCleanup(maxAge string) error {
	ret := _m.Called(maxAge)
	return ret.Error(0)
}

// CleanupOldEvaluations provides a mock function with given fields: maxAge
func (_m *Storage) CleanupOldEvaluations(maxAge string) (int, error) {
	ret := _m.Called(maxAge)
	return ret.Int(0), ret.Error(1)
}
