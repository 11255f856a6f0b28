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

import "fmt"

// StorageError represents an error related to storage initialization or
// operations performed on storage
type StorageError struct {
	Msg string
}

func (e *StorageError) Error() string {
	return e.Msg
}

// KafkaBrokerError represent an error related to Kafka initialization
type KafkaBrokerError struct{}

func (e *KafkaBrokerError) Error() string {
	return "KafkaBrokerError"
}

// InputError represents a problem with expressions provided on input (not
// a problem with the expression syntax itself). Line is the number of the
// input line including comments and empty lines, zero when not known.
type InputError struct {
	Line int
	Msg  string
}

func (e *InputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("input line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}
