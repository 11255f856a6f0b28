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
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/RedHatInsights/expression-evaluator-service/calc"
)

// commentPrefix starts lines that are ignored in input files
const commentPrefix = "#"

// ReadExpressions function reads expressions from the given reader, one
// expression per line. Lines are trimmed, empty lines and comments are
// skipped. Expressions longer than maxLength bytes are refused with the
// number of the input line, zero or negative maxLength means no limit.
func ReadExpressions(reader io.Reader, maxLength int) ([]string, error) {
	var expressions []string

	scanner := bufio.NewScanner(reader)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if err := checkExpressionLength(line, lineNumber, maxLength); err != nil {
			return nil, err
		}
		expressions = append(expressions, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, &InputError{Msg: err.Error()}
	}

	return expressions, nil
}

// CheckCharacterSet function checks that the expression contains only
// characters known to the tokenizer. The first unknown character is
// reported with its byte position.
func CheckCharacterSet(text string) error {
	for position, r := range text {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case strings.ContainsRune("+-*/()", r):
		case unicode.IsSpace(r):
		default:
			return &calc.InvalidCharacterError{Char: r, Position: position}
		}
	}
	return nil
}

// checkExpressionLength refuses expression longer than maxLength bytes
func checkExpressionLength(expression string, lineNumber, maxLength int) error {
	if maxLength > 0 && len(expression) > maxLength {
		return &InputError{
			Line: lineNumber,
			Msg:  fmt.Sprintf("expression is %d bytes long, limit is %d", len(expression), maxLength),
		}
	}
	return nil
}
