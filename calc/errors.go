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

package calc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors returned by the pipeline
type ErrorKind int

// All error kinds
const (
	NoError ErrorKind = iota
	InvalidCharacter
	MalformedNumber
	UnbalancedParentheses
	MissingOperand
	MalformedExpression
	// UnknownError is used for errors not produced by this package
	UnknownError
)

// String returns name of error kind
func (kind ErrorKind) String() string {
	switch kind {
	case NoError:
		return "NoError"
	case InvalidCharacter:
		return "InvalidCharacter"
	case MalformedNumber:
		return "MalformedNumber"
	case UnbalancedParentheses:
		return "UnbalancedParentheses"
	case MissingOperand:
		return "MissingOperand"
	case MalformedExpression:
		return "MalformedExpression"
	}
	return "UnknownError"
}

// InvalidCharacterError is returned by tokenizer for any character that is
// not a digit, decimal point, operator, parenthesis or whitespace
type InvalidCharacterError struct {
	Char     rune
	Position int
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("invalid character %q at position %d", e.Char, e.Position)
}

// MalformedNumberError is returned by tokenizer when numeric literal can not
// be parsed
type MalformedNumberError struct {
	Literal  string
	Position int
}

func (e *MalformedNumberError) Error() string {
	return fmt.Sprintf("malformed number %q at position %d", e.Literal, e.Position)
}

// UnbalancedParenthesesError is returned by converter for unmatched '(' or ')'
type UnbalancedParenthesesError struct {
	Position int
}

func (e *UnbalancedParenthesesError) Error() string {
	return fmt.Sprintf("unbalanced parentheses at position %d", e.Position)
}

// MissingOperandError is returned by evaluator when operator is applied to
// less than two operands
type MissingOperandError struct {
	Operator Operator
	Position int
}

func (e *MissingOperandError) Error() string {
	return fmt.Sprintf("missing operand for operator '%v' at position %d", e.Operator, e.Position)
}

// MalformedExpressionError is returned by evaluator when the operand stack
// does not hold exactly one value at the end of evaluation
type MalformedExpressionError struct {
	Operands int
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed expression: %d operands left on stack, expected 1", e.Operands)
}

// ErrorKindOf returns kind of error returned by Tokenize, ToPostfix,
// Evaluate or EvaluateExpression
func ErrorKindOf(err error) ErrorKind {
	var (
		invalidCharacter      *InvalidCharacterError
		malformedNumber       *MalformedNumberError
		unbalancedParentheses *UnbalancedParenthesesError
		missingOperand        *MissingOperandError
		malformedExpression   *MalformedExpressionError
	)

	switch {
	case err == nil:
		return NoError
	case errors.As(err, &invalidCharacter):
		return InvalidCharacter
	case errors.As(err, &malformedNumber):
		return MalformedNumber
	case errors.As(err, &unbalancedParentheses):
		return UnbalancedParentheses
	case errors.As(err, &missingOperand):
		return MissingOperand
	case errors.As(err, &malformedExpression):
		return MalformedExpression
	}
	return UnknownError
}
