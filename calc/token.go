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

// Package calc contains the arithmetic expression pipeline used by the
// expression evaluator service. Text is first split into tokens, then the
// infix token sequence is converted into postfix (Reverse Polish) notation
// and finally the postfix sequence is folded into a single float32 value.
//
// All functions in this package are pure: they do not log, they do not
// keep any state between calls, and they can be called concurrently.
package calc

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/expression-evaluator-service/calc

import (
	"strconv"
	"strings"
)

// TokenKind represents the type of one token
type TokenKind int

// All token kinds
const (
	// Number is a numeric literal, its value is stored in Token.Value
	Number TokenKind = iota
	// OperatorToken is one of the four binary operators
	OperatorToken
	// LeftParen is the '(' grouping marker
	LeftParen
	// RightParen is the ')' grouping marker
	RightParen
)

// Operator represents one of the supported binary operators
type Operator int

// All supported operators
const (
	Add Operator = iota
	Subtract
	Multiply
	Divide
)

// Token is one item produced by the tokenizer. Only the fields relevant to
// the token kind are set: Value for numbers and Operator for operators.
type Token struct {
	Kind     TokenKind
	Value    float32
	Operator Operator
	// Position is the byte offset of the token in the source text
	Position int
}

// NumberToken constructs a token holding numeric value
func NumberToken(value float32, position int) Token {
	return Token{Kind: Number, Value: value, Position: position}
}

// OperatorTokenFor constructs a token holding given operator
func OperatorTokenFor(op Operator, position int) Token {
	return Token{Kind: OperatorToken, Operator: op, Position: position}
}

// String returns the symbol of the operator
func (op Operator) String() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	}
	return "?"
}

// Precedence returns binding power of the operator. Multiplicative
// operators bind tighter than additive ones.
func Precedence(op Operator) int {
	switch op {
	case Multiply, Divide:
		return 2
	case Add, Subtract:
		return 1
	}
	return 0
}

// Apply computes left op right. Division by zero is not checked, the result
// follows IEEE-754 rules (+Inf, -Inf or NaN).
func (op Operator) Apply(left, right float32) float32 {
	switch op {
	case Add:
		return left + right
	case Subtract:
		return left - right
	case Multiply:
		return left * right
	case Divide:
		return left / right
	}
	panic("unknown operator " + strconv.Itoa(int(op)))
}

// String returns textual representation of token that can be read back by
// Tokenize
func (t Token) String() string {
	switch t.Kind {
	case Number:
		return formatNumber(t.Value)
	case OperatorToken:
		return t.Operator.String()
	case LeftParen:
		return "("
	case RightParen:
		return ")"
	}
	return "?"
}

// Equal compares kind and payload of two tokens, position is ignored
func (t Token) Equal(other Token) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Number:
		return t.Value == other.Value
	case OperatorToken:
		return t.Operator == other.Operator
	}
	return true
}

// FormatTokens prints token sequence with tokens separated by space. Numbers
// are printed in plain decimal notation so the output can be tokenized again.
func FormatTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, token := range tokens {
		parts[i] = token.String()
	}
	return strings.Join(parts, " ")
}

func formatNumber(value float32) string {
	return strconv.FormatFloat(float64(value), 'f', -1, 32)
}
