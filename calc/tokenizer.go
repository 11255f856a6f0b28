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
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// numberLiteral is the only accepted form of numeric literal
var numberLiteral = regexp.MustCompile(`^\d+(\.\d+)?$`)

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.'
}

// Tokenize converts expression text into sequence of tokens. Whitespaces are
// skipped, consecutive digits and decimal points are read as one numeric
// literal. The first invalid character or malformed literal stops the scan.
func Tokenize(text string) ([]Token, error) {
	tokens := make([]Token, 0, len(text))

	for i := 0; i < len(text); {
		c := text[i]

		switch {
		case isNumberChar(c):
			// look ahead for the rest of the literal
			start := i
			for i < len(text) && isNumberChar(text[i]) {
				i++
			}
			token, err := parseNumber(text[start:i], start)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token)
			continue
		case c == '(':
			tokens = append(tokens, Token{Kind: LeftParen, Position: i})
		case c == ')':
			tokens = append(tokens, Token{Kind: RightParen, Position: i})
		case c == '+':
			tokens = append(tokens, OperatorTokenFor(Add, i))
		case c == '-':
			tokens = append(tokens, OperatorTokenFor(Subtract, i))
		case c == '*':
			tokens = append(tokens, OperatorTokenFor(Multiply, i))
		case c == '/':
			tokens = append(tokens, OperatorTokenFor(Divide, i))
		default:
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				return nil, &InvalidCharacterError{Char: r, Position: i}
			}
			i += size
			continue
		}
		i++
	}

	return tokens, nil
}

func parseNumber(literal string, position int) (Token, error) {
	if !numberLiteral.MatchString(literal) {
		return Token{}, &MalformedNumberError{Literal: literal, Position: position}
	}

	// out of range values are reported as error as well
	value, err := strconv.ParseFloat(literal, 32)
	if err != nil {
		return Token{}, &MalformedNumberError{Literal: literal, Position: position}
	}

	return NumberToken(float32(value), position), nil
}
