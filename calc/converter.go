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

// ToPostfix converts infix token sequence into postfix notation using the
// shunting-yard algorithm. All operators are left associative, so an
// operator on stack with the same precedence is moved to output first.
//
// Operator stack contains only operators and left parenthesis.
func ToPostfix(tokens []Token) ([]Token, error) {
	output := make([]Token, 0, len(tokens))
	stack := make([]Token, 0, len(tokens)/2+1)

	for _, token := range tokens {
		switch token.Kind {
		case Number:
			output = append(output, token)

		case LeftParen:
			stack = append(stack, token)

		case RightParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.Kind == LeftParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, &UnbalancedParenthesesError{Position: token.Position}
			}

		case OperatorToken:
			precedence := Precedence(token.Operator)
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.Kind != OperatorToken || Precedence(top.Operator) < precedence {
					break
				}
				output = append(output, top)
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, token)
		}
	}

	// flush the rest of operators, any left parenthesis has no pair
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.Kind == LeftParen {
			return nil, &UnbalancedParenthesesError{Position: top.Position}
		}
		output = append(output, top)
	}

	return output, nil
}
