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

// Evaluate folds postfix token sequence into one value. The most recently
// pushed operand is the right-hand side of an operator.
func Evaluate(postfix []Token) (float32, error) {
	return fold(postfix, nil)
}

// DividesByZero reports whether evaluation of the postfix sequence applies
// Divide to a zero right operand at any step. Sequences that can not be
// evaluated report false.
func DividesByZero(postfix []Token) bool {
	divided := false
	_, err := fold(postfix, func(op Operator, _, right float32) {
		if op == Divide && right == 0 {
			divided = true
		}
	})
	return err == nil && divided
}

// fold evaluates postfix sequence and calls visit, when set, before each
// operator is applied
func fold(postfix []Token, visit func(op Operator, left, right float32)) (float32, error) {
	stack := make([]float32, 0, len(postfix)/2+1)

	for _, token := range postfix {
		switch token.Kind {
		case Number:
			stack = append(stack, token.Value)

		case OperatorToken:
			if len(stack) < 2 {
				return 0, &MissingOperandError{
					Operator: token.Operator,
					Position: token.Position,
				}
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			if visit != nil {
				visit(token.Operator, left, right)
			}
			stack = append(stack, token.Operator.Apply(left, right))

		default:
			// parenthesis never appear in valid postfix sequence
			return 0, &MalformedExpressionError{Operands: len(stack)}
		}
	}

	if len(stack) != 1 {
		return 0, &MalformedExpressionError{Operands: len(stack)}
	}

	return stack[0], nil
}

// EvaluateExpression tokenizes, converts and evaluates given expression
func EvaluateExpression(text string) (float32, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return 0, err
	}

	postfix, err := ToPostfix(tokens)
	if err != nil {
		return 0, err
	}

	return Evaluate(postfix)
}
