package redact

import (
	"bytes"
	"fmt"
	"strconv"
)

type operandKind int

const (
	operandNumber operandKind = iota
	operandName
	operandString
	operandOther // arrays, dictionaries, booleans, null
)

type operand struct {
	kind       operandKind
	num        float64
	start, end int
}

// operation is one operator with its operands. start and end delimit the
// whole operation, operands included, in the source stream.
type operation struct {
	op         string
	operands   []operand
	start, end int
}

// lexer splits a content stream into operations, keeping byte offsets so a
// stream can be rewritten without re-serializing untouched operations.
type lexer struct {
	data []byte
	pos  int
}

func parseOperations(data []byte) ([]operation, error) {
	l := &lexer{data: data}
	var ops []operation
	var stack []operand
	opStart := -1

	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			break
		}
		start := l.pos
		if opStart < 0 {
			opStart = start
		}
		c := l.data[l.pos]

		if isRegular(c) && !isNumberStart(c) {
			word := l.word()
			switch word {
			case "true", "false", "null":
				stack = append(stack, operand{kind: operandOther, start: start, end: l.pos})
				continue
			case "BI":
				if err := l.inlineImage(); err != nil {
					return nil, fmt.Errorf("inline image at %d: %w", start, err)
				}
			}
			ops = append(ops, operation{op: word, operands: stack, start: opStart, end: l.pos})
			stack, opStart = nil, -1
			continue
		}

		o, err := l.operand()
		if err != nil {
			return nil, fmt.Errorf("at %d: %w", start, err)
		}
		stack = append(stack, o)
	}
	return ops, nil
}

func (l *lexer) operand() (operand, error) {
	start := l.pos
	c := l.data[l.pos]
	switch {
	case isNumberStart(c):
		for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
			l.pos++
		}
		v, err := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
		if err != nil {
			return operand{}, fmt.Errorf("invalid number %q", l.data[start:l.pos])
		}
		return operand{kind: operandNumber, num: v, start: start, end: l.pos}, nil
	case c == '/':
		l.pos++
		for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
			l.pos++
		}
		return operand{kind: operandName, start: start, end: l.pos}, nil
	case c == '(':
		if err := l.literalString(); err != nil {
			return operand{}, err
		}
		return operand{kind: operandString, start: start, end: l.pos}, nil
	case c == '<' && l.peek(1) == '<':
		if err := l.nested('<', '>', 2); err != nil {
			return operand{}, err
		}
		return operand{kind: operandOther, start: start, end: l.pos}, nil
	case c == '<':
		end := bytes.IndexByte(l.data[l.pos:], '>')
		if end < 0 {
			return operand{}, fmt.Errorf("unterminated hex string")
		}
		l.pos += end + 1
		return operand{kind: operandString, start: start, end: l.pos}, nil
	case c == '[':
		if err := l.nested('[', ']', 1); err != nil {
			return operand{}, err
		}
		return operand{kind: operandOther, start: start, end: l.pos}, nil
	}
	return operand{}, fmt.Errorf("unexpected character %q", c)
}

// nested skips a bracketed object, honouring strings inside it. width is
// the length of the opening and closing delimiter (2 for dictionaries).
func (l *lexer) nested(open, close byte, width int) error {
	depth := 0
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '(':
			if err := l.literalString(); err != nil {
				return err
			}
			continue
		case c == open && (width == 1 || l.peek(1) == open):
			depth++
			l.pos += width
			continue
		case c == close && (width == 1 || l.peek(1) == close):
			depth--
			l.pos += width
			if depth == 0 {
				return nil
			}
			continue
		case width == 2 && c == '<':
			// hex string inside a dictionary
			end := bytes.IndexByte(l.data[l.pos:], '>')
			if end < 0 {
				return fmt.Errorf("unterminated hex string")
			}
			l.pos += end + 1
			continue
		}
		l.pos++
	}
	return fmt.Errorf("unterminated %q", open)
}

func (l *lexer) literalString() error {
	depth := 0
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return nil
			}
		}
		l.pos++
	}
	return fmt.Errorf("unterminated string")
}

// inlineImage skips the dictionary and data of an inline image, leaving
// pos just past EI.
func (l *lexer) inlineImage() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return fmt.Errorf("missing ID")
		}
		if isRegular(l.data[l.pos]) && !isNumberStart(l.data[l.pos]) {
			if w := l.word(); w == "ID" {
				break
			}
			continue
		}
		if _, err := l.operand(); err != nil {
			return err
		}
	}
	l.pos++ // single white-space after ID
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] == 'E' && l.data[i+1] == 'I' && isSpace(l.data[i-1]) &&
			(i+2 == len(l.data) || isSpace(l.data[i+2]) || isDelimiter(l.data[i+2])) {
			l.pos = i + 2
			return nil
		}
	}
	return fmt.Errorf("missing EI")
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		l.pos++
	}
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isSpace(c) && !isDelimiter(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}
