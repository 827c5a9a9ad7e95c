package fts

import (
	"strings"
	"unicode"
)

var tsOperators = map[string]string{
	"AND": "&",
	"OR":  "|",
}

/*
Compiles the output of ReformatQuery into Postgres to_tsquery syntax.

	foo bar*           -> 'foo' & 'bar':*
	"foo bar" OR baz   -> ('foo' <-> 'bar') | 'baz'
	foo NOT bar        -> 'foo' & ! 'bar'
	NOT bar            -> ! 'bar'

Every lexeme is quoted and operands without an operator between them are
ANDed. NOT negates the operand after it, wherever it appears. Leading,
trailing, or repeated binary operators are dropped, so the result is always a
valid tsquery. An empty result means there is nothing to search for.
*/
func ToTsQuery(sanitized string) string {
	var out []string
	pending := "&"
	negate := false

	addOperand := func(operand string) {
		if operand == "" {
			return
		}
		if len(out) > 0 {
			out = append(out, pending)
		}
		if negate {
			operand = "! " + operand
		}
		out = append(out, operand)
		pending = "&"
		negate = false
	}

	tokens := strings.Fields(sanitized)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if tok == "NOT" {
			negate = true
			continue
		}
		if op, isOp := tsOperators[tok]; isOp {
			if len(out) > 0 {
				pending = op
			}
			continue
		}

		if strings.HasPrefix(tok, `"`) {
			// A phrase runs up to the token that ends with the closing quote.
			words := []string{tok}
			closed := strings.HasSuffix(tok, `"`)
			for !closed && i+1 < len(tokens) {
				i++
				words = append(words, tokens[i])
				closed = strings.HasSuffix(tokens[i], `"`)
			}
			addOperand(phrase(words))
			continue
		}

		addOperand(term(tok))
	}

	return strings.Join(out, " ")
}

func phrase(words []string) string {
	var lexemes []string
	for _, w := range words {
		w = strings.NewReplacer(`"`, "", "*", "").Replace(w)
		if hasWordChars(w) {
			lexemes = append(lexemes, quoteLexeme(w))
		}
	}

	switch len(lexemes) {
	case 0:
		return ""
	case 1:
		return lexemes[0]
	default:
		return "(" + strings.Join(lexemes, " <-> ") + ")"
	}
}

func term(tok string) string {
	tok = stripQuotes(tok)
	prefix := strings.HasSuffix(tok, "*")
	tok = strings.ReplaceAll(tok, "*", "")
	if !hasWordChars(tok) {
		return ""
	}

	lexeme := quoteLexeme(tok)
	if prefix {
		lexeme += ":*"
	}
	return lexeme
}

// ReformatQuery has already removed quotes and backslashes, but escape anyway
// so this never depends on the caller.
func quoteLexeme(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func hasWordChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}) >= 0
}
