package sparql

import (
	"strings"
)

var (
	queryForms  = []string{"SELECT", "ASK", "CONSTRUCT", "DESCRIBE"}
	updateForms = []string{"INSERT", "DELETE", "DROP", "CLEAR", "CREATE", "LOAD", "COPY", "MOVE", "ADD", "WITH"}
)

// ValidateQuery performs a structural check of a read query: a recognised
// query form and balanced delimiters. It is not a SPARQL parser; the store
// remains the authority on syntax.
func ValidateQuery(q string) error {
	return validate("query", q, queryForms)
}

// ValidateUpdate is ValidateQuery for update requests.
func ValidateUpdate(u string) error {
	return validate("update", u, updateForms)
}

func validate(kind, text string, forms []string) error {
	body := stripPrologue(text)
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Kind: kind, Reason: "empty " + kind}
	}
	first := strings.ToUpper(firstWord(body))
	if first == "" {
		return &ValidationError{Kind: kind, Reason: "no operation after prologue"}
	}
	known := false
	for _, f := range forms {
		if first == f {
			known = true
			break
		}
	}
	if !known {
		return &ValidationError{Kind: kind, Reason: "unexpected keyword " + first}
	}
	if reason := checkBalance(text); reason != "" {
		return &ValidationError{Kind: kind, Reason: reason}
	}
	return nil
}

// stripPrologue drops leading PREFIX/BASE declarations and comments.
func stripPrologue(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "#"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case hasKeyword(s, "PREFIX"), hasKeyword(s, "BASE"):
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return s
			}
			s = s[end+1:]
		default:
			return s
		}
	}
}

func hasKeyword(s, kw string) bool {
	if len(s) < len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return false
	}
	return len(s) == len(kw) || s[len(kw)] == ' ' || s[len(kw)] == '\t' || s[len(kw)] == '\n' || s[len(kw)] == '\r'
}

func firstWord(s string) string {
	end := strings.IndexAny(s, " \t\r\n{(*")
	if end < 0 {
		return s
	}
	return s[:end]
}

// checkBalance verifies {} and () nesting outside string literals, IRIs and
// comments.
func checkBalance(s string) string {
	var (
		stack []byte
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case '<':
			if end := strings.IndexAny(s[i+1:], "> \n\t"); end >= 0 && s[i+1+end] == '>' {
				i += end + 1
			}
		case '{', '(':
			stack = append(stack, c)
		case '}', ')':
			open := byte('{')
			if c == ')' {
				open = '('
			}
			if len(stack) == 0 || stack[len(stack)-1] != open {
				return "unbalanced '" + string(c) + "'"
			}
			stack = stack[:len(stack)-1]
		}
	}
	if quote != 0 {
		return "unterminated string literal"
	}
	if len(stack) > 0 {
		return "unclosed '" + string(stack[len(stack)-1]) + "'"
	}
	return ""
}
