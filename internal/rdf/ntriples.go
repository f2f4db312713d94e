package rdf

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseNTriples reads an N-Triples document. Blank lines and comments are
// skipped; duplicates collapse.
func ParseNTriples(r io.Reader) (TripleSet, error) {
	set := make(TripleSet)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		t, err := ParseTriple(text)
		if err != nil {
			if se, ok := err.(*SyntaxError); ok {
				se.Line = line
			}
			return nil, err
		}
		set.Add(t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// ParseTriple parses a single N-Triples statement, including the final '.'.
func ParseTriple(s string) (Triple, error) {
	p := &termParser{src: s}

	var terms [3]Term
	for i := range terms {
		p.skipSpace()
		t, err := p.term()
		if err != nil {
			return Triple{}, err
		}
		terms[i] = t
	}
	p.skipSpace()
	if !p.consume('.') {
		return Triple{}, &SyntaxError{Msg: "missing statement terminator '.'"}
	}
	p.skipSpace()
	if !p.eof() && p.peek() != '#' {
		return Triple{}, &SyntaxError{Msg: "trailing content after '.'"}
	}

	t := NewTriple(terms[0], terms[1], terms[2])
	if !t.Valid() {
		return Triple{}, &SyntaxError{Msg: "invalid triple " + t.String()}
	}
	return t, nil
}

// ParseTerm parses one N-Triples term with nothing following it.
func ParseTerm(s string) (Term, error) {
	p := &termParser{src: strings.TrimSpace(s)}
	t, err := p.term()
	if err != nil {
		return Term{}, err
	}
	if !p.eof() {
		return Term{}, &SyntaxError{Msg: "trailing content after term"}
	}
	return t, nil
}

type termParser struct {
	src string
	pos int
}

func (p *termParser) eof() bool { return p.pos >= len(p.src) }

func (p *termParser) peek() byte { return p.src[p.pos] }

func (p *termParser) consume(c byte) bool {
	if !p.eof() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *termParser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *termParser) term() (Term, error) {
	if p.eof() {
		return Term{}, &SyntaxError{Msg: "unexpected end of input"}
	}
	switch c := p.peek(); {
	case c == '<':
		iri, err := p.iri()
		if err != nil {
			return Term{}, err
		}
		return NewIRI(iri), nil
	case c == '_':
		return p.blank()
	case c == '"':
		return p.literal()
	default:
		return Term{}, &SyntaxError{Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
	}
}

func (p *termParser) iri() (string, error) {
	p.pos++ // '<'
	end := strings.IndexByte(p.src[p.pos:], '>')
	if end < 0 {
		return "", &SyntaxError{Msg: "unterminated IRI"}
	}
	v := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	if v == "" {
		return "", &SyntaxError{Msg: "empty IRI"}
	}
	return v, nil
}

func (p *termParser) blank() (Term, error) {
	if !strings.HasPrefix(p.src[p.pos:], "_:") {
		return Term{}, &SyntaxError{Msg: "malformed blank node"}
	}
	p.pos += 2
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '.' && (p.pos+1 == len(p.src) || p.src[p.pos+1] == ' ' || p.src[p.pos+1] == '\t') {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return Term{}, &SyntaxError{Msg: "empty blank node label"}
	}
	return NewBlankNode(p.src[start:p.pos]), nil
}

func (p *termParser) literal() (Term, error) {
	p.pos++ // opening quote
	var b strings.Builder
	closed := false
	for !p.eof() {
		c := p.peek()
		if c == '"' {
			p.pos++
			closed = true
			break
		}
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
			continue
		}
		p.pos++
		if p.eof() {
			return Term{}, &SyntaxError{Msg: "dangling escape in literal"}
		}
		esc := p.peek()
		p.pos++
		switch esc {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case '"', '\'', '\\':
			b.WriteByte(esc)
		case 'u', 'U':
			n := 4
			if esc == 'U' {
				n = 8
			}
			if p.pos+n > len(p.src) {
				return Term{}, &SyntaxError{Msg: "short unicode escape"}
			}
			cp, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
			if err != nil {
				return Term{}, &SyntaxError{Msg: "bad unicode escape"}
			}
			b.WriteRune(rune(cp))
			p.pos += n
		default:
			return Term{}, &SyntaxError{Msg: "unknown escape \\" + string(esc)}
		}
	}
	if !closed {
		return Term{}, &SyntaxError{Msg: "unterminated literal"}
	}

	var lang, datatype string
	switch {
	case p.consume('@'):
		start := p.pos
		for !p.eof() && (isAlnum(p.peek()) || p.peek() == '-') {
			p.pos++
		}
		lang = p.src[start:p.pos]
		if lang == "" {
			return Term{}, &SyntaxError{Msg: "empty language tag"}
		}
	case strings.HasPrefix(p.src[p.pos:], "^^"):
		p.pos += 2
		if p.eof() || p.peek() != '<' {
			return Term{}, &SyntaxError{Msg: "datatype must be an IRI"}
		}
		dt, err := p.iri()
		if err != nil {
			return Term{}, err
		}
		datatype = dt
	}
	return NewLiteral(b.String(), lang, datatype), nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
