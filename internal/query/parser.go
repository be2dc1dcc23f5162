package query

import (
	"strings"

	"github.com/standardbeagle/codeprobe/internal/tokenizer"
)

// parser is a recursive-descent parser over the token stream. Grammar
// (spec.md §4.2):
//
//	Query   := OrExpr
//	OrExpr  := AndExpr ( 'OR' AndExpr )*
//	AndExpr := Factor ( ('AND'|' '|'+Term'|'-Term') Factor )*
//	Factor  := '(' Query ')' | PrefixedTerm
//	PrefixedTerm := ['+'|'-'] Primary
//	Primary := QuotedString | [Field ':'] (QuotedString | Identifier)
//
// Implicit whitespace-separated combination is OR (standard Elasticsearch
// behaviour); an explicit AND, or a leading +/- prefix on the next factor,
// forces AND instead.
type parser struct {
	tokens []token
	pos    int
}

func newParser(tokens []token) *parser {
	return &parser{tokens: tokens}
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) expect(kind tokenKind) error {
	t, ok := p.peek()
	if !ok {
		return &ParseError{Kind: ErrUnexpectedEOF}
	}
	if t.kind != kind {
		return &ParseError{Kind: ErrUnexpectedToken, Token: t.String()}
	}
	p.pos++
	return nil
}

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOrExpr()
}

func (p *parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			break
		}
		p.pos++
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAndExpr() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok {
			break
		}
		switch t.kind {
		case tokAnd:
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = &And{Left: left, Right: right}
		case tokOr:
			return left, nil
		case tokPlus, tokMinus:
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = &And{Left: left, Right: right}
		case tokIdent, tokQuoted, tokLParen:
			right, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			left = &Or{Left: left, Right: right}
		default:
			return left, nil
		}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if t, ok := p.peek(); ok && t.kind == tokLParen {
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parsePrefixedTerm()
}

func (p *parser) parsePrefixedTerm() (Expr, error) {
	required, excluded := false, false
	if t, ok := p.peek(); ok {
		switch t.kind {
		case tokPlus:
			required = true
			p.pos++
		case tokMinus:
			excluded = true
			p.pos++
		}
	}

	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	term, ok := primary.(*Term)
	if !ok {
		return primary, nil
	}

	term.Required = required
	term.Excluded = excluded

	if term.Field != "" {
		// Field values (file:, ext:, lang:, ...) are literal selectors,
		// never run through the content tokenizer.
		return term, nil
	}

	if term.Exact || term.Excluded {
		for _, kw := range term.Keywords {
			tokenizer.AddSpecialCase(kw)
		}
	} else {
		expanded := make([]string, 0, len(term.Keywords))
		for _, kw := range term.Keywords {
			for _, tok := range tokenizer.Tokenize(kw) {
				if tok != "" {
					expanded = append(expanded, tok)
				}
			}
		}
		term.Keywords = expanded
	}

	return term, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t, ok := p.peek()
	if !ok {
		return nil, &ParseError{Kind: ErrUnexpectedEOF}
	}

	switch t.kind {
	case tokQuoted:
		p.pos++
		return &Term{Keywords: []string{t.text}, Exact: true}, nil
	case tokIdent:
		p.pos++
		first := t.text
		if nt, ok := p.peek(); ok && nt.kind == tokColon {
			p.pos++
			if vt, ok := p.peek(); ok {
				switch vt.kind {
				case tokIdent:
					p.pos++
					return &Term{Keywords: []string{vt.text}, Field: strings.ToLower(first)}, nil
				case tokQuoted:
					p.pos++
					return &Term{Keywords: []string{vt.text}, Field: strings.ToLower(first), Exact: true}, nil
				}
			}
			return &Term{Keywords: nil, Field: strings.ToLower(first)}, nil
		}
		return &Term{Keywords: []string{first}}, nil
	default:
		return nil, &ParseError{Kind: ErrUnexpectedToken, Token: t.String()}
	}
}

// parseQuery parses input into an Expr tree. If exact is true the whole
// query string is taken verbatim as a single exact Term, bypassing the
// grammar entirely (§4.2 exact mode).
func parseQuery(input string, exact bool) (Expr, error) {
	if exact {
		return &Term{Keywords: []string{input}, Exact: true}, nil
	}

	tokens, err := tokenize(input)
	if err != nil {
		return fallbackFromCleanedInput(input)
	}

	p := newParser(tokens)
	expr, err := p.parseExpr()
	if err != nil {
		return fallbackFromIdents(tokens)
	}
	return expr, nil
}

// fallbackFromCleanedInput implements the best-effort recovery of §4.2:
// strip to alphanumeric/whitespace/._ and build a single Term of lowercase
// whitespace-split words.
func fallbackFromCleanedInput(input string) (Expr, error) {
	var sb strings.Builder
	for _, c := range input {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == ' ' || c == '\t' || c == '\n' || c == '_' || c == '.' {
			sb.WriteRune(c)
		}
	}
	cleaned := strings.TrimSpace(sb.String())
	if cleaned == "" {
		return nil, &ParseError{Kind: ErrGeneric, Message: "no valid tokens found"}
	}
	words := strings.Fields(cleaned)
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		keywords = append(keywords, strings.ToLower(w))
	}
	return &Term{Keywords: keywords}, nil
}

// fallbackFromIdents recovers from a parse failure by collecting every
// identifier token seen, per §4.2.
func fallbackFromIdents(tokens []token) (Expr, error) {
	var idents []string
	for _, t := range tokens {
		if t.kind == tokIdent {
			idents = append(idents, t.text)
		}
	}
	if len(idents) == 0 {
		return nil, &ParseError{Kind: ErrGeneric, Message: "no valid identifiers found"}
	}
	return &Term{Keywords: idents}, nil
}
