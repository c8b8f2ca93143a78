// Package lexer implements Kylu's tokenizer: a stateful cursor that, on
// demand, consumes the first match from a fixed ordered pattern table
// together with its trailing whitespace, producing a single *tree.Tree
// token.
package lexer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/tree"
)

type pattern struct {
	re    *regexp.Regexp
	build func(text string) *tree.Tree
}

func anchored(body string) *regexp.Regexp {
	return regexp.MustCompile(`^(?P<token>` + body + `)(?P<whitespace>[\s]*)`)
}

// table is the ordered, first-match-wins pattern list. Earlier entries
// take priority over later, more general ones (e.g. booleans and Void
// before general symbols, bracket-decorated operators before bare `<`).
var table = []pattern{
	{anchored(`'[^']*'`), func(text string) *tree.Tree { return tree.NewString(strings.Trim(text, "'")) }},
	{anchored(`"[^"]*"`), func(text string) *tree.Tree { return tree.NewString(strings.Trim(text, `"`)) }},
	{anchored(`True|False`), func(text string) *tree.Tree { return tree.NewBoolean(text == "True") }},
	{anchored(`Void`), func(text string) *tree.Tree { return tree.NewVoid() }},
	{anchored(`[A-Za-z][A-Za-z0-9_]*`), func(text string) *tree.Tree { return tree.NewSymbol(text) }},
	{anchored(`\[[!@]\]`), func(text string) *tree.Tree { return tree.NewSymbol(text) }},
	{anchored(`[0-9]+\.?[0-9]*`), func(text string) *tree.Tree {
		n, _ := strconv.ParseFloat(text, 32)
		return tree.NewNumber(float32(n))
	}},

	{anchored(`<\-[=<>+\-*/%^]?`), func(text string) *tree.Tree { return tree.NewOperator(text, 5) }},
	{anchored(`[<>!]=`), func(text string) *tree.Tree { return tree.NewOperator(text, 5) }},

	{anchored(`<!?\^>`), func(text string) *tree.Tree { return tree.NewOperator(text, 3) }},
	{anchored(`<!?\+>`), func(text string) *tree.Tree { return tree.NewOperator(text, 4) }},
	{anchored(`<!?:>`), func(text string) *tree.Tree { return tree.NewOperator(text, 5) }},
	{anchored(`[=<>]`), func(text string) *tree.Tree { return tree.NewOperator(text, 5) }},

	{anchored(`[+\-]`), func(text string) *tree.Tree { return tree.NewOperator(text, 4) }},
	{anchored(`[*/%]`), func(text string) *tree.Tree { return tree.NewOperator(text, 3) }},
	{anchored(`\^`), func(text string) *tree.Tree { return tree.NewOperator(text, 2) }},
	{anchored(`:`), func(text string) *tree.Tree { return tree.NewOperator(text, 1) }},

	{anchored(`[^\s]`), func(text string) *tree.Tree { return tree.NewMisc(text) }},
}

// Tokenizer is the stateful lexing cursor over one source string.
type Tokenizer struct {
	source  string
	index   int
	current *tree.Tree
}

// New creates a Tokenizer over source and primes it with the first token,
// so the parser can always peek the current token.
func New(source string) (*Tokenizer, *kerr.Err) {
	t := &Tokenizer{source: source, current: tree.New(tree.Misc, tree.Span{}, nil)}
	if err := t.Advance(); err != nil {
		return nil, err
	}
	return t, nil
}

// Current returns the most recently lexed token; the parser's lookahead.
func (t *Tokenizer) Current() *tree.Tree {
	return t.current
}

// Advance consumes the next token starting at the end of the current one,
// trying each table entry in order and taking the first match. A match
// consumes both the token body and any trailing whitespace.
func (t *Tokenizer) Advance() *kerr.Err {
	updateIndex := t.current.Span.End
	t.index = updateIndex
	if updateIndex > len(t.source) {
		return kerr.ParseErr(kerr.EndOfFile, "")
	}

	rest := t.source[t.index:]
	if rest == "" {
		return kerr.ParseErr(kerr.EndOfFile, "")
	}
	for _, p := range table {
		loc := p.re.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		tokenText := rest[loc[2]:loc[3]]
		wsLen := loc[5] - loc[4]
		built := p.build(tokenText)
		built.Span = tree.Span{Start: t.index, End: t.index + len(tokenText) + wsLen}
		t.current = built
		return nil
	}
	return kerr.ParseErr(kerr.UnknownToken, "")
}
