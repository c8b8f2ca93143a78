// Package parser implements Kylu's recursive-descent parser: a thin
// dispatch over the next token (parsePrimary), a shunting-yard fold for
// operator expressions (operExpr), and a handful of fixed-shape statement
// parsers (if/loop/obj) that all bottom out in field, the bracketed,
// optionally delimited element-list reader every compound form shares.
//
// The parser's working stack of completed trees is backed by
// github.com/emirpasic/gods's arraystack; each operator expression's own
// operator stack is a plain slice.
package parser

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/lexer"
	"github.com/azhaoli/kylu/tree"
)

// Parser holds the tokenizer cursor and the in-progress tree stack.
type Parser struct {
	tok   *lexer.Tokenizer
	stack *arraystack.Stack
}

func newParser(source string) (*Parser, *kerr.Err) {
	tok, err := lexer.New(source)
	if err != nil {
		return nil, err
	}
	return &Parser{tok: tok, stack: arraystack.New()}, nil
}

// Parse parses a whole source file into a single top-level Field of
// statement trees. The source is wrapped in "{...}$" before tokenizing:
// the braces let parsePrimary's block handling do the work, and the "$"
// sentinel guarantees the lookahead after the closing brace never lands
// exactly on end-of-source.
func Parse(source string) (*tree.Tree, *kerr.Err) {
	p, err := newParser("{" + source + "}$")
	if err != nil {
		return nil, err
	}
	if err := p.parsePrimary(); err != nil {
		return nil, err
	}
	return p.pop(), nil
}

func (p *Parser) push(t *tree.Tree) { p.stack.Push(t) }

func (p *Parser) pop() *tree.Tree {
	v, ok := p.stack.Pop()
	if !ok {
		return tree.NewVoid()
	}
	return v.(*tree.Tree)
}

func (p *Parser) top() *tree.Tree {
	v, ok := p.stack.Peek()
	if !ok {
		return tree.NewVoid()
	}
	return v.(*tree.Tree)
}

func (p *Parser) currentID() (string, string) {
	return p.tok.Current().ID()
}

func (p *Parser) index() int {
	return p.tok.Current().Span.Start
}

// reduce pops the last length elements off the stack (restoring their
// original order) and pushes a single new tree of kind wrapping them.
func (p *Parser) reduce(kind tree.Kind, length int, initIdx int) {
	children := make([]*tree.Tree, length)
	for i := length - 1; i >= 0; i-- {
		children[i] = p.pop()
	}
	p.push(tree.New(kind, tree.Span{Start: initIdx, End: p.index()}, children))
}

func (p *Parser) reduceLoop(variant string, length int, initIdx int) {
	children := make([]*tree.Tree, length)
	for i := length - 1; i >= 0; i-- {
		children[i] = p.pop()
	}
	p.push(tree.NewLoop(variant, tree.Span{Start: initIdx, End: p.index()}, children))
}

// parsePrimary consumes exactly one syntactic unit: an if/loop/obj
// statement, a bracketed group, a unary-negated number literal, or a bare
// token pushed as-is. Every branch leaves the tokenizer positioned just
// past what it consumed.
func (p *Parser) parsePrimary() *kerr.Err {
	initIdx := p.index()
	text, kind := p.currentID()

	switch {
	case text == "if" && kind == "Symbol":
		return p.ifStmnt()
	case text == "loop" && kind == "Symbol":
		return p.loopStmnt()
	case text == "obj" && kind == "Symbol":
		return p.objectStmnt()
	case text == "(" && kind == "MiscCharacter":
		if err := p.field("(", ")", ""); err != nil {
			return err
		}
		p.reduce(tree.Parenthesis, 1, initIdx)
		return nil
	case text == "[" && kind == "MiscCharacter":
		if err := p.field("[", "]", ","); err != nil {
			return err
		}
		p.reduce(tree.List, 1, initIdx)
		return nil
	case text == "{" && kind == "MiscCharacter":
		return p.field("{", "}", "")
	case text == "-" && kind == "Operator":
		if err := p.tok.Advance(); err != nil {
			return err
		}
		numTok := p.tok.Current()
		var num float32
		if numTok.Kind == tree.Number {
			num = numTok.Num
		}
		negated := tree.NewNumber(-num)
		negated.Span = numTok.Span
		p.push(negated)
		return p.tok.Advance()
	case kind == "MiscCharacter" || kind == "Operator":
		return kerr.ParseErr(kerr.UnknownSyntax, text)
	default:
		p.push(p.tok.Current())
		return p.tok.Advance()
	}
}

// operExpr parses one primary, then greedily folds trailing calls,
// combinators, and binary operators by precedence (shunting-yard: an
// incoming operator binding strictly tighter than the one on top of
// operStack is shifted; anything else forces an immediate reduce of the
// pending top operator first).
func (p *Parser) operExpr() *kerr.Err {
	initIdx := p.index()
	var operStack []*tree.Tree

	for {
		if err := p.parsePrimary(); err != nil {
			return err
		}

		if text, kind := p.currentID(); text == "(" && kind == "MiscCharacter" {
			if err := p.field("(", ")", ","); err != nil {
				return err
			}
			if text2, kind2 := p.currentID(); text2 == "(" && kind2 == "MiscCharacter" {
				if err := p.field("(", ")", ","); err != nil {
					return err
				}
				p.reduce(tree.Combinator, 3, initIdx)
			} else {
				p.reduce(tree.Call, 2, initIdx)
			}
		}

		current := p.tok.Current()
		if current.Kind != tree.Operator {
			break
		}
		pCurr := current.Precedence

		if len(operStack) == 0 {
			operStack = append(operStack, current)
		} else {
			top := operStack[len(operStack)-1]
			if pCurr < top.Precedence {
				operStack = append(operStack, current)
			}
			if pCurr >= top.Precedence {
				rOp := p.pop()
				lOp := p.pop()
				p.push(tree.NewOperatorExpression(top.Text, lOp, rOp))
				operStack = operStack[:len(operStack)-1]
				operStack = append(operStack, current)
			}
		}

		if err := p.tok.Advance(); err != nil {
			return err
		}
	}

	for i := len(operStack) - 1; i >= 0; i-- {
		op := operStack[i]
		rOp := p.pop()
		lOp := p.pop()
		p.push(tree.NewOperatorExpression(op.Text, lOp, rOp))
	}
	return nil
}

// field parses a bracketed, optionally delimited list of oper_expr
// elements: "(", "[" argument/element lists, and "{" blocks (delim ""
// means none is required between elements). A no-op if the current token
// isn't the opening bracket.
func (p *Parser) field(start, end, delim string) *kerr.Err {
	if text, kind := p.currentID(); !(text == start && kind == "MiscCharacter") {
		return nil
	}
	initIdx := p.index()
	length := 0
	if err := p.tok.Advance(); err != nil {
		return err
	}

	for {
		if text, kind := p.currentID(); text == end && kind == "MiscCharacter" {
			break
		}
		if err := p.operExpr(); err != nil {
			return err
		}
		length++

		if delim != "" {
			text2, kind2 := p.currentID()
			switch {
			case text2 == delim && kind2 == "MiscCharacter":
				if err := p.tok.Advance(); err != nil {
					return err
				}
			case text2 == end && kind2 == "MiscCharacter":
				// no delimiter expected after the final element
			default:
				return kerr.ParseErrTyped(kerr.MissingSeparator, delim, p.top().Show())
			}
		}
	}

	if err := p.tok.Advance(); err != nil {
		return err
	}
	p.reduce(tree.Field, length, initIdx)
	return nil
}

// ifStmnt parses a chain of "if (cond) {then}[ {else}]" clauses, each
// optionally followed by ",", folding each into a 2- or 3-element Field
// and the whole chain into an If tree.
func (p *Parser) ifStmnt() *kerr.Err {
	initIdx := p.index()
	length := 0

	for {
		if text, kind := p.currentID(); !(text == "if" && kind == "Symbol") {
			break
		}
		if err := p.tok.Advance(); err != nil {
			return err
		}

		if err := p.field("(", ")", ""); err != nil {
			return err
		}
		if len(p.top().Children) != 1 {
			return kerr.ParseErrTyped(kerr.ResolutionFailure, "IF", "one boolean condition required for each if statement")
		}

		if err := p.field("{", "}", ""); err != nil {
			return err
		}
		if len(p.top().Children) < 1 {
			return kerr.ParseErrTyped(kerr.ResolutionFailure, "IF", "action if true block cannot be empty")
		}

		switch text2, kind2 := p.currentID(); {
		case text2 == "," && kind2 == "MiscCharacter":
			if err := p.tok.Advance(); err != nil {
				return err
			}
			p.reduce(tree.Field, 2, initIdx)
		case text2 == "{" && kind2 == "MiscCharacter":
			if err := p.field("{", "}", ""); err != nil {
				return err
			}
			if len(p.top().Children) < 1 {
				return kerr.ParseErrTyped(kerr.ResolutionFailure, "IF", "action if false block cannot be empty")
			}
			p.reduce(tree.Field, 3, initIdx)
		default:
			p.reduce(tree.Field, 2, initIdx)
		}
		length++
	}

	p.reduce(tree.If, length, initIdx)
	return nil
}

// loopStmnt parses either "loop cond (cond) {body}" or
// "loop iter (idx, iterable)... {body}".
func (p *Parser) loopStmnt() *kerr.Err {
	initIdx := p.index()
	if err := p.tok.Advance(); err != nil {
		return err
	}

	switch text, kind := p.currentID(); {
	case text == "cond" && kind == "Symbol":
		if err := p.tok.Advance(); err != nil {
			return err
		}
		if err := p.field("(", ")", ""); err != nil {
			return err
		}
		if len(p.top().Children) != 1 {
			return kerr.ParseErrTyped(kerr.ResolutionFailure, "LOOP", "one boolean condition required")
		}
		if err := p.field("{", "}", ""); err != nil {
			return err
		}
		if len(p.top().Children) < 1 {
			return kerr.ParseErrTyped(kerr.ResolutionFailure, "LOOP", "loop action cannot be empty")
		}
		p.reduceLoop("cond", 2, initIdx)
		return nil

	case text == "iter" && kind == "Symbol":
		if err := p.tok.Advance(); err != nil {
			return err
		}
		length := 0
		for {
			t2, k2 := p.currentID()
			if !(t2 == "(" && k2 == "MiscCharacter") {
				break
			}
			if err := p.field("(", ")", ","); err != nil {
				return err
			}
			if len(p.top().Children) != 2 {
				return kerr.ParseErrTyped(kerr.ResolutionFailure, "LOOP", "index/iterator pair required")
			}
			length++
		}
		if err := p.field("{", "}", ""); err != nil {
			return err
		}
		if len(p.top().Children) < 1 {
			return kerr.ParseErrTyped(kerr.ResolutionFailure, "LOOP", "loop action cannot be empty")
		}
		length++
		p.reduceLoop("iter", length, initIdx)
		return nil

	default:
		return kerr.ParseErrTyped(kerr.ResolutionFailure, "LOOP", fmt.Sprintf("invalid loop type: %s", p.top().Show()))
	}
}

// objectStmnt parses "obj (params) {body}" into an ObjectDefinition tree.
func (p *Parser) objectStmnt() *kerr.Err {
	initIdx := p.index()
	if err := p.tok.Advance(); err != nil {
		return err
	}
	if err := p.field("(", ")", ","); err != nil {
		return err
	}
	if err := p.field("{", "}", ""); err != nil {
		return err
	}
	if len(p.top().Children) < 1 {
		return kerr.ParseErrTyped(kerr.ResolutionFailure, "OBJECT", "object contents cannot be empty")
	}
	p.reduce(tree.ObjectDefinition, 2, initIdx)
	return nil
}
