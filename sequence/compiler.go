package sequence

import (
	"fmt"
	"unicode"

	"gofi/event"
)

const (
	and = '*'
	or  = '|'
)

type tokenKind int

const (
	operand tokenKind = iota
	operator
)

// An entry of the stack of a parenthesis depth.
//
// An operand is either a single identifier or a group, holding all identifiers of a parenthesized sub-expression.
type token struct {
	kind  tokenKind
	op    rune
	names []string
}

type level struct {
	top     *Sequence[token]
	members []string
	// offset of the opening parenthesis
	open int
}

type compiler struct {
	expr     string
	declared map[string]event.Event

	levels []*level

	order   []string
	offsets map[string]int
	deps    map[string][]string
}

// Compile the run sequence expr into a dependency graph.
//
// events are the declared events that the identifiers of expr can reference.
// Declared events that are not used in the sequence are ignored.
//
// The returned error is one of *ParseError, *DuplicateEventError, *UnknownEventError or *UnmatchedBlockError and always matches ErrCompile.
func Compile(expr string, events []event.Event) (*Graph, error) {
	declared := make(map[string]event.Event, len(events))
	for _, evt := range events {
		if _, ok := declared[evt.Name]; ok {
			return nil, fmt.Errorf("%w: event %q declared more than once", ErrCompile, evt.Name)
		}
		declared[evt.Name] = evt
	}

	c := &compiler{
		expr:     expr,
		declared: declared,
		levels:   []*level{{}},
		offsets:  make(map[string]int),
		deps:     make(map[string][]string),
	}
	if err := c.parse(); err != nil {
		return nil, err
	}

	compiled := make(map[string]event.Event, len(c.order))
	for _, name := range c.order {
		evt := declared[name]
		if err := evt.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompile, err)
		}
		evt.DependsOn = c.deps[name]
		evt.BlockingCondition = ""
		evt.Unblock = ""
		compiled[name] = evt
	}

	resolveBlockingConditions(c.order, compiled)
	if err := matchBlocks(c.order, compiled); err != nil {
		return nil, err
	}

	return &Graph{
		expr:   expr,
		order:  c.order,
		events: compiled,
	}, nil
}

func (c *compiler) parse() error {
	runes := []rune(c.expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case isIdentRune(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			if err := c.identifier(string(runes[start:i]), start); err != nil {
				return err
			}
		case r == '(':
			if err := c.openGroup(i); err != nil {
				return err
			}
			i++
		case r == ')':
			if err := c.closeGroup(i); err != nil {
				return err
			}
			i++
		case r == and || r == or:
			if err := c.operator(r, i); err != nil {
				return err
			}
			i++
		default:
			return c.parseError(i, fmt.Sprintf("unexpected character %q", r))
		}
	}

	if len(c.levels) > 1 {
		return c.parseError(c.current().open, "unbalanced '('")
	}
	top := c.current().top
	if top == nil {
		return c.parseError(len(runes), "empty expression")
	}
	if top.Payload.kind == operator {
		return c.parseError(len(runes), fmt.Sprintf("expected identifier after %q", top.Payload.op))
	}
	return nil
}

func (c *compiler) current() *level {
	return c.levels[len(c.levels)-1]
}

func (c *compiler) identifier(name string, offset int) error {
	if _, ok := c.declared[name]; !ok {
		return &UnknownEventError{Name: name, Offset: offset}
	}
	if _, ok := c.offsets[name]; ok {
		return &DuplicateEventError{Name: name, Offset: offset}
	}
	cur := c.current()
	if cur.top != nil && cur.top.Payload.kind == operand {
		return c.parseError(offset, fmt.Sprintf("expected operator before %q", name))
	}

	c.deps[name] = c.resolveDependencies()
	c.offsets[name] = offset
	c.order = append(c.order, name)

	cur.top = cur.top.InsertAfter(&token{kind: operand, names: []string{name}})
	cur.members = append(cur.members, name)
	return nil
}

// Find the dependencies of the identifier that is being parsed.
//
// They are resolved from the last operator and operand of the innermost depth that is not empty.
func (c *compiler) resolveDependencies() []string {
	for i := len(c.levels) - 1; i >= 0; i-- {
		l := c.levels[i]
		if l.top == nil {
			continue
		}
		op := l.top.Payload
		prev := l.top.Previous.Payload
		if op.op == and {
			return append([]string(nil), prev.names...)
		}
		// Siblings of an or share the dependency of the first member of the left operand
		return append([]string(nil), c.deps[prev.names[0]]...)
	}
	return nil
}

func (c *compiler) openGroup(offset int) error {
	cur := c.current()
	if cur.top != nil && cur.top.Payload.kind == operand {
		return c.parseError(offset, "expected operator before '('")
	}
	c.levels = append(c.levels, &level{open: offset})
	return nil
}

func (c *compiler) closeGroup(offset int) error {
	if len(c.levels) == 1 {
		return c.parseError(offset, "unbalanced ')'")
	}
	inner := c.current()
	if inner.top == nil {
		return c.parseError(offset, "empty group")
	}
	if inner.top.Payload.kind == operator {
		return c.parseError(offset, fmt.Sprintf("expected identifier after %q", inner.top.Payload.op))
	}
	c.levels = c.levels[:len(c.levels)-1]

	parent := c.current()
	parent.top = parent.top.InsertAfter(&token{kind: operand, names: inner.members})
	parent.members = append(parent.members, inner.members...)
	return nil
}

func (c *compiler) operator(op rune, offset int) error {
	cur := c.current()
	if cur.top == nil || cur.top.Payload.kind == operator {
		return c.parseError(offset, fmt.Sprintf("operator %q without left operand", op))
	}
	cur.top = cur.top.InsertAfter(&token{kind: operator, op: op})
	return nil
}

func (c *compiler) parseError(offset int, msg string) *ParseError {
	return &ParseError{Expr: c.expr, Offset: offset, Msg: msg}
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-' || r == ':'
}

// Chain blocking events executed at the same point.
//
// The blocking condition of a blocking event is the previous blocking event, in the order of the sequence, with the same point.
func resolveBlockingConditions(order []string, events map[string]event.Event) {
	last := map[event.Point]string{}
	for _, name := range order {
		evt := events[name]
		if !evt.IsBlocking() {
			continue
		}
		point := evt.Point()
		evt.BlockingCondition = last[point]
		events[name] = evt
		last[point] = name
	}
}

// Pair every Block event with the first unpaired Unblock event that follows it at the same point.
func matchBlocks(order []string, events map[string]event.Event) error {
	pending := map[event.Point][]string{}
	for _, name := range order {
		evt := events[name]
		point := evt.Point()
		switch {
		case evt.IsBlock():
			pending[point] = append(pending[point], name)
		case evt.IsUnblock():
			blocks := pending[point]
			if len(blocks) == 0 {
				continue
			}
			block := events[blocks[0]]
			block.Unblock = name
			events[blocks[0]] = block
			pending[point] = blocks[1:]
		}
	}
	for _, name := range order {
		evt := events[name]
		if evt.IsBlock() && evt.Unblock == "" {
			return &UnmatchedBlockError{Name: name, Point: evt.Point()}
		}
	}
	return nil
}
