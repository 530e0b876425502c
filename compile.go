package forthline

import "strings"

// Node is an element of a compiled definition body.
type Node interface{ isNode() }

// Main is the top level of a compiled definition.
type Main struct{ Body []Node }

// Conditional pops a flag; nonzero runs Consequent, zero runs Alternative.
type Conditional struct {
	Consequent  []Node
	Alternative []Node
}

// CountedLoop is "do ... loop" or, with StepFromStack, "do ... +loop".
type CountedLoop struct {
	Body          []Node
	StepFromStack bool
}

// IndefiniteLoop is "begin ... until".
type IndefiniteLoop struct{ Body []Node }

// Action runs a single word.
type Action struct{ Word Word }

func (*Main) isNode()           {}
func (*Conditional) isNode()    {}
func (*CountedLoop) isNode()    {}
func (*IndefiniteLoop) isNode() {}
func (*Action) isNode()         {}

type compileContext struct {
	node     Node
	body     *[]Node
	elseSeen bool
}

// Compile builds the control structure of a definition body in one pass.
// Control codes open, switch and close nested bodies; every other word is
// appended to the active body as an Action.
func Compile(actions []Word) (*Main, error) {
	main := &Main{}
	stack := []compileContext{{node: main, body: &main.Body}}

	for i, w := range actions {
		top := &stack[len(stack)-1]
		code, isCode := w.(ControlCode)
		if !isCode || code == CodeKey {
			*top.body = append(*top.body, &Action{Word: w})
			continue
		}

		unbalanced := CompileError{Code: code, Index: i, Err: ErrUnbalancedControl}
		switch code {
		case CodeIf:
			cond := &Conditional{}
			*top.body = append(*top.body, cond)
			stack = append(stack, compileContext{node: cond, body: &cond.Consequent})

		case CodeElse:
			cond, ok := top.node.(*Conditional)
			if !ok || top.elseSeen {
				return nil, unbalanced
			}
			top.body = &cond.Alternative
			top.elseSeen = true

		case CodeThen:
			if _, ok := top.node.(*Conditional); !ok {
				return nil, unbalanced
			}
			stack = stack[:len(stack)-1]

		case CodeDo:
			loop := &CountedLoop{}
			*top.body = append(*top.body, loop)
			stack = append(stack, compileContext{node: loop, body: &loop.Body})

		case CodeLoop, CodePlusLoop:
			loop, ok := top.node.(*CountedLoop)
			if !ok {
				return nil, unbalanced
			}
			loop.StepFromStack = code == CodePlusLoop
			stack = stack[:len(stack)-1]

		case CodeBegin:
			loop := &IndefiniteLoop{}
			*top.body = append(*top.body, loop)
			stack = append(stack, compileContext{node: loop, body: &loop.Body})

		case CodeUntil:
			if _, ok := top.node.(*IndefiniteLoop); !ok {
				return nil, unbalanced
			}
			stack = stack[:len(stack)-1]

		default:
			return nil, CompileError{Code: code, Index: i, Err: ErrUnknownControlCode}
		}
	}

	if top := stack[len(stack)-1]; top.node != main {
		return nil, CompileError{Index: -1, Err: ErrUnbalancedControl}
	}
	return main, nil
}

// formatNodes decompiles body into sb, each element preceded by a space.
func formatNodes(sb *strings.Builder, body []Node) {
	for _, n := range body {
		sb.WriteByte(' ')
		switch n := n.(type) {
		case *Action:
			sb.WriteString(n.Word.WordName())
		case *Conditional:
			sb.WriteString("if")
			formatNodes(sb, n.Consequent)
			if len(n.Alternative) > 0 {
				sb.WriteString(" else")
				formatNodes(sb, n.Alternative)
			}
			sb.WriteString(" then")
		case *CountedLoop:
			sb.WriteString("do")
			formatNodes(sb, n.Body)
			if n.StepFromStack {
				sb.WriteString(" +loop")
			} else {
				sb.WriteString(" loop")
			}
		case *IndefiniteLoop:
			sb.WriteString("begin")
			formatNodes(sb, n.Body)
			sb.WriteString(" until")
		case *Main:
			formatNodes(sb, n.Body)
		}
	}
}
