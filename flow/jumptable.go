package flow

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Jump table
// ---------------------------------------------------------------------------

// jumpTable is the structure of a block derived from command roles and
// indent levels. It is rebuilt lazily after any change to the command list,
// an indent or an enabled flag.
type jumpTable struct {
	// nextBranch[i]: for a Condition or ElseIf, the first following
	// same-indent ElseIf, Else or End.
	nextBranch []int
	// nextEnd[i]: for any opener, the first following same-indent End.
	nextEnd []int
	// loopOf[i]: for an End closing a loop, the loop opener.
	loopOf []int
	// breakLoop[i]: for a Break, the nearest enclosing loop opener.
	breakLoop []int
	labels    map[string]int
	problems  []error
}

func compileJumpTable(cmds []Command) *jumpTable {
	n := len(cmds)
	t := &jumpTable{
		nextBranch: filled(n),
		nextEnd:    filled(n),
		loopOf:     filled(n),
		breakLoop:  filled(n),
		labels:     make(map[string]int),
	}

	// Openers waiting for their closer, keyed by indent.
	waitBranch := make(map[int][]int)
	waitEnd := make(map[int][]int)

	for i, c := range cmds {
		role := RoleOf(c)
		if c.meta().disabled {
			continue
		}
		if role == RoleLabel {
			t.addLabel(c, i)
			continue
		}
		if role == RoleComment {
			continue
		}

		d := c.meta().indent
		switch role {
		case RoleElseIf, RoleElse, RoleEnd:
			for _, o := range waitBranch[d] {
				t.nextBranch[o] = i
			}
			delete(waitBranch, d)
		}
		if role == RoleEnd {
			for _, o := range waitEnd[d] {
				t.nextEnd[o] = i
				if RoleOf(cmds[o]) == RoleLoop {
					t.loopOf[i] = o
				}
			}
			delete(waitEnd, d)
		}
		switch role {
		case RoleCondition, RoleElseIf:
			waitBranch[d] = append(waitBranch[d], i)
			waitEnd[d] = append(waitEnd[d], i)
		case RoleElse, RoleLoop:
			waitEnd[d] = append(waitEnd[d], i)
		}
	}

	for i, c := range cmds {
		if transparent(c) || RoleOf(c) != RoleBreak {
			continue
		}
		t.breakLoop[i] = enclosingLoop(cmds, t, i)
	}

	t.collectProblems(cmds)
	return t
}

func filled(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = -1
	}
	return s
}

func (t *jumpTable) addLabel(c Command, i int) {
	l, ok := c.(Labeled)
	if !ok {
		return
	}
	key := l.LabelKey()
	if first, dup := t.labels[key]; dup {
		t.problems = append(t.problems, fmt.Errorf("#%d: duplicate label %q (first at #%d)", i, key, first))
		return
	}
	t.labels[key] = i
}

// enclosingLoop finds the nearest preceding loop opener with a smaller
// indent whose End lies after the break.
func enclosingLoop(cmds []Command, t *jumpTable, brk int) int {
	d := cmds[brk].meta().indent
	for j := brk - 1; j >= 0; j-- {
		c := cmds[j]
		if transparent(c) || RoleOf(c) != RoleLoop {
			continue
		}
		if c.meta().indent >= d {
			continue
		}
		if end := t.nextEnd[j]; end == -1 || end > brk {
			return j
		}
	}
	return -1
}

func (t *jumpTable) collectProblems(cmds []Command) {
	for i, c := range cmds {
		if transparent(c) {
			continue
		}
		name := CommandName(c)
		switch RoleOf(c) {
		case RoleCondition, RoleElseIf:
			if t.nextBranch[i] == -1 {
				t.problems = append(t.problems, fmt.Errorf("#%d %s: no matching ElseIf, Else or End", i, name))
			}
		case RoleElse, RoleLoop:
			if t.nextEnd[i] == -1 {
				t.problems = append(t.problems, fmt.Errorf("#%d %s: no matching End", i, name))
			}
		case RoleBreak:
			if t.breakLoop[i] == -1 {
				t.problems = append(t.problems, fmt.Errorf("#%d %s: not inside a loop", i, name))
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Indent levels
// ---------------------------------------------------------------------------

// UpdateIndentLevels recomputes every indent from command roles. Used for
// blocks built in code or loaded without stored indents.
func (b *Block) UpdateIndentLevels() {
	level := 0
	for _, c := range b.commands {
		role := RoleOf(c)
		if role.ClosesBlock() {
			level--
		}
		if level < 0 {
			level = 0
		}
		c.meta().indent = level
		if role.OpensBlock() {
			level++
		}
	}
	b.jt = nil
}
