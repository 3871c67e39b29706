package engine

import (
	"fmt"
	"slices"
)

// Node — узел графа шагов определения.
type Node struct {
	Step *Step
	ID   int

	// InDegree — число контейнеров, в которые вложен шаг.
	InDegree int

	// Children — шаги, вложенные в этот шаг (рёбра вложенности).
	Children []*Node

	// Parents — контейнеры этого шага.
	Parents []*Node

	// Next — шаги, на которые ведут outcomes.
	Next []*Node
}

// DAG — граф шагов определения.
//
// Рёбра вложенности (Children) обязаны быть ацикличными: контейнер не
// может оказаться внутри собственного потомка. Переходы (Outcomes) могут
// образовывать циклы: так выражается повтор шагов.
type DAG struct {
	Nodes map[int]*Node

	// RootNodes — шаги, не вложенные ни в один контейнер.
	RootNodes []*Node

	// Order — топологический порядок по вложенности (контейнеры раньше детей).
	Order []*Node

	entry int
}

// BuildDAG строит граф шагов определения.
// Возвращает ErrMissingStep для ссылок на неизвестные шаги и
// ErrChildCycle для цикла во вложенности.
func BuildDAG(def *Definition) (*DAG, error) {
	if def == nil || len(def.Steps) == 0 {
		return nil, ErrEmptySteps
	}

	dag := &DAG{
		Nodes: make(map[int]*Node, len(def.Steps)),
		entry: def.Steps[0].ID,
	}

	for _, step := range def.Steps {
		dag.Nodes[step.ID] = &Node{Step: step, ID: step.ID}
	}

	for _, step := range def.Steps {
		node := dag.Nodes[step.ID]

		for _, childID := range step.Children {
			child, ok := dag.Nodes[childID]
			if !ok {
				return nil, NewValidationError(step.ID, "children",
					fmt.Sprintf("references unknown child step: %d", childID), ErrMissingStep)
			}
			dag.addEdge(node, child)
		}

		for _, outcome := range step.Outcomes {
			next, ok := dag.Nodes[outcome.NextStep]
			if !ok {
				return nil, NewValidationError(step.ID, "outcomes",
					fmt.Sprintf("references unknown next step: %d", outcome.NextStep), ErrMissingStep)
			}
			node.Next = append(node.Next, next)
		}
	}

	dag.findRootNodes(def)

	if err := dag.topologicalSort(def); err != nil {
		return nil, err
	}

	return dag, nil
}

// addEdge добавляет ребро вложенности parent → child.
func (d *DAG) addEdge(parent, child *Node) {
	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
	child.InDegree++
}

// findRootNodes собирает шаги без контейнеров в порядке определения.
func (d *DAG) findRootNodes(def *Definition) {
	d.RootNodes = nil
	for _, step := range def.Steps {
		if node := d.Nodes[step.ID]; node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет сортировку Кана по рёбрам вложенности.
// Если отсортированы не все узлы, во вложенности есть цикл.
func (d *DAG) topologicalSort(def *Definition) error {
	inDegree := make(map[int]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	d.Order = make([]*Node, 0, len(d.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		d.Order = append(d.Order, node)

		for _, child := range node.Children {
			inDegree[child.ID]--
			if inDegree[child.ID] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(d.Order) != len(d.Nodes) {
		for _, step := range def.Steps {
			if inDegree[step.ID] > 0 {
				return NewValidationError(step.ID, "children",
					"step is nested in its own descendant", ErrChildCycle)
			}
		}
		return ErrChildCycle
	}

	return nil
}

// Reachable возвращает ID шагов, достижимых из точки входа по
// вложенности и переходам.
func (d *DAG) Reachable() map[int]bool {
	seen := make(map[int]bool, len(d.Nodes))
	stack := []*Node{d.Nodes[d.entry]}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true

		stack = append(stack, node.Children...)
		stack = append(stack, node.Next...)
	}
	return seen
}

// Unreachable возвращает отсортированные ID шагов, до которых
// выполнение никогда не дойдёт.
func (d *DAG) Unreachable() []int {
	reachable := d.Reachable()

	var ids []int
	for id := range d.Nodes {
		if !reachable[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Depth возвращает глубину вложенности шага (0 — шаг верхнего уровня).
// Для шага с несколькими контейнерами берётся наибольшая глубина.
func (d *DAG) Depth(id int) int {
	node, ok := d.Nodes[id]
	if !ok {
		return -1
	}

	depth := 0
	for _, parent := range node.Parents {
		depth = max(depth, d.Depth(parent.ID)+1)
	}
	return depth
}

// UnreachableSteps возвращает шаги определения, недостижимые из точки входа.
func UnreachableSteps(def *Definition) ([]int, error) {
	dag, err := BuildDAG(def)
	if err != nil {
		return nil, err
	}
	return dag.Unreachable(), nil
}
