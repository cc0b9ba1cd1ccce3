package scheduler

// DependencyGraph builds and validates the prerequisite graph over a
// submission set, grounded on
// original_source/parallelism/core/handlers/dependency_handler.py.
type DependencyGraph struct {
	tasks         []*TaskSpec
	byName        map[string]*TaskSpec
	prerequisites map[string][]*TaskSpec // task name -> its prerequisites
	reverse       map[string][]*TaskSpec // task name -> tasks that depend on it
}

// BuildDependencyGraph constructs a DependencyGraph over tasks without
// validating it; call Validate before relying on it.
func BuildDependencyGraph(tasks []*TaskSpec) *DependencyGraph {
	g := &DependencyGraph{
		tasks:         tasks,
		byName:        make(map[string]*TaskSpec, len(tasks)),
		prerequisites: make(map[string][]*TaskSpec, len(tasks)),
		reverse:       make(map[string][]*TaskSpec, len(tasks)),
	}
	for _, t := range tasks {
		g.byName[t.name] = t
	}
	for _, t := range tasks {
		g.prerequisites[t.name] = mergedPrerequisites(t)
	}
	for _, t := range tasks {
		for _, prereq := range g.prerequisites[t.name] {
			g.reverse[prereq.name] = append(g.reverse[prereq.name], t)
		}
	}
	return g
}

// mergedPrerequisites computes the prerequisite set of spec.md §3:
// explicit dependencies union the producers of any ReturnProxy found in
// args/kwargs, de-duplicated by task identity (name).
func mergedPrerequisites(t *TaskSpec) []*TaskSpec {
	seen := make(map[string]bool)
	var out []*TaskSpec
	add := func(task *TaskSpec) {
		if task == nil || seen[task.name] {
			return
		}
		seen[task.name] = true
		out = append(out, task)
	}
	for _, dep := range t.dependencies {
		add(dep)
	}
	for _, v := range t.args {
		if proxy, ok := v.(*ReturnProxy); ok {
			add(proxy.task)
		}
	}
	for _, v := range t.kwargs {
		if proxy, ok := v.(*ReturnProxy); ok {
			add(proxy.task)
		}
	}
	return out
}

// Validate returns false if any declared prerequisite is absent from
// the submission set, or if the prerequisite relation contains a cycle.
// Referential integrity is checked first, matching spec.md §4.1.
func (g *DependencyGraph) Validate() (ok bool, missing []string, cyclic bool) {
	for name, prereqs := range g.prerequisites {
		for _, p := range prereqs {
			if _, exists := g.byName[p.name]; !exists {
				missing = append(missing, name+" -> "+p.name)
			}
		}
	}
	if len(missing) > 0 {
		return false, missing, false
	}
	visited := make(map[string]bool, len(g.tasks))
	stack := make(map[string]bool, len(g.tasks))
	for _, t := range g.tasks {
		if !visited[t.name] {
			if g.hasCycle(t, visited, stack) {
				return false, nil, true
			}
		}
	}
	return true, nil, false
}

// hasCycle is a depth-first search with a recursion stack; a back-edge
// to a node currently on the stack is a cycle, per spec.md §4.1.
func (g *DependencyGraph) hasCycle(node *TaskSpec, visited, stack map[string]bool) bool {
	visited[node.name] = true
	stack[node.name] = true
	for _, neighbor := range g.prerequisites[node.name] {
		if !visited[neighbor.name] {
			if g.hasCycle(neighbor, visited, stack) {
				return true
			}
		} else if stack[neighbor.name] {
			return true
		}
	}
	stack[node.name] = false
	return false
}

// Prerequisites returns the prerequisite set of t, as computed in
// spec.md §3.
func (g *DependencyGraph) Prerequisites(t *TaskSpec) []*TaskSpec {
	return append([]*TaskSpec(nil), g.prerequisites[t.name]...)
}

// ReversePrerequisites returns the tasks that list t as a prerequisite.
func (g *DependencyGraph) ReversePrerequisites(t *TaskSpec) []*TaskSpec {
	return append([]*TaskSpec(nil), g.reverse[t.name]...)
}

// taskStates abstracts the per-task "finish"/"complete" flags a
// DependencyGraph query needs; stateStore implements it.
type taskStates interface {
	initialized(name string) bool
	finished(name string) bool
	completed(name string) bool
}

// IsBlocked reports whether at least one prerequisite of t has not yet
// reached the given status. A prerequisite that has not even been
// admitted to the ledger (never initialized) leaves t blocked, per
// spec.md §4.1.
func (g *DependencyGraph) IsBlocked(t *TaskSpec, states taskStates, status string) bool {
	for _, prereq := range g.prerequisites[t.name] {
		if !states.initialized(prereq.name) {
			return true
		}
		switch status {
		case "finish":
			if !states.finished(prereq.name) {
				return true
			}
		case "complete":
			if !states.completed(prereq.name) {
				return true
			}
		}
	}
	return false
}

// BlockingTasks returns the subset of t's prerequisites that have
// reached "finish" but not "complete" — the specific predecessors that
// will cause t to cascade-cancel.
func (g *DependencyGraph) BlockingTasks(t *TaskSpec, states taskStates) []string {
	var names []string
	for _, prereq := range g.prerequisites[t.name] {
		if states.initialized(prereq.name) && states.finished(prereq.name) && !states.completed(prereq.name) {
			names = append(names, prereq.name)
		}
	}
	return names
}
