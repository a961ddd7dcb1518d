// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mvstore

import (
	"sync/atomic"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"golang.org/x/exp/slices"
)

// Below this input size a sequential build is faster than paying the
// parallelism overhead.
const parallelBuildCutoff = 1 << 12

func build(possibleWrites []common.KeyVersion) *Store {
	pairs := slices.Clone(possibleWrites)
	slices.SortFunc(pairs, func(a, b common.KeyVersion) int {
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	if len(pairs) < parallelBuildCutoff {
		return buildRange(pairs)
	}
	return buildParallel(pairs)
}

func buildRange(pairs []common.KeyVersion) *Store {
	store := newStore()
	for _, pair := range pairs {
		store.add(pair)
	}
	return store
}

// buildParallel splits the key-sorted input at key boundaries, builds the
// resulting disjoint ranges on parallel tasks, and merges the partial stores
// into one. The split points never cut through a key's version list, so the
// partial stores cover disjoint key sets.
func buildParallel(pairs []common.KeyVersion) *Store {
	var ranges [][]common.KeyVersion
	splitAtPivots(pairs, &ranges)

	partials := make([]*Store, len(ranges))
	result := newStore()

	tasks := make([]*task, 0, len(ranges)+1)
	mergeTask := newTask(func() {
		for _, partial := range partials {
			for key, versions := range partial.keys {
				result.keys[key] = versions
			}
		}
	}, len(ranges))
	for i, r := range ranges {
		buildTask := newTask(func() {
			partials[i] = buildRange(r)
		}, 0)
		buildTask.parentTask = mergeTask
		tasks = append(tasks, buildTask)
	}
	tasks = append(tasks, mergeTask)
	runTasks(tasks)
	return result
}

// splitAtPivots recursively halves the sorted input, moving each split point
// forward to the next key boundary, until ranges fall below the cutoff.
func splitAtPivots(pairs []common.KeyVersion, ranges *[][]common.KeyVersion) {
	if len(pairs) < parallelBuildCutoff {
		if len(pairs) > 0 {
			*ranges = append(*ranges, pairs)
		}
		return
	}
	split := len(pairs) / 2
	pivot := pairs[split].Key
	for split < len(pairs) && pairs[split].Key == pivot {
		split++
	}
	if split == len(pairs) {
		// A single key dominates the upper half; no boundary to split at.
		*ranges = append(*ranges, pairs)
		return
	}
	splitAtPivots(pairs[:split], ranges)
	splitAtPivots(pairs[split:], ranges)
}

// task represents a unit of build work, potentially with dependencies on
// other tasks. Tasks are organized in a tree. The result of a task may be
// consumed by a single parent task, while each task may depend on zero or
// more child tasks.
type task struct {
	action          func()       // < the action to perform
	numDependencies atomic.Int32 // < number of dependencies before this task can run
	parentTask      *task        // < optional parent task to notify when done
}

// newTask creates a new task with the specified action and number of
// dependencies. The task will only be able to run once all dependencies are
// satisfied.
func newTask(action func(), numDependencies int) *task {
	t := &task{action: action}
	t.numDependencies.Store(int32(numDependencies))
	return t
}

// run executes the task's action and returns an optional parent task that
// may now be ready to run.
func (t *task) run() *task {
	t.action()
	if t.parentTask == nil {
		return nil
	}
	if t.parentTask.numDependencies.Add(-1) != 0 {
		return nil // not ready yet
	}
	return t.parentTask
}

// runTasks executes the given tasks in parallel, respecting their
// dependencies.
func runTasks(tasks []*task) {
	// Cut-off for a small number of tasks, in which case we run sequentially.
	if len(tasks) < 4 {
		var pending []*task
		for _, task := range tasks {
			if task.numDependencies.Load() == 0 {
				pending = append(pending, task)
			}
		}
		for len(pending) > 0 {
			next := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			next.action()
			parent := next.parentTask
			if parent != nil && parent.numDependencies.Add(-1) == 0 {
				pending = append(pending, parent)
			}
		}
		return
	}

	const numWorkers = 8
	completedTasks := atomic.Uint32{}

	// Collect all tasks ready to run (no dependencies).
	workList := make([]*task, 0, len(tasks))
	for _, task := range tasks {
		if task.numDependencies.Load() == 0 {
			workList = append(workList, task)
		}
	}

	// Process tasks until all are done.
	pos := atomic.Int32{}
	processTasks := func() {
		for {
			next := pos.Add(1) - 1
			if int(next) >= len(workList) {
				return
			}
			// Run this task and all tasks that become ready as a result.
			task := workList[next]
			for task != nil {
				task = task.run()
				completedTasks.Add(1)
			}
		}
	}

	for range numWorkers {
		go processTasks()
	}

	// This thread also helps with running tasks.
	processTasks()

	// The scheduled tasks are short and reasonably well balanced, so a busy
	// wait is faster than a wait-group that may outlive the work itself.
	for completedTasks.Load() < uint32(len(tasks)) {
	}
}
