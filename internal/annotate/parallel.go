package annotate

import (
	"runtime"
	"sync"
)

// WorkItem holds a raw data line ready for annotation.
type WorkItem struct {
	Seq     int
	LineNum int
	Line    string
}

// WorkResult holds the annotation output for a single line.
type WorkResult struct {
	Seq     int
	LineNum int
	Line    string // annotated line
	Result  *Result
	Err     error
}

// ParallelAnnotate runs AnnotateLine over raw data lines on a pool of workers.
// Each WorkResult carries the serialised record, its Result, or the ParseError
// for that line. Results arrive in completion order; OrderedCollect restores
// input order. If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				line, res, err := a.AnnotateLine(item.LineNum, item.Line)
				results <- WorkResult{
					Seq:     item.Seq,
					LineNum: item.LineNum,
					Line:    line,
					Result:  res,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect passes annotated lines to fn in input order, holding back
// lines that finish early. After fn fails it keeps draining results without
// calling fn, so the workers and the line producer can exit, and then returns
// that error.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	held := make(map[int]WorkResult)
	next := 0
	var firstErr error

	for r := range results {
		if firstErr != nil {
			continue
		}
		held[r.Seq] = r
		for ready, ok := held[next]; ok; ready, ok = held[next] {
			delete(held, next)
			next++
			if err := fn(ready); err != nil {
				firstErr = err
				clear(held)
				break
			}
		}
	}

	return firstErr
}
