package translate

import (
	"errors"
	"io"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// WorkItem holds one descriptor line ready for conversion.
type WorkItem struct {
	Seq  int
	Line int    // 1-based line number in the input
	Text string // descriptor text
}

// WorkResult holds the conversion output for a single descriptor.
type WorkResult struct {
	Seq    int
	Line   int
	Text   string
	Result *Result
	Err    error
}

// ParallelConvert converts work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (t *Translator) ParallelConvert(items <-chan WorkItem, workers int) <-chan WorkResult {
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
				res, err := t.ConvertLine(item.Text)
				results <- WorkResult{
					Seq:    item.Seq,
					Line:   item.Line,
					Text:   item.Text,
					Result: res,
					Err:    err,
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

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Failure records a descriptor that produced no variants.
type Failure struct {
	Line       int
	Descriptor string
	Kind       ErrorKind
	Err        error
}

// Summary counts the outcome of a batch conversion.
type Summary struct {
	Converted int
	NoOp      []Failure
	Skipped   []Failure
}

// Total returns the number of descriptors seen.
func (s *Summary) Total() int {
	return s.Converted + len(s.NoOp) + len(s.Skipped)
}

// ReasonCounts returns the number of skipped and no-op descriptors per kind.
func (s *Summary) ReasonCounts() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, f := range s.Skipped {
		counts[f.Kind]++
	}
	if len(s.NoOp) > 0 {
		counts[KindNoOpVariant] = len(s.NoOp)
	}
	return counts
}

// Reasons returns the kinds present in ReasonCounts in a stable order.
func (s *Summary) Reasons() []ErrorKind {
	counts := s.ReasonCounts()
	kinds := make([]ErrorKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ConvertAll reads descriptor lines from r, converts them on the worker pool
// and calls fn with each successful result in input order. A descriptor
// that fails is recorded in the summary and the batch continues. Only read
// errors and errors returned by fn abort the run.
func (t *Translator) ConvertAll(r io.Reader, fn func(*Result) error) (*Summary, error) {
	reader := NewDescriptorReader(r)
	items := make(chan WorkItem, 64)

	var readErr error
	go func() {
		defer close(items)
		for seq := 0; ; seq++ {
			text, line, err := reader.Next()
			if err != nil {
				readErr = err
				return
			}
			if text == "" {
				return
			}
			items <- WorkItem{Seq: seq, Line: line, Text: text}
		}
	}()

	sum := &Summary{}
	err := OrderedCollect(t.ParallelConvert(items, t.opts.Workers), func(wr WorkResult) error {
		if wr.Err == nil {
			sum.Converted++
			if fn == nil {
				return nil
			}
			return fn(wr.Result)
		}

		f := Failure{Line: wr.Line, Descriptor: wr.Text, Kind: KindOf(wr.Err), Err: wr.Err}
		if errors.Is(wr.Err, ErrNoOpVariant) {
			sum.NoOp = append(sum.NoOp, f)
			t.logger.Info("descriptor needs no change",
				zap.Int("line", wr.Line), zap.String("descriptor", wr.Text), zap.Error(wr.Err))
			return nil
		}
		sum.Skipped = append(sum.Skipped, f)
		t.logger.Warn("skipping descriptor",
			zap.Int("line", wr.Line), zap.String("descriptor", wr.Text),
			zap.Stringer("reason", f.Kind), zap.Error(wr.Err))
		return nil
	})
	if err != nil {
		return sum, err
	}
	// readErr is safe to read: items is closed before results drain.
	return sum, readErr
}
