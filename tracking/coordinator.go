package tracking

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/metrics"
)

// DefaultWorkers is the pool size used when CoordinatorConfig.Workers is not positive.
const DefaultWorkers = 4

// ErrCoordinatorClosed is returned by tracking calls after Close.
var ErrCoordinatorClosed = errors.New("coordinator is closed")

// EngineFactory builds the engine owned by one worker
type EngineFactory func() *Engine

// CoordinatorConfig configures a Coordinator
type CoordinatorConfig struct {
	Workers   int
	Extractor FeatureExtractor
	NewEngine EngineFactory
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// PartitionError describes a partition which contributed no results to a cycle.
type PartitionError struct {
	Partition  int
	PatternIDs []string
	Err        error
}

func (e PartitionError) Error() string {
	return fmt.Sprintf("partition %d (%s): %v", e.Partition, strings.Join(e.PatternIDs, ","), e.Err)
}

func (e PartitionError) Unwrap() error {
	return e.Err
}

// CycleError lists the failed partitions of one tracking cycle. Results of the other partitions
// are still returned alongside it.
type CycleError struct {
	Failed []PartitionError
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d partition(s) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

func (e *CycleError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i := range e.Failed {
		out[i] = e.Failed[i]
	}
	return out
}

type job struct {
	partition   int
	patterns    []*Pattern
	features    Features
	frameHeight int
	reply       chan<- partitionResult
}

type partitionResult struct {
	partition int
	results   []Result
	err       error
}

// Coordinator runs the engine over a set of patterns for each frame. TrackConcurrent spreads the
// patterns round-robin over a fixed pool of workers started once by NewCoordinator; every worker
// owns its own Engine. Only one cycle runs at a time.
type Coordinator struct {
	cycle     sync.Mutex
	extractor FeatureExtractor
	engine    *Engine
	jobs      []chan job
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCoordinator starts the worker pool
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	factory := cfg.NewEngine
	if factory == nil {
		factory = NewEngineDefault
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		extractor: cfg.Extractor,
		engine:    factory(),
		jobs:      make([]chan job, workers),
		metrics:   cfg.Metrics,
		logger:    logger,
	}
	for i := range c.jobs {
		c.jobs[i] = make(chan job, 1)
		c.wg.Add(1)
		go c.work(factory(), c.jobs[i])
	}
	return c
}

// Workers returns the pool size
func (c *Coordinator) Workers() int {
	return len(c.jobs)
}

// Close stops the workers. It waits for a running cycle to finish.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.cycle.Lock()
		c.closed = true
		for _, ch := range c.jobs {
			close(ch)
		}
		c.cycle.Unlock()
		c.wg.Wait()
	})
}

// Track matches patterns sequentially in the calling goroutine. Results keep the order of patterns.
func (c *Coordinator) Track(frame Frame, patterns []*Pattern) ([]Result, error) {
	c.cycle.Lock()
	defer c.cycle.Unlock()
	if c.closed {
		return nil, ErrCoordinatorClosed
	}
	start := time.Now()
	features, err := c.extract(frame)
	if err != nil {
		return nil, err
	}
	res := runPartition(c.engine, job{patterns: patterns, features: features, frameHeight: frame.Height})
	c.metrics.ObserveCycle(time.Since(start))
	if res.err != nil {
		failed := PartitionError{Partition: 0, PatternIDs: patternIDs(patterns), Err: res.err}
		c.metrics.AddFailedPartitions(1)
		return nil, &CycleError{Failed: []PartitionError{failed}}
	}
	return res.results, nil
}

// TrackConcurrent matches patterns on the worker pool and waits for every partition.
// Results are concatenated in partition order; the set of results equals the one of Track.
// A failing partition is reported in a *CycleError while results of the others are returned.
func (c *Coordinator) TrackConcurrent(frame Frame, patterns []*Pattern) ([]Result, error) {
	c.cycle.Lock()
	defer c.cycle.Unlock()
	if c.closed {
		return nil, ErrCoordinatorClosed
	}
	start := time.Now()
	features, err := c.extract(frame)
	if err != nil {
		return nil, err
	}

	partitions := make([][]*Pattern, len(c.jobs))
	for i, p := range patterns {
		w := i % len(partitions)
		partitions[w] = append(partitions[w], p)
	}
	reply := make(chan partitionResult, len(partitions))
	sent := 0
	for i, part := range partitions {
		if len(part) == 0 {
			continue
		}
		c.jobs[i] <- job{partition: i, patterns: part, features: features, frameHeight: frame.Height, reply: reply}
		sent++
	}
	collected := make([]partitionResult, len(partitions))
	for ; sent > 0; sent-- {
		res := <-reply
		collected[res.partition] = res
	}

	var results []Result
	var failed []PartitionError
	for i, res := range collected {
		if res.err != nil {
			failed = append(failed, PartitionError{Partition: i, PatternIDs: patternIDs(partitions[i]), Err: res.err})
			continue
		}
		results = append(results, res.results...)
	}
	c.metrics.ObserveCycle(time.Since(start))
	if len(failed) > 0 {
		c.metrics.AddFailedPartitions(len(failed))
		for _, f := range failed {
			c.logger.Warn("tracking partition failed", "partition", f.Partition, "patterns", f.PatternIDs, "error", f.Err)
		}
		return results, &CycleError{Failed: failed}
	}
	return results, nil
}

func (c *Coordinator) extract(frame Frame) (Features, error) {
	if c.extractor == nil {
		return Features{}, errors.Wrap(ErrUnavailable, "no feature extractor")
	}
	features, err := c.extractor.Extract(frame)
	if err != nil {
		return Features{}, errors.Wrapf(err, "extract features of frame %d", frame.Seq)
	}
	if features.Height == 0 {
		features.Height = frame.Height
		features.Width = frame.Width
	}
	return features, nil
}

func (c *Coordinator) work(engine *Engine, jobs <-chan job) {
	defer c.wg.Done()
	for j := range jobs {
		res := runPartition(engine, j)
		res.partition = j.partition
		j.reply <- res
	}
}

// runPartition matches every pattern of the job. A panic or error aborts the whole partition.
func runPartition(engine *Engine, j job) (res partitionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = partitionResult{err: errors.Errorf("panic: %v", r)}
		}
	}()
	results := make([]Result, 0, len(j.patterns))
	for _, p := range j.patterns {
		result, ok, err := engine.Match(p, j.features, j.frameHeight)
		if err != nil {
			return partitionResult{err: err}
		}
		if ok {
			results = append(results, result)
		}
	}
	return partitionResult{results: results}
}

func patternIDs(patterns []*Pattern) []string {
	ids := make([]string, len(patterns))
	for i, p := range patterns {
		if p != nil {
			ids[i] = p.ID
		}
	}
	return ids
}
