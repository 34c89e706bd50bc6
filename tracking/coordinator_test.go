package tracking

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

const scenePatterns = 8

// scene registers scenePatterns patterns and places all but two of them in the frame
func scene() (*staticExtractor, []*Pattern) {
	dims := scenePatterns*pointsPerPattern + 8
	patterns := make([]*Pattern, scenePatterns)
	var placements []placement
	for i := range patterns {
		patterns[i] = syntheticPattern(string(rune('a'+i))+".png", i, dims)
		if i == 2 || i == 5 {
			continue
		}
		transform, _ := similarity(float64(i*40), 0.8+0.1*float64(i), 60+float64(i)*60, 80+float64(i%3)*120)
		placements = append(placements, placement{slot: i, n: pointsPerPattern, transform: transform})
	}
	return &staticExtractor{frame: syntheticFrame(dims, placements...)}, patterns
}

func TestTrackConcurrentEquivalence(t *testing.T) {
	extractor, patterns := scene()
	sequential := NewCoordinator(CoordinatorConfig{Workers: 1, Extractor: extractor})
	defer sequential.Close()

	want, err := sequential.Track(testFrame(), patterns)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if len(want) != scenePatterns-2 {
		t.Fatalf("Expected %d results, got %d", scenePatterns-2, len(want))
	}
	for i := 1; i < len(want); i++ {
		if want[i-1].PatternID > want[i].PatternID {
			t.Errorf("Track must keep pattern order, got %s before %s", want[i-1].PatternID, want[i].PatternID)
		}
	}

	sortResults := cmpopts.SortSlices(func(a, b Result) bool { return a.PatternID < b.PatternID })
	for _, workers := range []int{1, 2, 3, 4, 8, 11} {
		coordinator := NewCoordinator(CoordinatorConfig{Workers: workers, Extractor: extractor})
		// the pool is reused across cycles
		for cycle := 0; cycle < 3; cycle++ {
			got, err := coordinator.TrackConcurrent(testFrame(), patterns)
			if err != nil {
				t.Fatalf("TrackConcurrent with %d workers failed: %v", workers, err)
			}
			if diff := cmp.Diff(want, got, sortResults, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Workers %d cycle %d: results differ (-want +got):\n%s", workers, cycle, diff)
			}
		}
		coordinator.Close()
	}
}

func TestTrackConcurrentPartitionOrder(t *testing.T) {
	extractor, patterns := scene()
	coordinator := NewCoordinator(CoordinatorConfig{Workers: 2, Extractor: extractor})
	defer coordinator.Close()
	got, err := coordinator.TrackConcurrent(testFrame(), patterns)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.PatternID
	}
	// partition 0 holds a, c, e, g and partition 1 holds b, d, f, h; c and f are absent
	want := []string{"a.png", "e.png", "g.png", "b.png", "d.png", "h.png"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("Unexpected order (-want +got):\n%s", diff)
	}
}

// panicMatcher panics on query sets of a specific size
type panicMatcher struct {
	BruteForceMatcher
	size int
}

func (m *panicMatcher) KnnMatch(query, train [][]float32, k int) ([][]DMatch, error) {
	if len(query) == m.size {
		panic("matcher exploded")
	}
	return m.BruteForceMatcher.KnnMatch(query, train, k)
}

func (m *panicMatcher) Clone() Matcher {
	return &panicMatcher{size: m.size}
}

func TestTrackConcurrentIsolatesFailures(t *testing.T) {
	extractor, patterns := scene()
	broken := &Pattern{ID: "broken"}
	exploding := &Pattern{ID: "exploding", Features: Features{
		Keypoints:   []Point{{0, 0}, {1, 1}, {2, 2}},
		Descriptors: make([][]float32, 3),
		Width:       10,
		Height:      10,
	}}
	// with 3 workers: partition 0 = a, broken, f, h; partition 1 = b, d, exploding; partition 2 = c, e, g
	input := []*Pattern{patterns[0], patterns[1], patterns[2], broken, patterns[3], patterns[4], patterns[5], exploding, patterns[6], patterns[7]}

	coordinator := NewCoordinator(CoordinatorConfig{
		Workers:   3,
		Extractor: extractor,
		NewEngine: func() *Engine {
			return NewEngine(&panicMatcher{size: 3}, NewRANSACEstimatorDefault())
		},
	})
	defer coordinator.Close()

	got, err := coordinator.TrackConcurrent(testFrame(), input)
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected *CycleError, got %v", err)
	}
	failed := make([]int, len(cycleErr.Failed))
	for i, f := range cycleErr.Failed {
		failed[i] = f.Partition
	}
	sort.Ints(failed)
	if diff := cmp.Diff([]int{0, 1}, failed); diff != "" {
		t.Errorf("Unexpected failed partitions (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrEmptyDescriptors) {
		t.Error("Cycle error must expose the partition causes")
	}

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.PatternID
	}
	// partition 2 survives; c is absent from the frame
	if diff := cmp.Diff([]string{"e.png", "g.png"}, ids); diff != "" {
		t.Errorf("Unexpected partial results (-want +got):\n%s", diff)
	}

	// the pool keeps working after a panic
	got, err = coordinator.TrackConcurrent(testFrame(), patterns)
	if err != nil {
		t.Fatalf("Pool broken after failure: %v", err)
	}
	if len(got) != scenePatterns-2 {
		t.Errorf("Expected %d results, got %d", scenePatterns-2, len(got))
	}
}

func TestCoordinatorClosed(t *testing.T) {
	extractor, patterns := scene()
	coordinator := NewCoordinator(CoordinatorConfig{Extractor: extractor})
	if coordinator.Workers() != DefaultWorkers {
		t.Errorf("Expected %d workers, got %d", DefaultWorkers, coordinator.Workers())
	}
	coordinator.Close()
	coordinator.Close()
	if _, err := coordinator.TrackConcurrent(testFrame(), patterns); !errors.Is(err, ErrCoordinatorClosed) {
		t.Errorf("Expected ErrCoordinatorClosed, got %v", err)
	}
}

func TestCoordinatorWithoutExtractor(t *testing.T) {
	coordinator := NewCoordinator(CoordinatorConfig{Workers: 1})
	defer coordinator.Close()
	if _, err := coordinator.Track(testFrame(), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
