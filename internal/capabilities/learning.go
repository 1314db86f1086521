package capabilities

import (
	"sort"
	"sync"
	"time"
)

// Experience records one completed task attempt, the unit LearningMixin
// aggregates into recommendations.
type Experience struct {
	TaskType string
	Success  bool
	Duration time.Duration
	Recorded time.Time
}

// Recommendation summarizes past experience for one task type.
type Recommendation struct {
	TaskType     string
	SuccessRate  float64
	MeanDuration time.Duration
	SampleSize   int
	Confidence   float64
}

// LearningMixin accumulates Experiences and derives Recommendations from
// them, grouped by task type.
type LearningMixin struct {
	mu          sync.Mutex
	experiences []Experience
}

// NewLearningMixin constructs an empty LearningMixin.
func NewLearningMixin() *LearningMixin { return &LearningMixin{} }

// Record appends one Experience.
func (l *LearningMixin) Record(e Experience) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.experiences = append(l.experiences, e)
}

// Recommendations groups recorded experience by task type and ranks it by
// success rate descending, then mean duration ascending. Confidence is
// success_rate * min(1, n/5): five samples is enough to trust a task
// type's success rate at face value.
func (l *LearningMixin) Recommendations() []Recommendation {
	l.mu.Lock()
	defer l.mu.Unlock()

	type agg struct {
		n         int
		successes int
		totalDur  time.Duration
	}
	byType := map[string]*agg{}
	var order []string
	for _, e := range l.experiences {
		a, ok := byType[e.TaskType]
		if !ok {
			a = &agg{}
			byType[e.TaskType] = a
			order = append(order, e.TaskType)
		}
		a.n++
		if e.Success {
			a.successes++
		}
		a.totalDur += e.Duration
	}

	out := make([]Recommendation, 0, len(order))
	for _, taskType := range order {
		a := byType[taskType]
		successRate := float64(a.successes) / float64(a.n)
		meanDuration := a.totalDur / time.Duration(a.n)
		confidence := successRate * minF(1, float64(a.n)/5)
		out = append(out, Recommendation{
			TaskType:     taskType,
			SuccessRate:  successRate,
			MeanDuration: meanDuration,
			SampleSize:   a.n,
			Confidence:   confidence,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].MeanDuration < out[j].MeanDuration
	})
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
