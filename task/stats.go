package task

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// Stats 各规则给出的决策次数
type Stats struct {
	mtx    sync.Mutex
	counts map[trafficlight.Rule]int
}

func NewStats() *Stats {
	return &Stats{counts: make(map[trafficlight.Rule]int)}
}

// Record 记录一次决策
func (s *Stats) Record(rule trafficlight.Rule) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.counts[rule]++
}

// Count 规则给出的决策次数
func (s *Stats) Count(rule trafficlight.Rule) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.counts[rule]
}

func (s *Stats) String() string {
	if s == nil {
		return "decisions[]"
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	rules := lo.Keys(s.counts)
	slices.Sort(rules)
	return "decisions[" + strings.Join(lo.Map(rules, func(r trafficlight.Rule, _ int) string {
		return fmt.Sprintf("%s=%d", r, s.counts[r])
	}), " ") + "]"
}
