package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/env"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/policy"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Episode 一轮回放的结果
type Episode struct {
	ID        string
	Return    float64 // 奖励之和
	Epochs    int     // 决策周期数
	SubTicks  int     // 仿真步数
	Overrides int     // 覆盖规则生效的仿真步数
	Reason    string  // 结束原因
}

// Summary 多轮回放的统计
type Summary struct {
	Episodes   []Episode
	MeanReturn float64
	StdReturn  float64
	MinReturn  float64
	MaxReturn  float64
}

func (s Summary) String() string {
	return fmt.Sprintf("episodes=%d return mean=%.2f std=%.2f min=%.2f max=%.2f",
		len(s.Episodes), s.MeanReturn, s.StdReturn, s.MinReturn, s.MaxReturn)
}

// runEpisode 回放一轮
// 算法说明：Reset后反复由策略给出候选相位并Step，直到仿真结束
func runEpisode(ctx context.Context, e *env.Env, p policy.Policy, numPhases int) (Episode, error) {
	history, err := e.Reset(ctx)
	if err != nil {
		return Episode{}, err
	}
	ep := Episode{ID: e.Episode()}
	obs := policy.Observation{History: history, NumPhases: numPhases}
	for {
		res, err := e.Step(ctx, p.Act(obs))
		if err != nil {
			return ep, fmt.Errorf("episode %s epoch %d: %w", ep.ID, obs.Epoch, err)
		}
		ep.Return += res.Reward
		ep.Epochs = res.Info.Epoch
		ep.SubTicks += res.Info.SubTicks
		ep.Overrides += len(res.Info.Overrides())
		for _, o := range res.Info.Overrides() {
			log.Debugf("episode %s tick %d: %s forced phase %d", ep.ID, o.Tick, o.Rule, o.Phase)
		}
		if res.Terminal || res.Truncated {
			ep.Reason = res.Info.Reason
			return ep, nil
		}
		obs = policy.Observation{History: res.History, Epoch: res.Info.Epoch, NumPhases: numPhases}
	}
}

// run 回放n轮并统计
func run(ctx context.Context, e *env.Env, p policy.Policy, numPhases, n int) (Summary, error) {
	s := Summary{Episodes: make([]Episode, 0, n)}
	for i := 0; i < n; i++ {
		ep, err := runEpisode(ctx, e, p, numPhases)
		if err != nil {
			return s, err
		}
		log.Infof("episode %d (%s): return=%.2f epochs=%d ticks=%d overrides=%d %s",
			i, ep.ID, ep.Return, ep.Epochs, ep.SubTicks, ep.Overrides, ep.Reason)
		s.Episodes = append(s.Episodes, ep)
	}
	if len(s.Episodes) == 0 {
		return s, nil
	}
	returns := lo.Map(s.Episodes, func(ep Episode, _ int) float64 { return ep.Return })
	s.MinReturn = floats.Min(returns)
	s.MaxReturn = floats.Max(returns)
	if len(returns) == 1 {
		s.MeanReturn = returns[0]
	} else {
		s.MeanReturn, s.StdReturn = stat.MeanStdDev(returns, nil)
	}
	return s, nil
}
