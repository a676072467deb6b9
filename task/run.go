package task

import (
	"context"
	"flag"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// Commands 规则决策
// 功能：对所有可以接受新相位的路口执行决策，得到本步下发的相位
// 参数：m-路口管理器，vehicles-本步车辆观测，stats-统计（可为nil）
// 返回：路口->相位，决策推迟（Delegate模式且无覆盖）的路口不下发指令，保持当前相位
func Commands(m *junction.Manager, vehicles []entity.Vehicle, stats *Stats) (map[entity.JunctionID]entity.PhaseIndex, error) {
	decisions, err := m.Decide(vehicles)
	if err != nil {
		return nil, err
	}
	if stats != nil {
		for _, d := range decisions {
			stats.Record(d.Rule)
		}
	}
	return lo.MapValues(decisions, func(d trafficlight.Decision, _ entity.JunctionID) entity.PhaseIndex {
		return d.Phase
	}), nil
}

// Loop 驱动仿真器直到结束
// 功能：每一步对Ready的路口执行规则决策并推进仿真器
// 参数：c-上下文，s-仿真器，m-路口管理器（须与仿真器使用的为同一个），stats-统计
// 返回：最后一步，出错时返回错误
func Loop(c context.Context, s sim.Simulator, m *junction.Manager, stats *Stats) (*sim.Tick, error) {
	tick, err := s.Reset(c)
	if err != nil {
		return nil, err
	}
	for step := 1; !tick.Done(); step++ {
		commands, err := Commands(m, tick.Vehicles, stats)
		if err != nil {
			return tick, err
		}
		tick, err = s.Advance(c, commands)
		if err != nil {
			return nil, err
		}
		if step%*heartBeatInterval == 0 {
			log.Infof("STEP: %d(t=%.1f) vehicles: %d %s", step, tick.Time, len(tick.Vehicles), stats)
		}
	}
	log.Infof("simulation finished: %s", tick.Reason)
	return tick, nil
}

// Run 运行
func (ctx *Context) Run() {
	if _, err := Loop(context.Background(), ctx.simulator, ctx.junctionManager, ctx.stats); err != nil {
		log.Errorf("engine stopped: %v", err)
	}
	log.Infof("engine complete: %s", ctx.stats)
	ctx.Close()
}
