// 仿真器接口：信控核心只通过该接口推进仿真并读取车辆与路口状态
package sim

import (
	"context"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// JunctionTick 路口在某一仿真步的状态
type JunctionTick struct {
	Features [][]float64       // 流向特征，每个流向一行
	Ready    bool              // 是否可以接受新相位（最短绿灯与过渡已走完）
	Phase    entity.PhaseIndex // 仿真器中实际执行的相位
}

// Tick 一个仿真步的结果
type Tick struct {
	Time      float64                            // 仿真时间(s)
	Vehicles  []entity.Vehicle                   // 全部车辆观测
	Junctions map[entity.JunctionID]JunctionTick // 路口状态
	Terminal  bool                               // 仿真结束（碰撞、异常等）
	Truncated bool                               // 达到时间上限
	Reason    string                             // 结束原因
}

// Done 是否结束
func (t *Tick) Done() bool {
	return t.Terminal || t.Truncated
}

// Simulator 仿真器
// 说明：Advance为阻塞调用，返回时仿真器已完成一步；同一时刻只有一个调用者
type Simulator interface {
	// Reset 开始新的一轮仿真，返回初始状态
	Reset(ctx context.Context) (*Tick, error)
	// Advance 下发各路口的相位指令并推进一步
	Advance(ctx context.Context, commands map[entity.JunctionID]entity.PhaseIndex) (*Tick, error)
}
