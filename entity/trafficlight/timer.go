package trafficlight

import (
	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// Timing 相位时长参数(s)
type Timing struct {
	MinGreen float64 `yaml:"min_green"` // 最短绿灯时间，重复当前相位时延长该时长
	Yellow   float64 `yaml:"yellow"`    // 黄灯时间
	AllRed   float64 `yaml:"all_red"`   // 全红时间，0表示没有全红
}

// DefaultTiming 默认时长
func DefaultTiming() Timing {
	return Timing{MinGreen: 15, Yellow: 3, AllRed: 3}
}

// stage 过渡阶段
type stage struct {
	states   []mapv2.LightState // 灯色（无信号灯布局时为nil）
	duration float64
}

// Timer 路口信号灯计时状态机
// 功能：保证最短绿灯与黄灯、全红过渡，只有在当前相位绿灯走完且没有过渡阶段时才能接受新相位
// 说明：过渡顺序为 相位1--黄灯--全红--相位2，与相位1相同的指令仅延长绿灯
type Timer struct {
	numPhases   int
	phases      [][]mapv2.LightState // 可选的灯色布局（nil表示只计时）
	timing      Timing
	index       entity.PhaseIndex // 当前相位
	nextIndex   entity.PhaseIndex // 过渡结束后的相位
	remainingT  float64           // 当前阶段剩余时间
	totalTime   float64           // 当前阶段总时长
	transitions []stage           // 过渡阶段
	repeatCount int               // 当前相位连续被选择的次数
}

// NewTimer 创建计时状态机
// 参数：numPhases-相位数，phases-每个相位的灯色（可为nil，非nil时长度应等于numPhases），timing-时长参数
// 返回：初始处于相位0、可以立即接受指令的状态机
func NewTimer(numPhases int, phases [][]mapv2.LightState, timing Timing) *Timer {
	return &Timer{
		numPhases: numPhases,
		phases:    phases,
		timing:    timing,
		index:     0,
		nextIndex: 0,
	}
}

// Reset 回到初始状态
func (t *Timer) Reset() {
	t.index = 0
	t.nextIndex = 0
	t.remainingT = 0
	t.totalTime = 0
	t.transitions = nil
	t.repeatCount = 0
}

// Ready 是否可以接受新的相位指令
func (t *Timer) Ready() bool {
	return len(t.transitions) == 0 && t.remainingT <= 0
}

// Current 当前相位（过渡期间为过渡前的相位）
func (t *Timer) Current() entity.PhaseIndex {
	return t.index
}

// Next 过渡结束后的相位，不在过渡中时等于当前相位
func (t *Timer) Next() entity.PhaseIndex {
	if len(t.transitions) > 0 {
		return t.nextIndex
	}
	return t.index
}

// InTransition 是否处于黄灯/全红过渡
func (t *Timer) InTransition() bool {
	return len(t.transitions) > 0
}

// RemainingTime 当前阶段剩余时间，相位数小于2（无信控）时为INF
func (t *Timer) RemainingTime() float64 {
	if t.numPhases < 2 {
		return mathutil.INF
	}
	return max(t.remainingT, 0)
}

// Command 下发相位指令
// 功能：在Ready时接受指令，与当前相位相同则延长最短绿灯，否则进入黄灯过渡
// 参数：phase-目标相位
// 返回：是否接受了指令（非Ready或相位无效时不接受）
func (t *Timer) Command(phase entity.PhaseIndex) bool {
	if !t.Ready() || phase < 0 || int(phase) >= t.numPhases {
		return false
	}
	if t.numPhases < 2 {
		// 无信控，常绿
		return true
	}
	if phase == t.index {
		t.remainingT += t.timing.MinGreen
		t.repeatCount++
		t.totalTime = t.remainingT
		return true
	}
	t.nextIndex = phase
	t.repeatCount = 1
	t.transitions = t.buildTransitions(t.index, phase)
	t.remainingT += t.transitions[0].duration
	t.totalTime = t.remainingT
	return true
}

// Update 推进时间
// 功能：扣减剩余时间，走完一个过渡阶段后进入下一个阶段，过渡结束后进入目标相位并开始最短绿灯
// 参数：dt-时间步长
func (t *Timer) Update(dt float64) {
	if t.numPhases < 2 {
		return
	}
	t.remainingT -= dt
	for t.remainingT <= 0 && len(t.transitions) > 0 {
		if len(t.transitions) == 1 {
			// 过渡相位->目标相位
			t.index = t.nextIndex
			t.transitions = nil
			t.remainingT += t.timing.MinGreen
		} else {
			// 过渡相位->下一个过渡相位
			t.transitions = t.transitions[1:]
			t.remainingT += t.transitions[0].duration
		}
		t.totalTime = t.remainingT
	}
}

// States 当前阶段各路口车道的灯色，没有灯色布局时返回nil
func (t *Timer) States() []mapv2.LightState {
	if t.phases == nil {
		return nil
	}
	if len(t.transitions) > 0 {
		return t.transitions[0].states
	}
	return t.phases[t.index]
}

// RepeatCount 当前相位连续被选择的次数
func (t *Timer) RepeatCount() int {
	return t.repeatCount
}

// buildTransitions 生成黄灯与全红过渡阶段
// 算法说明：
// 1. 黄灯：当前为绿灯、下一相位为红灯的车道变为黄灯
// 2. 全红：当前为红灯、下一相位为绿灯的车道保持红灯，没有此类车道或全红时间为0时省略
// 3. 没有灯色布局时只保留时长
func (t *Timer) buildTransitions(from, to entity.PhaseIndex) []stage {
	if t.phases == nil {
		stages := []stage{{duration: t.timing.Yellow}}
		if t.timing.AllRed > 0 {
			stages = append(stages, stage{duration: t.timing.AllRed})
		}
		return stages
	}
	current := t.phases[from]
	next := t.phases[to]
	yellowPhase := make([]mapv2.LightState, len(current))
	allRedPhase := make([]mapv2.LightState, len(next))
	copy(yellowPhase, current)
	copy(allRedPhase, next)
	hasAllRedPhase := false
	for i, state := range current {
		if state == mapv2.LightState_LIGHT_STATE_GREEN && next[i] == mapv2.LightState_LIGHT_STATE_RED {
			yellowPhase[i] = mapv2.LightState_LIGHT_STATE_YELLOW
		}
		if state == mapv2.LightState_LIGHT_STATE_RED && next[i] == mapv2.LightState_LIGHT_STATE_GREEN {
			allRedPhase[i] = mapv2.LightState_LIGHT_STATE_RED
			hasAllRedPhase = true
		}
	}
	stages := []stage{{states: yellowPhase, duration: t.timing.Yellow}}
	if hasAllRedPhase && t.timing.AllRed > 0 {
		stages = append(stages, stage{states: allRedPhase, duration: t.timing.AllRed})
	}
	return stages
}

// Program 当前阶段对应的信号灯程序
// 功能：生成只有一个阶段的信号灯程序，供下发至仿真器
// 参数：junctionID-仿真器中的路口ID
// 返回：信号灯程序，没有灯色布局时返回nil
func (t *Timer) Program(junctionID int32) *mapv2.TrafficLight {
	states := t.States()
	if states == nil {
		return nil
	}
	return &mapv2.TrafficLight{
		JunctionId: junctionID,
		Phases: []*mapv2.Phase{{
			Duration: max(t.totalTime, t.RemainingTime()),
			States:   append([]mapv2.LightState(nil), states...),
		}},
	}
}
