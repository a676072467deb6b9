package env

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RewardMode 奖励计算方式
type RewardMode int

const (
	RewardSum  RewardMode = iota // 进口道车辆等待时间之和的相反数
	RewardMean                   // 进口道车辆平均等待时间的相反数
)

// ParseRewardMode 解析奖励计算方式
func ParseRewardMode(s string) (RewardMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sum":
		return RewardSum, nil
	case "mean":
		return RewardMean, nil
	default:
		return RewardSum, fmt.Errorf("unknown reward mode %q", s)
	}
}

func (m RewardMode) String() string {
	if m == RewardMean {
		return "mean"
	}
	return "sum"
}

// incomingWaiting 位于进口道上的车辆的累计等待时间
// 说明：已驶入出口道或不在路口范围内的车辆不计入
func incomingWaiting(topo *topology.Topology, vehicles []entity.Vehicle) []float64 {
	waits := make([]float64, 0, len(vehicles))
	for _, v := range vehicles {
		if topo.IsIncoming(v.Lane) {
			waits = append(waits, v.WaitingTime)
		}
	}
	return waits
}

// reward 计算奖励
func reward(mode RewardMode, waits []float64) float64 {
	if len(waits) == 0 {
		return 0
	}
	sum := floats.Sum(waits)
	if mode == RewardMean {
		return -sum / float64(len(waits))
	}
	return -sum
}

// waitingStats 等待时间的均值与标准差
func waitingStats(waits []float64) (mean, std float64) {
	switch len(waits) {
	case 0:
		return 0, 0
	case 1:
		return waits[0], 0
	}
	return stat.MeanStdDev(waits, nil)
}
