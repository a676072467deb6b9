package config

import (
	"fmt"
	"os"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"gopkg.in/yaml.v2"
)

const (
	RewardSum  = "sum"  // 等待时间之和的相反数
	RewardMean = "mean" // 等待时间平均值的相反数

	DefaultHistoryLength = 5
	DefaultTypeLabel     = "vehicle_type"
)

// RuntimeConfig 运行时配置
// 功能：在YAML配置的基础上补全默认值并做检查
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：为未设置的项填充默认值
// 参数：config-原始配置对象
// 返回：运行时配置，配置值非法时返回错误
// 算法说明：
// 1. 时长、阈值中为0的项取trafficlight包的默认值
// 2. 历史长度默认5，奖励默认sum，车辆类型标签默认vehicle_type
// 3. 时间间隔默认1s
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	timing := trafficlight.DefaultTiming()
	if config.Signal.Timing.MinGreen <= 0 {
		config.Signal.Timing.MinGreen = timing.MinGreen
	}
	if config.Signal.Timing.Yellow <= 0 {
		config.Signal.Timing.Yellow = timing.Yellow
	}
	if config.Signal.Timing.AllRed < 0 {
		return nil, fmt.Errorf("negative all red time %v", config.Signal.Timing.AllRed)
	}
	thresholds := trafficlight.DefaultThresholds()
	if config.Override.PriorityDistance <= 0 {
		config.Override.PriorityDistance = thresholds.PriorityDistance
	}
	if config.Override.QueueDistance <= 0 {
		config.Override.QueueDistance = thresholds.QueueDistance
	}
	if config.Override.StationarySpeed <= 0 {
		config.Override.StationarySpeed = thresholds.StationarySpeed
	}
	if config.Env.HistoryLength <= 0 {
		config.Env.HistoryLength = DefaultHistoryLength
	}
	switch config.Env.Reward {
	case "":
		config.Env.Reward = RewardSum
	case RewardSum, RewardMean:
	default:
		return nil, fmt.Errorf("unknown reward %q", config.Env.Reward)
	}
	if config.Env.MaxSubTicks < 0 {
		return nil, fmt.Errorf("negative max sub ticks %d", config.Env.MaxSubTicks)
	}
	if config.Sim.TypeLabel == "" {
		config.Sim.TypeLabel = DefaultTypeLabel
	}
	if config.Control.Step.Interval <= 0 {
		config.Control.Step.Interval = 1
	}

	rc := &RuntimeConfig{}
	rc.All = config
	rc.C = config.Control
	return rc, nil
}

// Parse 解析YAML配置（未知字段报错）
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load 读取并解析YAML配置文件
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}
