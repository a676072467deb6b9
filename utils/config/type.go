package config

import (
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 说明：未指定时使用默认命名规则：{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 输入数据配置
// 说明：路口描述可来自地图（map），也可来自YAML文件（junctions），后者优先
type Input struct {
	URI       string     `yaml:"uri,omitempty"`       // MongoDB连接字符串
	Map       *InputPath `yaml:"map,omitempty"`       // 地图
	Junctions string     `yaml:"junctions,omitempty"` // 路口描述YAML文件
	Scenario  string     `yaml:"scenario,omitempty"`  // 回放场景YAML文件
}

// ControlStep 指定模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数，0表示不限
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 控制配置
type Control struct {
	Step      ControlStep `yaml:"step"`
	Junctions []int32     `yaml:"junctions,omitempty"` // 只控制这些地图路口，为空则控制全部有信控的路口
}

// Signal 信号控制配置
type Signal struct {
	Mode   trafficlight.Mode   `yaml:"mode"`   // 无覆盖时的兜底模式：pressure|delegate
	Timing trafficlight.Timing `yaml:"timing"` // 最短绿灯、黄灯、全红时长
}

// Env 决策周期聚合配置
type Env struct {
	HistoryLength int    `yaml:"history_length"` // 历史缓冲区长度
	Reward        string `yaml:"reward"`         // 奖励计算方式：sum|mean
	MaxSubTicks   int    `yaml:"max_sub_ticks"`  // 单个决策周期的最多仿真步数，0表示不限
}

// Sim 外部仿真器配置
type Sim struct {
	TypeLabel string `yaml:"type_label"` // 人员标签中表示车辆类型的键
}

// Config YAML配置文件的根结构
type Config struct {
	Input    Input                   `yaml:"input"`              // 输入
	Control  Control                 `yaml:"control"`            // 模拟过程控制
	Signal   Signal                  `yaml:"signal"`             // 信号控制
	Override trafficlight.Thresholds `yaml:"override,omitempty"` // 覆盖规则阈值
	Env      Env                     `yaml:"env,omitempty"`      // 决策周期聚合
	Sim      Sim                     `yaml:"sim,omitempty"`      // 外部仿真器
}
