package scripted

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"gopkg.in/yaml.v2"
)

// VehicleSpec 场景中的车辆记录
type VehicleSpec struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	Lane     string   `yaml:"lane"`
	Position float64  `yaml:"position"`          // 在车道上的位置
	Speed    float64  `yaml:"speed"`             // 速度
	Waiting  *float64 `yaml:"waiting,omitempty"` // 累计等待时间，为空时按速度累计
	Length   float64  `yaml:"length,omitempty"`  // 车长
}

// Frame 一个仿真步的观测
type Frame struct {
	Vehicles []VehicleSpec `yaml:"vehicles"`
	Repeat   int           `yaml:"repeat,omitempty"`   // 重复次数，0和1均表示一次
	Terminal bool          `yaml:"terminal,omitempty"` // 本步仿真异常结束
	Reason   string        `yaml:"reason,omitempty"`   // 结束原因
}

// Scenario 回放场景
// 说明：Reset后为第0帧，之后每次Advance前进一帧，最后一帧为时间上限
type Scenario struct {
	Junctions []topology.Description `yaml:"junctions"`
	Timing    *trafficlight.Timing   `yaml:"timing,omitempty"`   // 信号时长，为空时使用调用者给出的参数
	Interval  float64                `yaml:"interval,omitempty"` // 每帧时间间隔，默认1s
	Frames    []Frame                `yaml:"frames"`
}

// ParseScenario 解析场景YAML
// 功能：展开重复帧并检查场景非空
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, err
	}
	if len(s.Junctions) == 0 {
		return nil, fmt.Errorf("%w: scenario has no junction", topology.ErrConfiguration)
	}
	if s.Interval <= 0 {
		s.Interval = 1
	}
	s.Frames = lo.FlatMap(s.Frames, func(f Frame, _ int) []Frame {
		return lo.Times(max(f.Repeat, 1), func(int) Frame {
			f := f
			f.Repeat = 0
			return f
		})
	})
	if len(s.Frames) == 0 {
		return nil, fmt.Errorf("%w: scenario has no frame", topology.ErrConfiguration)
	}
	return &s, nil
}

// LoadScenario 读取场景YAML文件
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// vehicles 帧中的车辆观测
func (f Frame) vehicles() []entity.Vehicle {
	return lo.Map(f.Vehicles, func(s VehicleSpec, _ int) entity.Vehicle {
		v := entity.NewVehicle(s.ID, s.Type, entity.LaneID(s.Lane), s.Position, s.Speed, 0)
		v.Length = s.Length
		return v
	})
}
