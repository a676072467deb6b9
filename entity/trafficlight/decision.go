package trafficlight

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// Rule 产生决策的规则
type Rule int

const (
	RuleNone            Rule = iota // 未决策（交由外部策略）
	RulePriority                    // 特种车辆优先
	RuleObstruction                 // 障碍物避让
	RuleBlockedFallback             // 所有相位均被阻塞，取最小相位
	RulePressure                    // 排队压力最大
)

func (r Rule) String() string {
	switch r {
	case RuleNone:
		return "none"
	case RulePriority:
		return "priority"
	case RuleObstruction:
		return "obstruction"
	case RuleBlockedFallback:
		return "blocked-fallback"
	case RulePressure:
		return "pressure"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// Decision 相位决策结果：Forced(相位) 或 Deferred
type Decision struct {
	Phase entity.PhaseIndex
	Rule  Rule
}

// Forced 强制相位
func Forced(phase entity.PhaseIndex, rule Rule) Decision {
	return Decision{Phase: phase, Rule: rule}
}

// Deferred 不做决策，由调用者决定相位
func Deferred() Decision {
	return Decision{Phase: entity.NoPhase, Rule: RuleNone}
}

// IsForced 是否给出了相位
func (d Decision) IsForced() bool {
	return d.Rule != RuleNone
}

// IsOverride 是否为覆盖规则（优先车辆、障碍物）给出的相位
func (d Decision) IsOverride() bool {
	switch d.Rule {
	case RulePriority, RuleObstruction, RuleBlockedFallback:
		return true
	}
	return false
}

func (d Decision) String() string {
	if !d.IsForced() {
		return "deferred"
	}
	return fmt.Sprintf("forced(%d, %s)", d.Phase, d.Rule)
}

// Mode 无覆盖时的兜底模式，部署时确定
type Mode int

const (
	Pressure Mode = iota // 按静止排队车辆数选择相位
	Delegate             // 交由外部策略
)

// ParseMode 解析模式字符串
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pressure":
		return Pressure, nil
	case "delegate":
		return Delegate, nil
	default:
		return Pressure, fmt.Errorf("unknown fallback mode %q", s)
	}
}

func (m Mode) String() string {
	if m == Delegate {
		return "delegate"
	}
	return "pressure"
}

// UnmarshalYAML 从YAML字符串解析模式
func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML 输出模式字符串
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}
