package input

import (
	"fmt"
	"os"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"gopkg.in/yaml.v2"
)

// descriptionFile 路口描述YAML文件
type descriptionFile struct {
	Junctions []topology.Description `yaml:"junctions"`
}

// ParseDescriptions 解析路口描述YAML
// 说明：只做格式检查，拓扑合法性由topology.New检查
func ParseDescriptions(data []byte) ([]topology.Description, error) {
	var f descriptionFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}
	if len(f.Junctions) == 0 {
		return nil, fmt.Errorf("%w: no junction described", topology.ErrConfiguration)
	}
	return f.Junctions, nil
}

// LoadDescriptions 读取路口描述YAML文件
func LoadDescriptions(path string) ([]topology.Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	descs, err := ParseDescriptions(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return descs, nil
}
