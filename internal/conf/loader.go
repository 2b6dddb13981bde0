package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 读取并解析计费服务的 bootstrap 配置,解析成功后立即做必填项校验。
// 一次性批处理进程 (如续费 cron) 用它直接取配置,不挂载可热更新的配置源。
func Load(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read billing config %s: %w", path, err)
	}

	var c Bootstrap
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse billing config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid billing config %s: %w", path, err)
	}

	return &c, nil
}
