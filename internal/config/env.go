// 环境变量配置加载器
// 支持从.env文件加载配置

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv 从.env文件加载环境变量
// 已存在的环境变量不会被覆盖；文件不存在时直接返回
func LoadEnv(filepath string) error {
	if err := godotenv.Load(filepath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", filepath, err)
	}
	return nil
}
