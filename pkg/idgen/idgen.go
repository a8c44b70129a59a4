package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// Generator 递增 ID 生成器
// 使用 Sonyflake 算法生成全局唯一且递增的 ID
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

// DefaultGenerator 返回默认的 ID 生成器
func DefaultGenerator() *Generator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = New()
	})
	return defaultGenerator
}

// New 创建新的 ID 生成器
func New() *Generator {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if sf == nil {
		// 机器 ID 获取失败时退化为以当前时间为起点
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: time.Now(),
		})
	}

	return &Generator{
		sf: sf,
	}
}

// generateIDWithPrefix 生成带前缀的 ID
func (g *Generator) generateIDWithPrefix(prefix, errorMsg string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errorMsg, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// GenerateInstanceID 生成数据库实例 ID（格式：dbi-{递增 ID}）
func (g *Generator) GenerateInstanceID() (string, error) {
	return g.generateIDWithPrefix("dbi", "generate instance ID")
}

// GenerateClusterID 生成集群 ID（格式：cls-{递增 ID}）
func (g *Generator) GenerateClusterID() (string, error) {
	return g.generateIDWithPrefix("cls", "generate cluster ID")
}

// GenerateBackupID 生成备份 ID（格式：bak-{递增 ID}）
func (g *Generator) GenerateBackupID() (string, error) {
	return g.generateIDWithPrefix("bak", "generate backup ID")
}

// GenerateShardID 生成分片 ID（格式：shd-{递增 ID}）
func (g *Generator) GenerateShardID() (string, error) {
	return g.generateIDWithPrefix("shd", "generate shard ID")
}

// GenerateConfigGroupID 生成配置组 ID（格式：cfg-{递增 ID}）
func (g *Generator) GenerateConfigGroupID() (string, error) {
	return g.generateIDWithPrefix("cfg", "generate configuration group ID")
}

// GenerateReservationID 生成配额预留 ID（格式：rsv-{递增 ID}）
func (g *Generator) GenerateReservationID() (string, error) {
	return g.generateIDWithPrefix("rsv", "generate reservation ID")
}

// GenerateID 生成通用递增 ID
func (g *Generator) GenerateID() (uint64, error) {
	return g.sf.NextID()
}

// 包级别的便捷函数，使用默认生成器

// GenerateInstanceID 使用默认生成器生成实例 ID
func GenerateInstanceID() (string, error) {
	return DefaultGenerator().GenerateInstanceID()
}

// GenerateClusterID 使用默认生成器生成集群 ID
func GenerateClusterID() (string, error) {
	return DefaultGenerator().GenerateClusterID()
}

// GenerateBackupID 使用默认生成器生成备份 ID
func GenerateBackupID() (string, error) {
	return DefaultGenerator().GenerateBackupID()
}

// GenerateShardID 使用默认生成器生成分片 ID
func GenerateShardID() (string, error) {
	return DefaultGenerator().GenerateShardID()
}

// GenerateConfigGroupID 使用默认生成器生成参数组 ID
func GenerateConfigGroupID() (string, error) {
	return DefaultGenerator().GenerateConfigGroupID()
}

// GenerateReservationID 使用默认生成器生成配额预留 ID
func GenerateReservationID() (string, error) {
	return DefaultGenerator().GenerateReservationID()
}

// GenerateID 使用默认生成器生成通用递增 ID
func GenerateID() (uint64, error) {
	return DefaultGenerator().GenerateID()
}
