// Package idgen 提供递增 ID 生成器
//
// 使用 Sonyflake 算法生成全局唯一且递增的 ID。
// Sonyflake 是 Snowflake 算法的改进版本，生成的 ID 具有以下特性：
//   - 全局唯一
//   - 时间有序（递增）
//   - 64 位整数
//   - 分布式友好
//
// 生成的 ID 格式：
//   - 实例 ID: dbi-{递增数字}
//   - 集群 ID: cls-{递增数字}
//   - 备份 ID: bak-{递增数字}
//   - 分片 ID: shd-{递增数字}
//   - 配置组 ID: cfg-{递增数字}
//
// 使用方式：
//
//	// 包级别的便捷函数（使用默认生成器）
//	instanceID, err := idgen.GenerateInstanceID()
//	// instanceID: "dbi-1234567890"
//
//	// 或创建自定义生成器
//	gen := idgen.New()
//	clusterID, err := gen.GenerateClusterID()
package idgen
