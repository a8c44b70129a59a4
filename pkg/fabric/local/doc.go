// Package local 提供基于本机 hypervisor（libvirt/KVM）的 fabric 驱动实现
//
// 用于开发和单机部署：ComputeDriver 和 VolumeDriver 直接落在本机 QEMU 上，
// guest 引导负载通过 cloud-init ISO 注入。规格（flavor）是驱动内置的静态表。
//
// flavor 变更没有真正的宿主迁移，驱动用 停机 -> VERIFY_RESIZE ->
// confirm/revert 的两段式协议模拟计算 fabric 的 resize 语义，
// confirm 时以新规格重定义 domain 并重新启动。
package local
