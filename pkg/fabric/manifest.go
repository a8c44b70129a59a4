package fabric

import "strings"

// ManifestHeader 大对象 manifest 的标记头
// 值的格式为 "container/prefix"，指向 manifest 列出的 segment 对象
const ManifestHeader = "x-object-manifest"

// ParseManifest 解析 manifest 头的值
// "container/prefix" -> ("container", "prefix", true)
// "container/"       -> ("container", "", true)
// "container/a/b/c"  -> ("container", "a/b/c", true)
// 没有 '/' 的值不是合法的 manifest 指针，返回 ok=false
func ParseManifest(manifest string) (container, prefix string, ok bool) {
	idx := strings.Index(manifest, "/")
	if idx < 0 {
		return "", "", false
	}
	return manifest[:idx], manifest[idx+1:], true
}

// IsManifest 判断对象元信息是否为 manifest 对象
func IsManifest(info *ObjectInfo) bool {
	if info == nil {
		return false
	}
	_, found := info.Headers[ManifestHeader]
	return found
}

// ManifestTarget 取出 manifest 指向的 segment 容器和前缀
func ManifestTarget(info *ObjectInfo) (container, prefix string, ok bool) {
	if info == nil {
		return "", "", false
	}
	value, found := info.Headers[ManifestHeader]
	if !found {
		return "", "", false
	}
	return ParseManifest(value)
}
