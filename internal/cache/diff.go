package cache

import (
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/metadata"
)

// FileType 标记差异条目所属分类。
type FileType string

const (
	FileTypeClient  FileType = "client"
	FileTypeLibrary FileType = "library"
	FileTypeMod     FileType = "mod"
	FileTypeNative  FileType = "native"
	FileTypeAsset   FileType = "asset"
)

// FileChange 描述单个文件的变化。RemoteKey/LocalPath 统一为
// {ns}/{category}/{relative_path} 形式；URL 为空的条目不进解析索引。
type FileChange struct {
	Type      FileType
	RemoteKey string
	LocalPath string
	URL       string
}

// FileDiff 是两个快照之间按分类计算出的增/改/删集合。
type FileDiff struct {
	Added    []FileChange
	Modified []FileChange
	Removed  []FileChange
}

// Empty 返回差异是否为空。
func (d *FileDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// ComputeDiff 比较新旧快照。old 为 nil 时视为首次扫描：URL 与 Path 均存在的
// 记录全部标记为新增。每个分类独立按其标识键建表，总复杂度 O(N)。
func ComputeDiff(server string, old, next *metadata.VersionBuilder) *FileDiff {
	diff := &FileDiff{}
	if old == nil {
		diff.addAll(server, next)
		return diff
	}

	diff.diffClient(server, old, next)
	diff.diffLibraries(server, old, next)
	diff.diffMods(server, old, next)
	diff.diffNatives(server, old, next)
	diff.diffAssets(server, old, next)
	return diff
}

// Apply 把差异增量写进快照的解析索引：新增/修改做 AddResolution（去掉命名
// 空间前缀后的 "category/x" 形式），删除做 RemoveResolution。URL 为空跳过。
func (d *FileDiff) Apply(builder *metadata.VersionBuilder) {
	for _, change := range d.Added {
		if change.URL != "" {
			builder.AddResolution(change.URL, fileutil.StripNamespacePrefix(change.LocalPath))
		}
	}
	for _, change := range d.Modified {
		if change.URL != "" {
			builder.AddResolution(change.URL, fileutil.StripNamespacePrefix(change.LocalPath))
		}
	}
	for _, change := range d.Removed {
		if change.URL != "" {
			builder.RemoveResolution(change.URL)
		}
	}
}

func clientChange(server string, c *metadata.Client) FileChange {
	return FileChange{
		Type:      FileTypeClient,
		RemoteKey: server + "/client/" + c.Path,
		LocalPath: server + "/client/" + c.Path,
		URL:       c.URL,
	}
}

func (d *FileDiff) diffClient(server string, old, next *metadata.VersionBuilder) {
	switch {
	case old.Client == nil && next.Client != nil:
		d.Added = append(d.Added, clientChange(server, next.Client))
	case old.Client != nil && next.Client == nil:
		d.Removed = append(d.Removed, clientChange(server, old.Client))
	case old.Client != nil && next.Client != nil:
		if old.Client.SHA1 != next.Client.SHA1 || old.Client.Path != next.Client.Path {
			if old.Client.Path != next.Client.Path {
				d.Removed = append(d.Removed, clientChange(server, old.Client))
				d.Added = append(d.Added, clientChange(server, next.Client))
			} else {
				d.Modified = append(d.Modified, clientChange(server, next.Client))
			}
		}
	}
}

func libraryChange(server string, lib metadata.Library) FileChange {
	return FileChange{
		Type:      FileTypeLibrary,
		RemoteKey: server + "/libraries/" + lib.Path,
		LocalPath: server + "/libraries/" + lib.Path,
		URL:       lib.URL,
	}
}

func (d *FileDiff) diffLibraries(server string, old, next *metadata.VersionBuilder) {
	oldMap := make(map[string]metadata.Library, len(old.Libraries))
	for _, lib := range old.Libraries {
		if lib.Path != "" {
			oldMap[lib.Path] = lib
		}
	}
	newMap := make(map[string]metadata.Library, len(next.Libraries))
	for _, lib := range next.Libraries {
		if lib.Path != "" {
			newMap[lib.Path] = lib
		}
	}

	for path, lib := range newMap {
		if oldLib, ok := oldMap[path]; ok {
			if oldLib.SHA1 != lib.SHA1 {
				d.Modified = append(d.Modified, libraryChange(server, lib))
			}
		} else {
			d.Added = append(d.Added, libraryChange(server, lib))
		}
	}
	for path, lib := range oldMap {
		if _, ok := newMap[path]; !ok {
			d.Removed = append(d.Removed, libraryChange(server, lib))
		}
	}
}

func modChange(server string, m metadata.Mod) FileChange {
	return FileChange{
		Type:      FileTypeMod,
		RemoteKey: server + "/mods/" + m.Name,
		LocalPath: server + "/mods/" + m.Name,
		URL:       m.URL,
	}
}

func (d *FileDiff) diffMods(server string, old, next *metadata.VersionBuilder) {
	oldMap := make(map[string]metadata.Mod, len(old.Mods))
	for _, m := range old.Mods {
		oldMap[m.Name] = m
	}
	newMap := make(map[string]metadata.Mod, len(next.Mods))
	for _, m := range next.Mods {
		newMap[m.Name] = m
	}

	for name, m := range newMap {
		if oldMod, ok := oldMap[name]; ok {
			if oldMod.SHA1 != m.SHA1 {
				d.Modified = append(d.Modified, modChange(server, m))
			}
		} else {
			d.Added = append(d.Added, modChange(server, m))
		}
	}
	for name, m := range oldMap {
		if _, ok := newMap[name]; !ok {
			d.Removed = append(d.Removed, modChange(server, m))
		}
	}
}

func nativeChange(server string, n metadata.Native) FileChange {
	return FileChange{
		Type:      FileTypeNative,
		RemoteKey: server + "/natives/" + n.Path,
		LocalPath: server + "/natives/" + n.Path,
		URL:       n.URL,
	}
}

// nativeKey 按 OS 桶限定文件名的标识范围。
func nativeKey(n metadata.Native) string {
	return n.OS + "/" + n.Name
}

func (d *FileDiff) diffNatives(server string, old, next *metadata.VersionBuilder) {
	switch {
	case old.Natives == nil && next.Natives != nil:
		for _, n := range next.Natives {
			d.Added = append(d.Added, nativeChange(server, n))
		}
	case old.Natives != nil && next.Natives == nil:
		for _, n := range old.Natives {
			d.Removed = append(d.Removed, nativeChange(server, n))
		}
	case old.Natives != nil && next.Natives != nil:
		oldMap := make(map[string]metadata.Native, len(old.Natives))
		for _, n := range old.Natives {
			oldMap[nativeKey(n)] = n
		}
		newMap := make(map[string]metadata.Native, len(next.Natives))
		for _, n := range next.Natives {
			newMap[nativeKey(n)] = n
		}

		for key, n := range newMap {
			if oldNative, ok := oldMap[key]; ok {
				if oldNative.SHA1 != n.SHA1 {
					d.Modified = append(d.Modified, nativeChange(server, n))
				}
			} else {
				d.Added = append(d.Added, nativeChange(server, n))
			}
		}
		for key, n := range oldMap {
			if _, ok := newMap[key]; !ok {
				d.Removed = append(d.Removed, nativeChange(server, n))
			}
		}
	}
}

func assetChange(server string, a metadata.Asset) FileChange {
	return FileChange{
		Type:      FileTypeAsset,
		RemoteKey: server + "/assets/" + a.Path,
		LocalPath: server + "/assets/" + a.Path,
		URL:       a.URL,
	}
}

func (d *FileDiff) diffAssets(server string, old, next *metadata.VersionBuilder) {
	oldMap := make(map[string]metadata.Asset, len(old.Assets))
	for _, a := range old.Assets {
		if a.Path != "" {
			oldMap[a.Path] = a
		}
	}
	newMap := make(map[string]metadata.Asset, len(next.Assets))
	for _, a := range next.Assets {
		if a.Path != "" {
			newMap[a.Path] = a
		}
	}

	for path, a := range newMap {
		if oldAsset, ok := oldMap[path]; ok {
			if oldAsset.Hash != a.Hash {
				d.Modified = append(d.Modified, assetChange(server, a))
			}
		} else {
			d.Added = append(d.Added, assetChange(server, a))
		}
	}
	for path, a := range oldMap {
		if _, ok := newMap[path]; !ok {
			d.Removed = append(d.Removed, assetChange(server, a))
		}
	}
}

func (d *FileDiff) addAll(server string, next *metadata.VersionBuilder) {
	if next.Client != nil && next.Client.URL != "" && next.Client.Path != "" {
		d.Added = append(d.Added, clientChange(server, next.Client))
	}
	for _, lib := range next.Libraries {
		if lib.URL != "" && lib.Path != "" {
			d.Added = append(d.Added, libraryChange(server, lib))
		}
	}
	for _, m := range next.Mods {
		if m.URL != "" && m.Path != "" {
			d.Added = append(d.Added, modChange(server, m))
		}
	}
	for _, n := range next.Natives {
		if n.URL != "" && n.Path != "" {
			d.Added = append(d.Added, nativeChange(server, n))
		}
	}
	for _, a := range next.Assets {
		if a.URL != "" && a.Path != "" {
			d.Added = append(d.Added, assetChange(server, a))
		}
	}
}
