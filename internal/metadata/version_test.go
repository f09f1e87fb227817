package metadata

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleBuilder() *VersionBuilder {
	return &VersionBuilder{
		MainClass:      MainClass{MainClass: "net.example.Main"},
		RuntimeVersion: RuntimeVersion{MajorVersion: 17},
		Arguments:      Arguments{Game: []string{"--demo"}, Runtime: []string{"-Xmx2G"}},
		Client: &Client{
			Name: "client",
			URL:  "http://host/s1/client/client.jar",
			Path: "client.jar",
			SHA1: "c1",
			Size: 10,
		},
		Libraries: []Library{
			{Name: "lwjgl:lwjgl:3.3.0", URL: "http://host/s1/libraries/lwjgl/3.3.0/lwjgl-3.3.0.jar", Path: "lwjgl/3.3.0/lwjgl-3.3.0.jar", SHA1: "l1", Size: 20},
			{Name: "unhosted:lib:1.0"},
		},
		Mods: []Mod{
			{Name: "mod1.jar", URL: "http://host/s1/mods/mod1.jar", Path: "mod1.jar", SHA1: "m1", Size: 30},
		},
		Natives: []Native{
			{Name: "n1.dll", URL: "http://host/s1/natives/windows/n1.dll", Path: "windows/n1.dll", SHA1: "n1", Size: 40, OS: "windows"},
		},
		Assets: []Asset{
			{Hash: "a1", Size: 50, URL: "http://host/s1/assets/icons/a.png", Path: "icons/a.png"},
			{Hash: "a2", Size: 60},
		},
	}
}

func TestBuildResolutionIndex(t *testing.T) {
	builder := sampleBuilder()
	builder.BuildResolutionIndex()

	want := map[string]string{
		"http://host/s1/client/client.jar":                    "client/client.jar",
		"http://host/s1/libraries/lwjgl/3.3.0/lwjgl-3.3.0.jar": "libraries/lwjgl/3.3.0/lwjgl-3.3.0.jar",
		"http://host/s1/mods/mod1.jar":                        "mods/mod1.jar",
		"http://host/s1/natives/windows/n1.dll":               "natives/windows/n1.dll",
		"http://host/s1/assets/icons/a.png":                   "assets/icons/a.png",
	}

	got := builder.ResolutionSnapshot()
	if len(got) != len(want) {
		t.Fatalf("index size = %d, want %d (%v)", len(got), len(want), got)
	}
	for url, path := range want {
		if got[url] != path {
			t.Fatalf("index[%s] = %q, want %q", url, got[url], path)
		}
	}
}

func TestBuildResolutionIndexClearsPriorEntries(t *testing.T) {
	builder := sampleBuilder()
	builder.AddResolution("http://host/s1/stale", "mods/stale.jar")
	builder.BuildResolutionIndex()

	if _, ok := builder.ResolvePath("http://host/s1/stale"); ok {
		t.Fatalf("expected stale entry to be dropped by rebuild")
	}
}

func TestAddRemoveResolution(t *testing.T) {
	builder := &VersionBuilder{}

	builder.AddResolution("http://host/s1/mods/x.jar", "mods/x.jar")
	builder.AddResolution("http://host/s1/mods/x.jar", "mods/x.jar") // 幂等
	if builder.ResolutionLen() != 1 {
		t.Fatalf("expected single entry, got %d", builder.ResolutionLen())
	}

	path, ok := builder.ResolvePath("http://host/s1/mods/x.jar")
	if !ok || path != "mods/x.jar" {
		t.Fatalf("resolve mismatch: %q %v", path, ok)
	}

	builder.RemoveResolution("http://host/s1/mods/x.jar")
	builder.RemoveResolution("http://host/s1/mods/x.jar") // 不存在时 no-op
	if builder.ResolutionLen() != 0 {
		t.Fatalf("expected empty index after removal")
	}
}

func TestAddResolutionIgnoresEmptyURL(t *testing.T) {
	builder := &VersionBuilder{}
	builder.AddResolution("", "mods/x.jar")
	if builder.ResolutionLen() != 0 {
		t.Fatalf("empty url must not be indexed")
	}
}

func TestJSONOmitsResolutionIndex(t *testing.T) {
	builder := sampleBuilder()
	builder.BuildResolutionIndex()

	data, err := json.Marshal(builder)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if strings.Contains(string(data), "urlToPath") || strings.Contains(string(data), "url_to_path") {
		t.Fatalf("resolution index leaked into wire form: %s", data)
	}
}

func TestJSONNativesNoneVersusEmpty(t *testing.T) {
	builder := sampleBuilder()

	builder.Natives = nil
	data, err := json.Marshal(builder)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"natives":null`) {
		t.Fatalf("nil natives must serialize as null: %s", data)
	}

	builder.Natives = []Native{}
	data, err = json.Marshal(builder)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"natives":[]`) {
		t.Fatalf("empty natives must serialize as []: %s", data)
	}
}

func TestCopyResolutionFrom(t *testing.T) {
	src := sampleBuilder()
	src.BuildResolutionIndex()

	dst := &VersionBuilder{}
	dst.CopyResolutionFrom(src)

	if dst.ResolutionLen() != src.ResolutionLen() {
		t.Fatalf("copied index size mismatch")
	}

	// 深拷贝：修改 dst 不影响 src。
	dst.RemoveResolution("http://host/s1/mods/mod1.jar")
	if _, ok := src.ResolvePath("http://host/s1/mods/mod1.jar"); !ok {
		t.Fatalf("source index mutated by copy")
	}
}
