package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	for _, k := range []string{"LOGIN", "PASSWORD", "SIMILARITY", "LANGUAGE", "BASE_URL", "LOG_LEVEL", "CACHE"} {
		t.Setenv(EnvPrefix+"_"+k, "")
		os.Unsetenv(EnvPrefix + "_" + k)
	}
	return root
}

func TestLoad_CreatesBlankConfig(t *testing.T) {
	root := isolate(t)

	cfg, err := Load("", Overrides{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(root, "config", AppName, FileName)
	if cfg.Path != want {
		t.Fatalf("期望 path=%q，实际=%q", want, cfg.Path)
	}
	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("期望创建空白配置：%v", err)
	}
	var written Config
	if err := json.Unmarshal(b, &written); err != nil {
		t.Fatalf("空白配置不是合法 JSON：%v", err)
	}
	if written.Login != "" || written.Password != "" || written.Similarity != DefaultSimilarity {
		t.Fatalf("空白配置内容不符合预期：%+v", written)
	}

	if cfg.Similarity != DefaultSimilarity || cfg.Language != 1 || cfg.BaseURL != DefaultBaseURL || !cfg.Notifications || cfg.Cache {
		t.Fatalf("默认值不符合预期：%+v", cfg)
	}
	if cfg.CacheDir != filepath.Join(root, "cache", AppName) {
		t.Fatalf("cache_dir 默认值不符合预期：%q", cfg.CacheDir)
	}

	// 第二次读取同一文件
	again, err := Load("", Overrides{}, nil)
	if err != nil || again != cfg {
		t.Fatalf("第二次读取应得到相同配置：%+v / %v", again, err)
	}
}

func TestLoad_ExplicitMissingIsNotFound(t *testing.T) {
	root := isolate(t)
	_, err := Load(filepath.Join(root, "nope.json"), Overrides{}, nil)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	root := isolate(t)
	p := filepath.Join(root, "c.json")
	writeFile(t, p, []byte(`{"login":"joe","password":"file","similarity":0.5,"language":2,"log_level":"warn"}`))
	t.Setenv("LEGENDASTV_PASSWORD", "env")

	cfg, err := Load(p, Overrides{Language: 16, LanguageSet: true}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if cfg.Login != "joe" || cfg.Password != "env" {
		t.Fatalf("期望环境变量覆盖 password，实际 %+v", cfg)
	}
	if cfg.Similarity != 0.5 || cfg.LogLevel != "warn" {
		t.Fatalf("期望使用文件中的值，实际 %+v", cfg)
	}
	if cfg.Language != 16 {
		t.Fatalf("期望命令行覆盖 language=16，实际 %d", cfg.Language)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	root := isolate(t)
	p := filepath.Join(root, "empty.json")
	writeFile(t, p, nil)

	cfg, err := Load(p, Overrides{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if cfg.Similarity != DefaultSimilarity {
		t.Fatalf("期望默认 similarity，实际 %v", cfg.Similarity)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"json":       `{"login":`,
		"similarity": `{"similarity":0}`,
		"over_one":   `{"similarity":1.5}`,
		"language":   `{"language":99}`,
		"base_url":   `{"base_url":"ftp://legendas.tv/"}`,
		"ntfy":       `{"ntfy_topic":"topic-only"}`,
		"log_level":  `{"log_level":"loud"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			root := isolate(t)
			p := filepath.Join(root, name+".json")
			writeFile(t, p, []byte(body))
			_, err := Load(p, Overrides{}, nil)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
			}
		})
	}
}

func TestEntriesRedactPassword(t *testing.T) {
	cfg := Config{Login: "joe", Password: "segredo", Similarity: 0.7, Language: 1}
	for _, e := range cfg.Entries() {
		if e.Key == KeyPassword && e.Value == "segredo" {
			t.Fatalf("密码不应明文展示")
		}
		if e.Key == KeySimilarity && e.Value != "0.7" {
			t.Fatalf("期望 similarity=0.7，实际 %q", e.Value)
		}
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll 失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile 失败：%v", err)
	}
}
