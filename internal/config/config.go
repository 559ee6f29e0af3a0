// Package config 读取 legendastv 的配置文件（JSON）与环境变量覆盖。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/fsx"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	AppName = "legendastv"
	// FileName 是配置文件名（位于 $XDG_CONFIG_HOME/legendastv/ 下）。
	FileName = AppName + ".json"
	// EnvPrefix 是环境变量前缀，例如 LEGENDASTV_PASSWORD。
	EnvPrefix = "LEGENDASTV"

	DefaultSimilarity = 0.7
	DefaultBaseURL    = "http://legendas.tv/"
	DefaultLogLevel   = "info"
)

// 配置键（同时是 JSON 字段名）。
const (
	KeyLogin         = "login"
	KeyPassword      = "password"
	KeySimilarity    = "similarity"
	KeyCache         = "cache"
	KeyCacheDir      = "cache_dir"
	KeyBaseURL       = "base_url"
	KeyLanguage      = "language"
	KeyLogLevel      = "log_level"
	KeyNotifications = "notifications"
	KeyNtfyTopic     = "ntfy_topic"
	KeyProxyURL      = "proxy_url"
)

// Config 是合并、校验后的最终配置；按值传递，加载后不再修改。
type Config struct {
	Login         string  `json:"login"`
	Password      string  `json:"password"`
	Similarity    float64 `json:"similarity"`
	Cache         bool    `json:"cache"`
	CacheDir      string  `json:"cache_dir"`
	BaseURL       string  `json:"base_url"`
	Language      int     `json:"language"`
	LogLevel      string  `json:"log_level"`
	Notifications bool    `json:"notifications"`
	NtfyTopic     string  `json:"ntfy_topic"`
	ProxyURL      string  `json:"proxy_url"`

	// Path 是实际读取的配置文件。
	Path string `json:"-"`
}

// Overrides 是命令行对配置的覆盖；*Set 为 true 才生效。
type Overrides struct {
	Language    int
	LanguageSet bool

	LogLevel    string
	LogLevelSet bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// DefaultPath 返回 $XDG_CONFIG_HOME/legendastv/legendastv.json（未设置时用 ~/.config）。
func DefaultPath() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName, FileName), nil
}

// DefaultCacheDir 返回 $XDG_CACHE_HOME/legendastv（未设置时用 ~/.cache）。
func DefaultCacheDir() (string, error) {
	dir, err := xdgDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

func xdgDir(env, fallback string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback), nil
}

// Load 读取配置文件并合并环境变量与命令行覆盖。
//
// 规则（固定）：
// - path 为空：使用 DefaultPath()；文件不存在时创建一份空白配置（默认值 + 空账号）并警告
// - path 显式指定但不存在：config_not_found
// - 优先级：命令行 > 环境变量 LEGENDASTV_* > 配置文件 > 默认值
// - 账号为空只警告：搜索可以匿名进行，下载可能失败
func Load(path string, ov Overrides, log logrus.FieldLogger) (Config, error) {
	log = logx.OrDiscard(log)

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		path = p
	}
	path = filepath.Clean(path)

	v := viper.New()
	if err := setDefaults(v); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: errors.New("配置路径是目录")}
	case err == nil:
		if fi.Size() > 0 {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
			}
		}
	case os.IsNotExist(err) && explicit:
		return Config{}, &Error{Code: ErrCodeNotFound, Path: path, Err: os.ErrNotExist}
	case os.IsNotExist(err):
		if err := writeBlank(path, v); err != nil {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("创建空白配置失败：%w", err)}
		}
		log.WithField("path", path).Warn("配置文件不存在，已创建空白配置；请填写 login/password")
	default:
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	if ov.LanguageSet {
		v.Set(KeyLanguage, ov.Language)
	}
	if ov.LogLevelSet {
		v.Set(KeyLogLevel, ov.LogLevel)
	}

	cfg := Config{
		Login:         strings.TrimSpace(v.GetString(KeyLogin)),
		Password:      v.GetString(KeyPassword),
		Similarity:    v.GetFloat64(KeySimilarity),
		Cache:         v.GetBool(KeyCache),
		CacheDir:      strings.TrimSpace(v.GetString(KeyCacheDir)),
		BaseURL:       strings.TrimSpace(v.GetString(KeyBaseURL)),
		Language:      v.GetInt(KeyLanguage),
		LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		Notifications: v.GetBool(KeyNotifications),
		NtfyTopic:     strings.TrimSpace(v.GetString(KeyNtfyTopic)),
		ProxyURL:      strings.TrimSpace(v.GetString(KeyProxyURL)),
		Path:          path,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	if cfg.Login == "" || cfg.Password == "" {
		log.WithField("path", path).Warn("未配置 login/password：只能搜索，下载可能失败")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) error {
	cacheDir, err := DefaultCacheDir()
	if err != nil {
		return err
	}
	v.SetDefault(KeyLogin, "")
	v.SetDefault(KeyPassword, "")
	v.SetDefault(KeySimilarity, DefaultSimilarity)
	v.SetDefault(KeyCache, false)
	v.SetDefault(KeyCacheDir, cacheDir)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyLanguage, domain.DefaultLanguage)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyNotifications, true)
	v.SetDefault(KeyNtfyTopic, "")
	v.SetDefault(KeyProxyURL, "")
	return nil
}

// writeBlank 以默认值写出配置文件（不含环境变量覆盖）。
func writeBlank(path string, v *viper.Viper) error {
	blank := Config{
		Similarity:    DefaultSimilarity,
		CacheDir:      v.GetString(KeyCacheDir),
		BaseURL:       DefaultBaseURL,
		Language:      domain.DefaultLanguage,
		LogLevel:      DefaultLogLevel,
		Notifications: true,
	}
	b, err := json.MarshalIndent(blank, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), append(b, '\n'))
}

// Validate 检查字段取值范围。
func (c Config) Validate() error {
	if !(c.Similarity > 0 && c.Similarity <= 1) {
		return fmt.Errorf("similarity 必须在 (0, 1] 之间，实际是 %v", c.Similarity)
	}
	if _, ok := domain.LanguageByID(c.Language); !ok {
		return fmt.Errorf("language 未知：%d", c.Language)
	}
	if err := httpURL(KeyBaseURL, c.BaseURL, true); err != nil {
		return err
	}
	if err := httpURL(KeyNtfyTopic, c.NtfyTopic, false); err != nil {
		return err
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("proxy_url 无效：%w", err)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level 无效：%q", c.LogLevel)
	}
	if c.Cache && c.CacheDir == "" {
		return errors.New("cache=true 但 cache_dir 为空")
	}
	return nil
}

func httpURL(key, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s 不能为空", key)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s 必须是 http/https 绝对地址：%q", key, raw)
	}
	return nil
}

// Entry 是一项用于展示的配置。
type Entry struct {
	Key   string
	Value string
}

// Entries 返回用于展示的配置项；密码被遮蔽。
func (c Config) Entries() []Entry {
	pw := ""
	if c.Password != "" {
		pw = "********"
	}
	return []Entry{
		{KeyLogin, c.Login},
		{KeyPassword, pw},
		{KeySimilarity, strconv.FormatFloat(c.Similarity, 'g', -1, 64)},
		{KeyCache, strconv.FormatBool(c.Cache)},
		{KeyCacheDir, c.CacheDir},
		{KeyBaseURL, c.BaseURL},
		{KeyLanguage, strconv.Itoa(c.Language)},
		{KeyLogLevel, c.LogLevel},
		{KeyNotifications, strconv.FormatBool(c.Notifications)},
		{KeyNtfyTopic, c.NtfyTopic},
		{KeyProxyURL, c.ProxyURL},
	}
}
