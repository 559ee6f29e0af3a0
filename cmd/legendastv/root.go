package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
)

// commandContext 在子命令间共享持久参数与懒加载的配置。
type commandContext struct {
	configFlag string
	logLevel   string
	lang       int

	cfg *config.Config
	log *logrus.Logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "legendastv",
		Short:         "从 legendas.tv 搜索并下载字幕",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "配置文件路径（默认 $XDG_CONFIG_HOME/legendastv/legendastv.json）")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	rootCmd.PersistentFlags().IntVar(&ctx.lang, "lang", 0, "字幕语言 ID（1 = Português-BR）")

	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	return rootCmd
}

// ensureConfig 加载配置并据此创建日志器；同一进程只加载一次。
func (c *commandContext) ensureConfig(cmd *cobra.Command) (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	flags := cmd.Flags()
	ov := config.Overrides{
		Language:    c.lang,
		LanguageSet: flags.Changed("lang"),
		LogLevel:    c.logLevel,
		LogLevelSet: flags.Changed("log-level"),
	}

	// 配置加载期间的警告也要可见：先用参数或默认级别建一个临时日志器。
	bootLevel := config.DefaultLogLevel
	if ov.LogLevelSet {
		bootLevel = c.logLevel
	}
	cfg, err := config.Load(c.configFlag, ov, logx.New(bootLevel, cmd.ErrOrStderr()))
	if err != nil {
		return config.Config{}, err
	}
	c.cfg = &cfg
	c.log = logx.New(cfg.LogLevel, cmd.ErrOrStderr())
	return cfg, nil
}

func (c *commandContext) logger(cmd *cobra.Command) *logrus.Logger {
	if c.log == nil {
		c.log = logx.New(config.DefaultLogLevel, cmd.ErrOrStderr())
	}
	return c.log
}

// usageArgs 把参数校验失败标记为用法错误。
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func languageLabel(id int) string {
	if l, ok := domain.LanguageByID(id); ok {
		return fmt.Sprintf("%d (%s)", l.ID, l.Name)
	}
	return fmt.Sprintf("%d", id)
}
