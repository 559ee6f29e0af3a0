package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/legendastv/internal/app/run"
	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/cache"
	"github.com/John-Robertt/legendastv/internal/infra/httpx"
	"github.com/John-Robertt/legendastv/internal/notify"
	"github.com/John-Robertt/legendastv/internal/provider"
	"github.com/John-Robertt/legendastv/internal/provider/legendastv"
)

const ntfyTimeout = 10 * time.Second

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <video-or-dir>...",
		Short: "为视频下载最匹配的字幕（目录：其下所有尚无字幕的视频）",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, ctx, args)
		},
	}
}

func runGet(cmd *cobra.Command, ctx *commandContext, args []string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(args, err))
		return &exitError{code: 1}
	}
	log := ctx.logger(cmd)

	client, err := httpx.NewClient(httpx.Options{ProxyURL: cfg.ProxyURL})
	if err != nil {
		return err
	}
	var store *cache.Store
	if cfg.Cache {
		st := cache.New(cfg.CacheDir)
		store = &st
	}
	sess, err := provider.NewSession(provider.Options{
		BaseURL: cfg.BaseURL,
		Client:  client,
		Cache:   store,
		Log:     log,
	})
	if err != nil {
		return err
	}

	var (
		obs      run.Observer
		notifier notify.Notifier = notify.Log{Logger: log}
		ui       *progressUI
	)
	// 进度只在交互终端启用；默认走 stderr，不污染 stdout 的 JSON。
	if isTerminal(stderr) {
		ui = newProgressUI(stderr)
		obs, notifier = ui, ui
		defer ui.Stop()
	}
	notifier = notify.Multi{notifier, notify.NewNtfy(cfg.NtfyTopic, ntfyTimeout)}

	w := run.NewWorkflow(cfg, run.Deps{
		Site:     legendastv.NewClient(sess, log),
		Notifier: notifier,
		Log:      log,
	})

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	rr := run.Execute(runCtx, cfg, args, w, store, obs)

	emitReport(stdout, stderr, rr)
	if !allDone(rr) {
		return &exitError{code: 1}
	}
	return nil
}

// allDone 判断每个视频都已有字幕（本次下载或原本就有）。
func allDone(rr domain.RunReport) bool {
	return rr.Summary.Failed == 0 && rr.Summary.NotFound == 0
}

func reportForConfigError(paths []string, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Path:       strings.Join(paths, ","),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}
