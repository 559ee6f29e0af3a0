package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/httpx"
	"github.com/John-Robertt/legendastv/internal/match"
	"github.com/John-Robertt/legendastv/internal/provider"
	"github.com/John-Robertt/legendastv/internal/provider/legendastv"
	"github.com/John-Robertt/legendastv/internal/rank"
)

type searchOptions struct {
	movieID int
	pages   int
	detail  bool
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "搜索影片与字幕并按评分列出",
		Args:  usageArgs(cobra.RangeArgs(0, 1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = strings.TrimSpace(args[0])
			}
			if text == "" && opts.movieID <= 0 {
				return &usageError{err: errors.New("需要搜索文本或 --movie-id")}
			}
			if opts.movieID < 0 || opts.pages < 0 {
				return &usageError{err: errors.New("--movie-id 与 --pages 不能为负数")}
			}
			return runSearch(cmd, ctx, text, opts)
		},
	}
	cmd.Flags().IntVar(&opts.movieID, "movie-id", 0, "按影片 ID 列出字幕")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "最多读取的列表页数（0 = 不限）")
	cmd.Flags().BoolVar(&opts.detail, "detail", false, "显示评分最高字幕的详情页信息")
	return cmd
}

func runSearch(cmd *cobra.Command, ctx *commandContext, text string, opts searchOptions) error {
	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		return err
	}
	log := ctx.logger(cmd)
	out := cmd.OutOrStdout()

	client, err := httpx.NewClient(httpx.Options{ProxyURL: cfg.ProxyURL})
	if err != nil {
		return err
	}
	sess, err := provider.NewSession(provider.Options{
		BaseURL:  cfg.BaseURL,
		Client:   client,
		Log:      log,
		MaxPages: opts.pages,
	})
	if err != nil {
		return err
	}
	site := legendastv.NewClient(sess, log)
	c := cmd.Context()

	target := rank.Target{Title: text, Release: match.Clean(text)}
	var q domain.SearchQuery
	if opts.movieID > 0 {
		m, err := site.MovieDetail(c, opts.movieID)
		if err != nil {
			return err
		}
		printMovies(out, []domain.Movie{m})
		if target.Title == "" {
			target = rank.Target{Title: m.Title, Release: match.Clean(m.Title)}
		}
		q = domain.ByMovie(opts.movieID, cfg.Language)
	} else {
		movies, err := site.SearchMovies(c, text)
		if err != nil {
			return err
		}
		printMovies(out, movies)
		q = domain.ByText(text, domain.KindRelease, cfg.Language)
	}

	subs, err := site.AllSubtitles(c, q)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(out, "没有找到字幕")
		return nil
	}
	ranked, err := (&rank.Ranker{Log: log}).Rank(target, subs)
	if err != nil && !errors.Is(err, domain.ErrEmptyCandidates) {
		return err
	}
	printSubtitles(out, ranked, unrankable(subs))

	if opts.detail {
		if len(ranked) == 0 {
			fmt.Fprintln(out, "没有可评分的字幕")
			return nil
		}
		d, err := site.SubtitleDetail(c, ranked[0].Hash)
		if err != nil {
			return err
		}
		printDetail(out, d)
	}
	return nil
}

func printMovies(w io.Writer, movies []domain.Movie) {
	if len(movies) == 0 {
		fmt.Fprintln(w, "没有找到影片")
		return
	}
	data := make([][]string, 0, len(movies))
	for _, m := range movies {
		data = append(data, []string{strconv.Itoa(m.ID), m.Title, yearCell(m.Year), m.TitleBR, m.Genre.Or("")})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Título", "Ano", "Nacional", "Gênero"},
		data,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

// printSubtitles 先列出已评分的记录，再列出无法评分（语言或日期未知）的记录。
func printSubtitles(w io.Writer, ranked, rest []domain.Subtitle) {
	data := make([][]string, 0, len(ranked)+len(rest))
	for i, s := range ranked {
		data = append(data, subtitleRow(strconv.Itoa(i+1), s))
	}
	for _, s := range rest {
		data = append(data, subtitleRow("-", s))
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Score", "Release", "Downloads", "Nota", "Enviada", "Idioma", "", "Hash"},
		data,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func subtitleRow(pos string, s domain.Subtitle) []string {
	score := "?"
	if v, ok := s.Score.Get(); ok {
		score = fmt.Sprintf("%.2f", v)
	}
	date := "?"
	if d, ok := s.Date.Get(); ok {
		date = humanize.Time(d)
	}
	return []string{
		pos,
		score,
		s.Release,
		optInt(s.Downloads, humanize.Comma),
		optInt(s.Rating, func(v int64) string { return strconv.FormatInt(v, 10) }),
		date,
		s.Language.Or("?"),
		marks(s),
		s.Hash,
	}
}

func unrankable(subs []domain.Subtitle) []domain.Subtitle {
	var out []domain.Subtitle
	for _, s := range subs {
		if s.Rankable() != nil {
			out = append(out, s)
		}
	}
	return out
}

func printDetail(w io.Writer, s domain.Subtitle) {
	rows := [][]string{
		{"Rls", s.Release},
		{"Título", s.Title},
		{"Enviada por", s.UserName},
		{"Downloads", optInt(s.Downloads, humanize.Comma)},
	}
	if x := s.Extra; x != nil {
		rows = append(rows,
			[]string{"Nacional", x.TitleBR},
			[]string{"Ano", yearCell(x.Year)},
			[]string{"IMDb", x.IMDbURL},
			[]string{"FPS", optInt(x.FPS, func(v int64) string { return strconv.FormatInt(v, 10) })},
			[]string{"CDs", optInt(x.CDs, func(v int64) string { return strconv.FormatInt(v, 10) })},
			[]string{"Tamanho", optInt(x.SizeMB, func(v int64) string { return humanize.Bytes(uint64(v) * 1000 * 1000) })},
			[]string{"Sinopse", truncate(x.Synopsis, 200)},
		)
	}
	fmt.Fprintln(w, renderTable([]string{"Campo", "Valor"}, rows, nil))
}

func yearCell(y domain.Opt[int]) string {
	if v, ok := y.Get(); ok {
		return strconv.Itoa(v)
	}
	return ""
}

func optInt(o domain.Opt[int], format func(int64) string) string {
	if v, ok := o.Get(); ok {
		return format(int64(v))
	}
	return "?"
}

func marks(s domain.Subtitle) string {
	var m []string
	if s.Highlight {
		m = append(m, "destaque")
	}
	if s.Pack {
		m = append(m, "pack")
	}
	return strings.Join(m, ",")
}
