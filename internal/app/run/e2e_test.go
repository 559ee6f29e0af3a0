package run

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/cache"
	"github.com/John-Robertt/legendastv/internal/provider"
	"github.com/John-Robertt/legendastv/internal/provider/legendastv"
)

const listingHTML = `<article>
  <div class="destaque">
    <div class="f_left"><p><a href="/download/aaa/Predators/Predators_2010_R5">Predators.2010.R5.LiNE.XviD-Noir</a></p>
    <p class="data">30655 downloads, nota 10, enviado por <a href="/usuario/inSanos">inSanos</a> em 26/09/2010 - 12:02</p></div>
    <img src="/img/idioma/icon_brazil.png">
  </div>
  <div class="">
    <div class="f_left"><p><a href="/download/bbb/Predators/Predators_2010_CAM">Predators.2010.CAM</a></p>
    <p class="data">12 downloads, nota 2, enviado por <a href="/usuario/z">z</a> em 01/08/2010 - 09:00</p></div>
    <img src="/img/idioma/icon_brazil.png">
  </div>
</article>`

func zipBytes(t *testing.T, files [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatalf("zip Create: %v", err)
		}
		if _, err := w.Write([]byte(f[1])); err != nil {
			t.Fatalf("zip Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	return buf.Bytes()
}

func newSiteServer(t *testing.T, archive []byte) (*httptest.Server, *sync.Map) {
	t.Helper()
	hits := &sync.Map{}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "au", Value: "1", Path: "/"})
		fmt.Fprint(w, "<p>ok</p>")
	})
	mux.HandleFunc("/util/busca_titulo/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"Filme":{"id_filme":"28008","dsc_nome":"Predators (2010)","dsc_nome_br":"Predadores","dsc_imagen":""}}]`)
	})
	mux.HandleFunc("/util/carrega_legendas_busca/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/downloadarquivo/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("au"); err != nil {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/files/"+strings.TrimPrefix(r.URL.Path, "/downloadarquivo/")+".zip", http.StatusFound)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path, new(int))
		*(n.(*int))++
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

type recordObserver struct {
	startCalls int
	total      int
	items      []string
}

func (o *recordObserver) OnStart(cfg config.Config, total int) {
	o.startCalls++
	o.total = total
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	o.items = append(o.items, filepath.Base(res.Video)+":"+res.Status)
}

func newE2E(t *testing.T, srv *httptest.Server) (*Workflow, config.Config) {
	t.Helper()
	s, err := provider.NewSession(provider.Options{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	cfg := testConfig()
	return NewWorkflow(cfg, Deps{Site: legendastv.NewClient(s, nil)}), cfg
}

func TestExecute_EndToEnd(t *testing.T) {
	archive := zipBytes(t, [][2]string{
		{"Predators.2010.R5.LiNE.XviD-Noir/Predators.2010.R5.LiNE.XviD-Noir.srt", "1\n00:00:01,000 --> 00:00:02,000\nCD1\n"},
		{"Predators.2010.R5.LiNE.XviD-Noir/Predators.2010.R5.LiNE.XviD-Noir.cd2.srt", "1\n00:00:01,000 --> 00:00:02,000\nCD2\n"},
		{"Predators.2010.R5.LiNE.XviD-Noir/leia-me.txt", "obrigado"},
	})
	srv, hits := newSiteServer(t, archive)
	w, cfg := newE2E(t, srv)

	root := t.TempDir()
	video(t, filepath.Join(root, "Predators.2010"), "Predators.2010.R5.avi")
	video(t, filepath.Join(root, "Other.2011"), "Other.2011.mkv")
	if err := os.WriteFile(filepath.Join(root, "Other.2011", "Other.2011.srt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := cache.New(filepath.Join(root, ".cache"))
	obs := &recordObserver{}
	rr := Execute(context.Background(), cfg, []string{root}, w, &store, obs)

	if rr.Summary.Processed != 1 || rr.Summary.Skipped != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if obs.startCalls != 1 || obs.total != 2 || len(obs.items) != 2 {
		t.Fatalf("observer 事件不符合预期：%+v", obs)
	}

	var it domain.ItemResult
	for _, x := range rr.Items {
		if x.Status == domain.StatusProcessed {
			it = x
		}
	}
	if it.MovieID != 28008 || it.SubtitleHash != "aaa" || it.Candidates != 2 {
		t.Fatalf("条目不符合预期：%+v", it)
	}
	out := filepath.Join(root, "Predators.2010", "Predators.2010.R5.srt")
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("字幕未写入：%v", err)
	}
	if !strings.Contains(string(b), "CD1") {
		t.Fatalf("期望选中 CD1 字幕，实际 %q", b)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "Predators.2010"))
	if len(entries) != 2 {
		t.Fatalf("期望目录只剩视频与字幕，实际 %d 项", len(entries))
	}
	if n, ok := hits.Load("/login"); !ok || *(n.(*int)) != 1 {
		t.Fatalf("期望只登录 1 次")
	}
}

func TestExecute_ExplicitFileAndMissingPath(t *testing.T) {
	srv, _ := newSiteServer(t, zipBytes(t, [][2]string{{"a.srt", "x"}}))
	w, cfg := newE2E(t, srv)

	root := t.TempDir()
	v := video(t, filepath.Join(root, "Predators.2010"), "Predators.2010.R5.avi")
	missing := filepath.Join(root, "nope.avi")

	rr := Execute(context.Background(), cfg, []string{v.AbsPath, missing}, w, nil, nil)
	if rr.Summary.Processed != 1 || rr.Summary.Failed != 1 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if !rr.HasFailures() {
		t.Fatalf("期望 HasFailures=true")
	}
	for _, it := range rr.Items {
		if it.Video == missing && it.ErrorCode != domain.ErrCodeIOFailed {
			t.Fatalf("期望缺失路径为 io_failed，实际 %+v", it)
		}
	}
}

func TestExecute_LockedCache(t *testing.T) {
	srv, _ := newSiteServer(t, nil)
	w, cfg := newE2E(t, srv)

	store := cache.New(t.TempDir())
	unlock, err := store.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	other := cache.New(store.Root)
	rr := Execute(context.Background(), cfg, []string{t.TempDir()}, w, &other, nil)
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != domain.ErrCodeLocked {
		t.Fatalf("期望 locked，实际 %+v", rr.Items)
	}
}
