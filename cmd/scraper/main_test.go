package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-catalogue/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePage = `<html><body><ol class="row">
<li><article class="product_pod"><h3><a href="one_1/index.html" title="One">One</a></h3>
<p class="star-rating Four"></p><p class="price_color">£10.00</p><p class="instock availability">In stock</p></article></li>
</ol></body></html>`

func catalogueServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serverConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Delay = 0
	cfg.OutputDir = filepath.Join(t.TempDir(), "output")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunWritesArtifacts(t *testing.T) {
	srv := catalogueServer(t, map[string]string{"/catalogue/page-1.html": onePage})
	cfg := serverConfig(t, srv.URL)

	require.Equal(t, 0, run(cfg))

	for _, name := range []string{"products.csv", "products.xlsx"} {
		info, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestRunWithoutRecordsWritesNothing(t *testing.T) {
	srv := catalogueServer(t, nil)
	cfg := serverConfig(t, srv.URL)

	require.Equal(t, 0, run(cfg))

	_, err := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err), "output dir should not be created")
}

func TestRunFailsOnUnparseablePrice(t *testing.T) {
	srv := catalogueServer(t, map[string]string{"/catalogue/page-1.html": `<html><body>
<article class="product_pod"><h3><a href="free_1/index.html" title="Free">Free</a></h3>
<p class="price_color">free</p><p class="availability">In stock</p></article>
</body></html>`})
	cfg := serverConfig(t, srv.URL)

	assert.Equal(t, 1, run(cfg))

	_, err := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err), "no partial table may be written")
}

func TestRunFailsOnBlankPrice(t *testing.T) {
	srv := catalogueServer(t, map[string]string{"/catalogue/page-1.html": `<html><body>
<article class="product_pod"><h3><a href="ok_1/index.html" title="Priced">Priced</a></h3>
<p class="price_color">£4.00</p><p class="availability">In stock</p></article>
<article class="product_pod"><h3><a href="blank_2/index.html" title="Blank">Blank</a></h3>
<p class="price_color">  </p><p class="availability">In stock</p></article>
</body></html>`})
	cfg := serverConfig(t, srv.URL)

	assert.Equal(t, 1, run(cfg))

	_, err := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err), "blank price must stop the run before any artifact is written")
}
