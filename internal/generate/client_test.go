package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skyfeed/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(endpoint string) *Client {
	return NewClient(config.GeneratorConfig{
		Endpoint: endpoint,
		Model:    "newsgen-1",
		APIKey:   "secret-key",
		Timeout:  config.Duration(5 * time.Second),
	})
}

func TestGenerate_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]any{
			"seoTitle": "T",
			"metaDesc": "D",
			"slug":     "t",
			"tags":     []string{"aviation"},
			"keywords": []string{"pushback"},
			"html":     "<p>H</p>",
			"images":   []string{},
		})
	}))
	defer ts.Close()

	content, err := testClient(ts.URL).Generate(context.Background(), "Pushback Nedir\nhttps://x.com/a")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "newsgen-1", gotBody["model"])
	assert.Contains(t, gotBody["prompt"], "Pushback Nedir")

	assert.Equal(t, "T", content.SEOTitle)
	assert.Equal(t, "<p>H</p>", content.HTML)
	assert.Equal(t, []string{"aviation"}, content.Tags)
}

func TestGenerate_RemoteError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestGenerate_MissingRequiredFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"metaDesc": "only this"})
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestGenerate_UnparsableResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Generate(context.Background(), "prompt")
	assert.Error(t, err)
}
