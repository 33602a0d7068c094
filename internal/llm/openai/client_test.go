package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/internal/llm"
)

func TestClient_ExtractSendsImageAsDataURL(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"items\":[]}  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"}, nil)
	out, err := c.Extract(context.Background(), llm.Request{
		Instruction: "instr",
		ImageBase64: "AAAA",
		MimeType:    "image/png",
		SourceName:  "scan.png",
	})
	require.NoError(t, err)
	require.Equal(t, `{"items":[]}`, out)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "instr", msgs[0].(map[string]any)["content"])
	parts := msgs[1].(map[string]any)["content"].([]any)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	require.Equal(t, "data:image/png;base64,AAAA", img["url"])
}

func TestClient_ExtractTextOnly(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Extract(context.Background(), llm.Request{Text: "Замена масла 1200"})
	require.NoError(t, err)

	user := got["messages"].([]any)[1].(map[string]any)["content"].(string)
	require.Contains(t, user, "Замена масла 1200")
}

func TestClient_ExtractErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Extract(context.Background(), llm.Request{Text: "x"})
	require.Error(t, err)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	c = NewClient(Config{APIKey: "k", BaseURL: empty.URL}, nil)
	_, err = c.Extract(context.Background(), llm.Request{Text: "x"})
	require.Error(t, err)
}
