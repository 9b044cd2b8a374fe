package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("user-agent")
	}))
	defer srv.Close()

	c := New(Options{UserAgent: "portrait-studio/test", Timeout: 5 * time.Second})
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "portrait-studio/test", got)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("user-agent", "custom")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "custom", got)
}

func TestNew_DefaultTimeout(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, 180*time.Second, c.Timeout)
	_, wrapped := c.Transport.(userAgent)
	assert.False(t, wrapped)
}
