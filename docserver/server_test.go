package docserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicletter/render"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	s := New(render.DefaultLetterhead, append([]Option{WithClock(now)}, opts...)...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/generate-pdf", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateHTML(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, `{"letterContent":"<p>Dear Sarah,</p>\n  <p>Rest&nbsp;well.<BR/></p>","patientInfo":{"name":"Sarah Henderson","email":"s@example.com"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body := readAll(t, resp)
	assert.Contains(t, body, "<p>Dear Sarah,</p><p>Rest well.<br></p>")
	assert.Contains(t, body, "Ms Sarah Henderson")
	assert.Contains(t, body, "4 March 2025")
	assert.Contains(t, body, "London<br/>EN6 8GH")
	assert.Contains(t, body, "clinicletter_sarah_henderson.pdf")
	assert.Contains(t, body, `<div class="contact">Office: 0203 1500 222</div>`)
	assert.NotContains(t, body, `class="logo"`)
}

func TestGenerateEscapesPatientFields(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, `{"letterContent":"<p>x</p>","patientInfo":{"name":"<script>"}}`)
	body := readAll(t, resp)
	assert.NotContains(t, body, "Ms <script>")
	assert.Contains(t, body, "Ms &lt;script&gt;")
}

func TestGenerateBase64(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, `{"letterContent":"<p>Hello</p>","patientInfo":{"name":"John  Smith","address":"Leeds"},"returnType":"base64"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "html", out.Type)
	assert.Equal(t, "clinicletter_john_smith.pdf", out.Filename)

	doc, err := base64.StdEncoding.DecodeString(out.Base64)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<p>Hello</p>")
	assert.Contains(t, string(doc), "Leeds")
	assert.Contains(t, string(doc), "<strong>Mr MANGATTIL RAJESH FRCS (Orth) MBA</strong>")
	assert.Contains(t, string(doc), "Yours sincerely,")
}

func TestGenerateLogo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	ts := newTestServer(t, WithLogo(path))

	body := readAll(t, post(t, ts, `{"letterContent":"x"}`))
	assert.Contains(t, body, `src="data:image/png;base64,cG5n"`)
}

func TestGenerateBadRequests(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"letterContent":`},
		{"unknown return type", `{"letterContent":"x","returnType":"docx"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "<p>a</p><p>b<br>c<br>d</p>", CleanContent("  <p>a</p>\n\n<P>b<br/>c<BR >d</p> "))
	assert.Equal(t, "a b", CleanContent("a&nbsp;b"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "clinicletter_patient.pdf", Filename(""))
	assert.Equal(t, "clinicletter_mrs._sarah_henderson.pdf", Filename("Mrs. Sarah Henderson"))
}
