package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesEmbeddedDashboard(t *testing.T) {
	handler := Handler("")

	w := get(t, handler, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestHandlerServesEmbeddedAssets(t *testing.T) {
	handler := Handler("")

	for _, path := range []string{"/app.js", "/style.css"} {
		w := get(t, handler, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", path, w.Code)
		}
		if w.Body.Len() == 0 {
			t.Errorf("GET %s: empty response body", path)
		}
	}

	// The embedded client speaks the bridge protocol.
	if body := get(t, handler, "/app.js").Body.String(); !strings.Contains(body, "perintah") {
		t.Error("app.js does not send device commands")
	}
}

func TestHandlerFallback(t *testing.T) {
	handler := Handler("")

	for _, path := range []string{"/nonexistent", "/some/deep/route"} {
		w := get(t, handler, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200 (fallback)", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: fallback didn't serve index.html", path)
		}
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	indexContent := `<!DOCTYPE html><html><body>custom dashboard</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "script.js"), []byte("console.log('ac')"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := Handler(dir)

	if w := get(t, handler, "/"); !strings.Contains(w.Body.String(), "custom dashboard") {
		t.Errorf("filesystem GET /: expected filesystem content, got %q", w.Body.String())
	}
	if w := get(t, handler, "/script.js"); w.Code != http.StatusOK {
		t.Errorf("filesystem GET /script.js: got status %d, want 200", w.Code)
	}
	if w := get(t, handler, "/deep/route"); !strings.Contains(w.Body.String(), "custom dashboard") {
		t.Error("filesystem fallback didn't serve filesystem index.html")
	}
	// Embedded assets are not mixed in.
	if w := get(t, handler, "/app.js"); strings.Contains(w.Body.String(), "ACDashboard") {
		t.Error("filesystem mode served the embedded app.js")
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	handler := Handler("/nonexistent/dir/that/does/not/exist")

	w := get(t, handler, "/")
	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "AC Bridge") {
		t.Error("invalid dir: didn't fall back to embedded index.html")
	}
}
