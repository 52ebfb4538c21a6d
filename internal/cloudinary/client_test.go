package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fixedClient(base string) *Client {
	c := New("demo", "key-1", "secret-1", "visitors")
	c.APIBase = base
	c.DeliveryBase = base
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestSign_SortsAndSkipsUnsignedKeys(t *testing.T) {
	t.Parallel()

	c := fixedClient("")
	got := c.sign(map[string]string{
		"timestamp": "1700000000",
		"folder":    "visitors",
		"api_key":   "key-1",
		"file":      "ignored",
		"public_id": "",
	})

	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=visitors&timestamp=1700000000secret-1")))
	if got != want {
		t.Fatalf("unexpected signature: want %s got %s", want, got)
	}
}

func TestUpload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("public_id") != "1700000000000-alice" || r.FormValue("signature") == "" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		fmt.Fprintf(w, `{"public_id":"visitors/1700000000000-alice","secure_url":"https://cdn/x.jpg","bytes":%d}`, len(b))
	}))
	defer srv.Close()

	res, err := fixedClient(srv.URL).Upload(context.Background(), strings.NewReader("jpeg"), "alice.jpg", "1700000000000-alice")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if res.PublicID != "visitors/1700000000000-alice" || res.Bytes != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUpload_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := fixedClient(srv.URL).Upload(context.Background(), strings.NewReader("jpeg"), "alice.jpg", "")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestFetchAndDestroy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/demo/image/upload/visitors/a":
			_, _ = w.Write([]byte("jpeg"))
		case r.Method == http.MethodPost && r.URL.Path == "/demo/image/destroy":
			_ = r.ParseForm()
			if r.PostForm.Get("public_id") != "visitors/a" {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"result":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := fixedClient(srv.URL)
	rc, err := c.Fetch(context.Background(), "visitors/a")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "jpeg" {
		t.Errorf("unexpected body %q", b)
	}

	if err := c.Destroy(context.Background(), "visitors/a"); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}
}
