package patchstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/patchpull/patchpull/internal/config"
)

func newTestClient(server *httptest.Server, pageSize int) *Client {
	cfg := config.PatchstorageConfig{
		BaseURL:        server.URL,
		Timeout:        5,
		PageSize:       pageSize,
		RequestDelayMS: 0,
	}
	return NewClient(cfg, zerolog.Nop())
}

// catalogServer serves n patches in pages of pageSize with Link rel="next"
// headers, mimicking the Patchstorage list endpoint.
func catalogServer(t *testing.T, n, pageSize int, requests *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patches/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("platforms"); got != "8008" {
			t.Errorf("platforms = %q, want %q", got, "8008")
		}
		if got := r.URL.Query().Get("per_page"); got != strconv.Itoa(pageSize) {
			t.Errorf("per_page = %q, want %d", got, pageSize)
		}
		*requests++

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			t.Errorf("page = %d, want >= 1", page)
			page = 1
		}

		start := (page - 1) * pageSize
		end := start + pageSize
		if end > n {
			end = n
		}

		patches := make([]PatchSummary, 0, pageSize)
		for i := start; i < end; i++ {
			patches = append(patches, PatchSummary{
				ID:   1000 + i,
				Slug: fmt.Sprintf("patch-%d", i),
			})
		}

		if end < n {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/patches/?page=%d>; rel="next"`, r.Host, page+1))
		}
		json.NewEncoder(w).Encode(patches)
	}))
}

func TestClient_ListPatches_Pagination(t *testing.T) {
	// 5 records at page size 2 must take exactly ceil(5/2) = 3 requests.
	requests := 0
	server := catalogServer(t, 5, 2, &requests)
	defer server.Close()

	client := newTestClient(server, 2)
	patches, err := client.ListPatches(context.Background(), 8008)
	if err != nil {
		t.Fatalf("ListPatches() error = %v", err)
	}

	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	if len(patches) != 5 {
		t.Fatalf("ListPatches() returned %d patches, want 5", len(patches))
	}

	seen := make(map[int]bool)
	for _, p := range patches {
		if seen[p.ID] {
			t.Errorf("duplicate patch id %d", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestClient_ListPatches_SinglePage(t *testing.T) {
	requests := 0
	server := catalogServer(t, 2, 100, &requests)
	defer server.Close()

	client := newTestClient(server, 100)
	patches, err := client.ListPatches(context.Background(), 8008)
	if err != nil {
		t.Fatalf("ListPatches() error = %v", err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
	if len(patches) != 2 {
		t.Errorf("ListPatches() returned %d patches, want 2", len(patches))
	}
}

func TestClient_ListPatches_EmptyPageTerminates(t *testing.T) {
	// A server that always advertises rel="next" but runs out of entries
	// must not loop forever.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/patches/?page=%d>; rel="next"`, r.Host, page+1))
		if page == 1 {
			json.NewEncoder(w).Encode([]PatchSummary{{ID: 1, Slug: "only"}})
			return
		}
		json.NewEncoder(w).Encode([]PatchSummary{})
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	patches, err := client.ListPatches(context.Background(), 8008)
	if err != nil {
		t.Fatalf("ListPatches() error = %v", err)
	}
	if len(patches) != 1 {
		t.Errorf("ListPatches() returned %d patches, want 1", len(patches))
	}
}

func TestClient_ListPatches_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Code: "internal_error", Message: "boom"})
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	_, err := client.ListPatches(context.Background(), 8008)
	if !errors.Is(err, ErrAPIError) {
		t.Errorf("ListPatches() error = %v, want ErrAPIError", err)
	}
}

func TestClient_ListPatches_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	_, err := client.ListPatches(context.Background(), 8008)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("ListPatches() error = %v, want ErrRateLimited", err)
	}
}

func TestClient_ListPatches_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"this is": "not a list"`)
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	_, err := client.ListPatches(context.Background(), 8008)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ListPatches() error = %v, want ErrMalformedResponse", err)
	}
}

func TestClient_GetPatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patches/123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Patch{
			ID:    123,
			Slug:  "warm-delay",
			Title: "Warm Delay",
			Files: []File{
				{ID: 1, URL: "https://patchstorage.com/files/warm-delay.syx", Filesize: 312, Filename: "warm-delay.syx"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	patch, err := client.GetPatch(context.Background(), 123)
	if err != nil {
		t.Fatalf("GetPatch() error = %v", err)
	}

	if patch.Slug != "warm-delay" {
		t.Errorf("patch.Slug = %q, want %q", patch.Slug, "warm-delay")
	}
	if len(patch.Files) != 1 {
		t.Fatalf("patch has %d files, want 1", len(patch.Files))
	}
	if patch.Files[0].Filename != "warm-delay.syx" {
		t.Errorf("file name = %q, want %q", patch.Files[0].Filename, "warm-delay.syx")
	}
	if patch.Files[0].Filesize != 312 {
		t.Errorf("filesize = %d, want 312", patch.Files[0].Filesize)
	}
}

func TestClient_GetPatch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Code: "rest_post_invalid_id", Message: "Invalid patch ID."})
	}))
	defer server.Close()

	client := newTestClient(server, 100)
	_, err := client.GetPatch(context.Background(), 999)
	if !errors.Is(err, ErrPatchNotFound) {
		t.Errorf("GetPatch() error = %v, want ErrPatchNotFound", err)
	}
}
