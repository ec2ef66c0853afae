package renderhttp

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

func serve(t *testing.T, s *Server, method, uri string) *fasthttp.Response {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	s.Handler(&ctx)
	var resp fasthttp.Response
	ctx.Response.CopyTo(&resp)
	return &resp
}

func boardURI(q url.Values) string { return "/board.png?" + q.Encode() }

func TestBoardPNG(t *testing.T) {
	s := New(WithDefaultSize(160))
	resp := serve(t, s, fasthttp.MethodGet, boardURI(url.Values{
		"fen":  {afterE4},
		"last": {"e2e4"},
		"best": {"c7c5"},
		"flip": {"1"},
	}))
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode(), resp.Body())
	}
	if ct := string(resp.Header.ContentType()); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 160 {
		t.Errorf("width = %d; want default 160", img.Bounds().Dx())
	}
}

func TestBoardPNGSize(t *testing.T) {
	resp := serve(t, New(), fasthttp.MethodGet, boardURI(url.Values{"size": {"96"}}))
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode(), resp.Body())
	}
	img, err := png.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 96 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
}

func TestBoardPNGErrors(t *testing.T) {
	s := New()
	tests := []struct {
		name   string
		method string
		uri    string
		status int
	}{
		{"bad fen", fasthttp.MethodGet, boardURI(url.Values{"fen": {"not a fen"}}), fasthttp.StatusBadRequest},
		{"bad last move", fasthttp.MethodGet, boardURI(url.Values{"last": {"e2"}}), fasthttp.StatusBadRequest},
		{"bad best move", fasthttp.MethodGet, boardURI(url.Values{"best": {"z9a1"}}), fasthttp.StatusBadRequest},
		{"size too small", fasthttp.MethodGet, boardURI(url.Values{"size": {"8"}}), fasthttp.StatusBadRequest},
		{"size not a number", fasthttp.MethodGet, boardURI(url.Values{"size": {"big"}}), fasthttp.StatusBadRequest},
		{"unknown path", fasthttp.MethodGet, "/nope", fasthttp.StatusNotFound},
		{"post", fasthttp.MethodPost, "/board.png", fasthttp.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, s, tt.method, tt.uri)
			if resp.StatusCode() != tt.status {
				t.Errorf("status = %d; want %d (body %s)", resp.StatusCode(), tt.status, resp.Body())
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	resp := serve(t, New(), fasthttp.MethodGet, "/healthz")
	if resp.StatusCode() != fasthttp.StatusOK || !strings.EqualFold(string(resp.Body()), "ok") {
		t.Errorf("healthz = %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestTruthyFalsy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		if !truthy([]byte(v)) {
			t.Errorf("truthy(%q) = false", v)
		}
	}
	if truthy([]byte("")) || truthy([]byte("2")) {
		t.Error("truthy accepted junk")
	}
	if !falsy([]byte("off")) || falsy([]byte("")) {
		t.Error("falsy mismatch")
	}
}
