package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContextDefaults(t *testing.T) {
	p := FromContext(newContext(""))
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestFromContextCapsLimit(t *testing.T) {
	p := FromContext(newContext("limit=5000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContextParses(t *testing.T) {
	p := FromContext(newContext("limit=10&offset=30"))
	if p.Limit != 10 || p.Offset != 30 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestSQL(t *testing.T) {
	p := Params{Limit: 10, Offset: 30}
	if got := p.SQL(); got != "LIMIT 10 OFFSET 30" {
		t.Errorf("unexpected SQL clause %q", got)
	}
}

func TestNewResponseHasMore(t *testing.T) {
	r := NewResponse(nil, 50, 20, 20)
	if !r.HasMore {
		t.Error("expected HasMore with results remaining")
	}
	r = NewResponse(nil, 40, 20, 20)
	if r.HasMore {
		t.Error("expected HasMore false on last page")
	}
}
