package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/model"
	"github.com/calebms/spanfill/internal/tokenizer"
)

// spanEngine emits a fixed token after the start-of-prediction token and
// an end token otherwise, with all mass on the favourite everywhere else.
type spanEngine struct {
	vocab int
	sop   int
	emit  int
	end   int
}

func (m spanEngine) Forward(ctx context.Context, tokens, positionIDs [][]int, attentionMask []encoding.Mask) ([][][]float32, error) {
	out := make([][][]float32, len(tokens))
	for i, row := range tokens {
		rows := make([][]float32, len(row))
		for p := range rows {
			rows[p] = make([]float32, m.vocab)
			rows[p][m.emit] = 10
		}
		hot := m.end
		if row[len(row)-1] == m.sop {
			hot = m.emit
		}
		rows[len(row)-1] = make([]float32, m.vocab)
		rows[len(row)-1][hot] = 10
		out[i] = rows
	}
	return out, nil
}

func newTestEcho(t *testing.T) (*echo.Echo, *tokenizer.Tokenizer) {
	t.Helper()
	tok := tokenizer.New([]string{"the", "cat", "sat"})
	engine := spanEngine{
		vocab: tok.VocabSize(),
		sop:   tok.MustCommand(tokenizer.CmdSop),
		emit:  tok.Tokenize("cat")[0],
		end:   tok.MustCommand(tokenizer.CmdEop),
	}
	factory := model.Factory(func() (model.Forwarder, error) { return engine, nil })
	service := NewService(tok, factory, 64, 64, nil)
	server := NewServer(service)
	e := echo.New()
	server.Register(e)
	return e, tok
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestInfillEndpoint(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/infill", `{"query":"the [MASK] sat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("infill status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp InfillResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode infill response: %v", err)
	}
	if resp.ID == "" || resp.Object != "infill" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if len(resp.Outputs) == 0 || resp.Outputs[0] != "the cat sat" {
		t.Fatalf("unexpected outputs: %v", resp.Outputs)
	}
}

func TestInfillValidationErrors(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/infill", `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/infill", `{"query":"x","strategy":"nucleus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown strategy, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "nucleus") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	mixed := `{"query":"a [MASK] b","use_task_mask":true}`
	rec = doJSON(t, e, http.MethodPost, "/v1/infill", mixed)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mixed mask kinds, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestScoreEndpoint(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/score", `{"query":"the","choices":["sat","cat"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode score response: %v", err)
	}
	if resp.Object != "score" || len(resp.Scores) != 2 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	// The engine puts all its mass on "cat".
	if resp.Best != 1 {
		t.Fatalf("best = %d, scores = %v", resp.Best, resp.Scores)
	}
	if resp.Scores[1] <= resp.Scores[0] {
		t.Fatalf("expected choice 1 to outscore choice 0: %v", resp.Scores)
	}
}

func TestScoreRequiresChoices(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/score", `{"query":"the","choices":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d", rec.Code)
	}
}
