package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/application"
	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/cristianortiz/auctionEngine/internal/shared/db"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is a minimal in-memory domain.LotRepository.
type memRepo struct {
	mu     sync.Mutex
	lots   map[int64]domain.Lot
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{lots: make(map[int64]domain.Lot), nextID: 1}
}

func (r *memRepo) EnsureSchema(context.Context) error { return nil }

func (r *memRepo) List(context.Context) ([]*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Lot{}
	for _, l := range r.lots {
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *memRepo) Create(_ context.Context, lot *domain.Lot) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := *lot
	l.ID = r.nextID
	l.CreatedAt = time.Date(2025, 1, 1, 0, 0, int(r.nextID), 0, time.UTC)
	r.nextID++
	r.lots[l.ID] = l
	return &l, nil
}

func (r *memRepo) Update(_ context.Context, id int64, lot *domain.Lot) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	l := *lot
	l.ID = id
	l.CreatedAt = existing.CreatedAt
	r.lots[id] = l
	return &l, nil
}

func (r *memRepo) Remove(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lots[id]; !ok {
		return false, nil
	}
	delete(r.lots, id)
	return true, nil
}

func (r *memRepo) UpdateCurrentPrice(_ context.Context, id int64, amount decimal.Decimal) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok || !amount.GreaterThan(l.LeadingPrice()) || l.HasEnded(time.Now()) {
		return nil, nil
	}
	l.CurrentPrice = &amount
	r.lots[id] = l
	return &l, nil
}

type allowAll struct{}

func (allowAll) Verify(context.Context, string, string) (bool, error) { return true, nil }

func newTestApp(svc application.LotService) *fiber.App {
	app := fiber.New()
	NewLotHandler(svc, allowAll{}).RegisterRoutes(app)
	return app
}

type response struct {
	status int
	body   []byte
}

func (r response) object(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.body, &m), string(r.body))
	return m
}

func do(t *testing.T, app *fiber.App, method, path, body string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer test-token")
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: raw}
}

func TestLotRoutes_RequireAuth(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/lots", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLotRoutes_CreateAndGet(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))

	created := do(t, app, fiber.MethodPost, "/lots",
		`{"name":"Vase","description":"Ming","start_price":10.00,"owner_id":"acc-1","auction_end_date":"2030-01-01 10:00:00+02:00","created_at":"ignored"}`)
	require.Equal(t, fiber.StatusCreated, created.status, string(created.body))

	lot := created.object(t)
	assert.Equal(t, float64(1), lot["id"])
	assert.Equal(t, "Vase", lot["name"])
	assert.Equal(t, float64(10), lot["start_price"])
	assert.Nil(t, lot["current_price"])
	assert.Equal(t, "2030-01-01T08:00:00Z", lot["auction_end_date"])

	got := do(t, app, fiber.MethodGet, "/lots/1", "")
	assert.Equal(t, fiber.StatusOK, got.status)
	assert.JSONEq(t, string(created.body), string(got.body))
}

func TestLotRoutes_CreateValidation(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed json", `{"name":`, "Invalid JSON payload"},
		{"not an object", `[1,2]`, "Invalid JSON payload"},
		{"wrong type", `{"name":42,"start_price":10}`, "Invalid JSON payload"},
		{"missing name", `{"start_price":10}`, domain.ErrNameRequired.Error()},
		{"zero price", `{"name":"Vase","start_price":0}`, domain.ErrInvalidStartPrice.Error()},
		{"sub-cent price", `{"name":"Vase","start_price":0.004}`, domain.ErrInvalidStartPrice.Error()},
		{"bad deadline", `{"name":"Vase","start_price":10,"auction_end_date":"soon"}`, domain.ErrInvalidAuctionEnd.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, fiber.MethodPost, "/lots", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.status)
			assert.Equal(t, tt.message, resp.object(t)["error"])
		})
	}
}

func TestLotRoutes_GetErrors(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))

	assert.Equal(t, fiber.StatusNotFound, do(t, app, fiber.MethodGet, "/lots/99", "").status)
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, fiber.MethodGet, "/lots/abc", "").status)
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, fiber.MethodGet, "/lots/0", "").status)
}

func TestLotRoutes_List(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))

	empty := do(t, app, fiber.MethodGet, "/lots", "")
	assert.Equal(t, fiber.StatusOK, empty.status)
	assert.Equal(t, "[]", string(empty.body))

	for _, name := range []string{"first", "second"} {
		do(t, app, fiber.MethodPost, "/lots", fmt.Sprintf(`{"name":%q,"start_price":1}`, name))
	}

	var lots []map[string]any
	require.NoError(t, json.Unmarshal(do(t, app, fiber.MethodGet, "/lots", "").body, &lots))
	require.Len(t, lots, 2)
	assert.Equal(t, "second", lots[0]["name"])
}

func TestLotRoutes_PartialUpdate(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))
	do(t, app, fiber.MethodPost, "/lots", `{"name":"Vase","description":"Ming","start_price":10,"owner_id":"acc-1","auction_end_date":"2030-01-01T00:00:00Z"}`)

	resp := do(t, app, fiber.MethodPut, "/lots/1", `{"name":"Tall vase","description":null}`)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	lot := resp.object(t)
	assert.Equal(t, "Tall vase", lot["name"])
	assert.Nil(t, lot["description"], "null clears an optional member")
	assert.Equal(t, "acc-1", lot["owner_id"], "absent members keep the stored value")
	assert.Equal(t, float64(10), lot["start_price"])
	assert.Equal(t, "2030-01-01T00:00:00Z", lot["auction_end_date"])

	// null never clears the required members
	resp = do(t, app, fiber.MethodPut, "/lots/1", `{"name":null,"start_price":null,"auction_end_date":null}`)
	require.Equal(t, fiber.StatusOK, resp.status)
	lot = resp.object(t)
	assert.Equal(t, "Tall vase", lot["name"])
	assert.Equal(t, float64(10), lot["start_price"])
	assert.Nil(t, lot["auction_end_date"])

	assert.Equal(t, fiber.StatusNotFound, do(t, app, fiber.MethodPut, "/lots/7", `{"name":"x"}`).status)
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, fiber.MethodPut, "/lots/1", `nope`).status)
}

func TestLotRoutes_Delete(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))
	do(t, app, fiber.MethodPost, "/lots", `{"name":"Vase","start_price":10}`)

	resp := do(t, app, fiber.MethodDelete, "/lots/1", "")
	assert.Equal(t, fiber.StatusNoContent, resp.status)
	assert.Empty(t, resp.body)

	assert.Equal(t, fiber.StatusNotFound, do(t, app, fiber.MethodDelete, "/lots/1", "").status)
	assert.Equal(t, fiber.StatusNotFound, do(t, app, fiber.MethodGet, "/lots/1", "").status)
}

func TestLotRoutes_BidScenario(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))
	do(t, app, fiber.MethodPost, "/lots", `{"name":"Vase","start_price":10.00}`)

	resp := do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":15.00}`)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, float64(15), resp.object(t)["current_price"])

	resp = do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":12}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, domain.ErrBidAmountTooLow.Error(), resp.object(t)["error"])

	resp = do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":"20.00"}`)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(20), resp.object(t)["current_price"])

	resp = do(t, app, fiber.MethodPost, "/lots/1/bid", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "Missing amount", resp.object(t)["error"])

	resp = do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":-1}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":20.004}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, domain.ErrInvalidAmount.Error(), resp.object(t)["error"])

	resp = do(t, app, fiber.MethodPost, "/lots/42/bid", `{"amount":50}`)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "Lot not found", resp.object(t)["error"])
}

func TestLotRoutes_BidOnEndedAuction(t *testing.T) {
	app := newTestApp(application.NewLotService(newMemRepo()))
	do(t, app, fiber.MethodPost, "/lots", `{"name":"Clock","start_price":10,"auction_end_date":"2020-01-01"}`)

	resp := do(t, app, fiber.MethodPost, "/lots/1/bid", `{"amount":1000}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, domain.ErrAuctionEnded.Error(), resp.object(t)["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidLotID, fiber.StatusBadRequest},
		{errInvalidPayload, fiber.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrLotNotFound), fiber.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrBidAmountTooLow), fiber.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrAuctionEnded), fiber.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrConcurrentModification), fiber.StatusConflict},
		{fmt.Errorf("wrapped: %w", &db.ConnectionError{Attempts: 3, Err: errors.New("refused")}), fiber.StatusServiceUnavailable},
		{&db.QueryError{Op: "lot_insert", Message: "value too long"}, fiber.StatusInternalServerError},
		{errors.New("anything else"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestMessageFor_QueryErrorCarriesBackendText(t *testing.T) {
	err := fmt.Errorf("create lot use case: %w", &db.QueryError{Op: "lot_insert", Message: "value too long for type character varying(255)"})
	assert.Equal(t, "value too long for type character varying(255)", messageFor(err))
}

func TestMethods(t *testing.T) {
	methods := Methods()

	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.MethodName)
	}
	assert.Equal(t, []string{"ListLots", "GetLot", "CreateLot", "UpdateLot", "DeleteLot", "PlaceBid", "Health"}, names)
	assert.Len(t, methods[5].Arguments, 2)
	assert.Equal(t, "amount", methods[5].Arguments[1].ArgumentName)
}
