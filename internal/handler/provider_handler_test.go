package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/provider"
)

// mockProviderService は教室サービスのモック。
type mockProviderService struct {
	record  *model.ProviderRecord
	records []*model.ProviderRecord
	err     error

	searchCity    string
	searchKeyword string
	searchLimit   int
}

func (m *mockProviderService) Onboard(ctx context.Context, identity *model.Identity, input provider.Input) (*model.ProviderRecord, error) {
	return m.record, m.err
}

func (m *mockProviderService) UpdateOwn(ctx context.Context, ownerID string, input provider.Input) (*model.ProviderRecord, error) {
	return m.record, m.err
}

func (m *mockProviderService) GetOwn(ctx context.Context, ownerID string) (*model.ProviderRecord, error) {
	return m.record, m.err
}

func (m *mockProviderService) Get(ctx context.Context, id string) (*model.ProviderRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *mockProviderService) Search(ctx context.Context, city, keyword string, limit int) ([]*model.ProviderRecord, error) {
	m.searchCity = city
	m.searchKeyword = keyword
	m.searchLimit = limit
	return m.records, m.err
}

// stubURLBuilder はパスを固定プレフィックスに連結するだけのビルダー。
type stubURLBuilder struct{}

func (stubURLBuilder) PublicURL(path string) string {
	return "https://storage.example.com/public/" + path
}

func approvedRecord(id string) *model.ProviderRecord {
	return &model.ProviderRecord{
		ID:           id,
		OwnerID:      "owner-1",
		BusinessName: "ピアノ教室どれみ",
		Email:        "owner@example.com",
		City:         "横浜市",
		Status:       model.StatusApproved,
		Verified:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestHandleOnboard(t *testing.T) {
	rec := approvedRecord("provider-1")
	rec.Status = model.StatusPending
	service := &mockProviderService{record: rec}
	h := NewProviderHandler(service, stubURLBuilder{})

	identity := &model.Identity{ID: "owner-1", Metadata: map[string]string{"role": "provider"}}
	req := authedRequest(http.MethodPost, "/api/provider/profile", providerInput{BusinessName: "ピアノ教室どれみ", City: "横浜市"}, identity)
	w := httptest.NewRecorder()
	h.HandleOnboard(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	var resp providerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "pending" {
		t.Errorf("expected pending status, got %q", resp.Status)
	}
}

func TestHandleOnboard_Duplicate(t *testing.T) {
	service := &mockProviderService{err: model.NewProviderExistsError()}
	h := NewProviderHandler(service, stubURLBuilder{})

	identity := &model.Identity{ID: "owner-1"}
	req := authedRequest(http.MethodPost, "/api/provider/profile", providerInput{BusinessName: "x"}, identity)
	w := httptest.NewRecorder()
	h.HandleOnboard(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
}

func TestHandleGetOwn_NotOnboarded(t *testing.T) {
	service := &mockProviderService{record: nil}
	h := NewProviderHandler(service, stubURLBuilder{})

	identity := &model.Identity{ID: "owner-1"}
	req := authedRequest(http.MethodGet, "/api/provider/profile", nil, identity)
	w := httptest.NewRecorder()
	h.HandleGetOwn(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleGetPublic_OmitsContactDetails(t *testing.T) {
	service := &mockProviderService{record: approvedRecord("provider-1")}
	h := NewProviderHandler(service, stubURLBuilder{})

	r := chi.NewRouter()
	r.Get("/api/providers/{providerID}", h.HandleGetPublic)

	req := httptest.NewRequest(http.MethodGet, "/api/providers/provider-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := raw["email"]; ok {
		t.Error("public response should not contain email")
	}
	if _, ok := raw["status"]; ok {
		t.Error("public response should not contain review status")
	}
}

func TestHandleSearch(t *testing.T) {
	service := &mockProviderService{records: []*model.ProviderRecord{approvedRecord("provider-1")}}
	h := NewProviderHandler(service, stubURLBuilder{})

	req := httptest.NewRequest(http.MethodGet, "/api/providers?city=横浜市&q=ピアノ&limit=10", nil)
	w := httptest.NewRecorder()
	h.HandleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if service.searchCity != "横浜市" || service.searchKeyword != "ピアノ" || service.searchLimit != 10 {
		t.Errorf("unexpected search args: city=%q keyword=%q limit=%d",
			service.searchCity, service.searchKeyword, service.searchLimit)
	}
}

func TestHandleSearch_InvalidLimit(t *testing.T) {
	h := NewProviderHandler(&mockProviderService{}, stubURLBuilder{})

	req := httptest.NewRequest(http.MethodGet, "/api/providers?limit=0", nil)
	w := httptest.NewRecorder()
	h.HandleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestHandleLogo(t *testing.T) {
	rec := approvedRecord("provider-1")
	rec.LogoData = []byte{0x89, 0x50, 0x4e, 0x47}
	rec.LogoMime = "image/png"
	service := &mockProviderService{record: rec}
	h := NewProviderHandler(service, stubURLBuilder{})

	r := chi.NewRouter()
	r.Get("/api/providers/{providerID}/logo", h.HandleLogo)

	req := httptest.NewRequest(http.MethodGet, "/api/providers/provider-1/logo", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("expected image/png, got %q", got)
	}
	if w.Body.Len() != 4 {
		t.Errorf("expected logo bytes, got %d bytes", w.Body.Len())
	}
}

func TestHandleLogo_NotFetched(t *testing.T) {
	service := &mockProviderService{record: approvedRecord("provider-1")}
	h := NewProviderHandler(service, stubURLBuilder{})

	r := chi.NewRouter()
	r.Get("/api/providers/{providerID}/logo", h.HandleLogo)

	req := httptest.NewRequest(http.MethodGet, "/api/providers/provider-1/logo", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestProfileImageURL(t *testing.T) {
	rec := approvedRecord("provider-1")
	rec.ProfileImagePath = "providers/provider-1/profile.png"
	service := &mockProviderService{record: rec}
	h := NewProviderHandler(service, stubURLBuilder{})

	identity := &model.Identity{ID: "owner-1"}
	req := authedRequest(http.MethodGet, "/api/provider/profile", nil, identity)
	w := httptest.NewRecorder()
	h.HandleGetOwn(w, req)

	var resp providerResponse
	json.NewDecoder(w.Body).Decode(&resp)
	want := "https://storage.example.com/public/providers/provider-1/profile.png"
	if resp.ProfileImageURL != want {
		t.Errorf("expected %q, got %q", want, resp.ProfileImageURL)
	}
}
