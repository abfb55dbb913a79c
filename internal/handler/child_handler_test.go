package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/parent"
)

// mockChildService は子どもサービスのモック。
type mockChildService struct {
	children []model.Child
	child    *model.Child
	err      error

	removedChildID string
}

func (m *mockChildService) List(ctx context.Context, parentID string) ([]model.Child, error) {
	return m.children, m.err
}

func (m *mockChildService) Add(ctx context.Context, parentID string, input parent.ChildInput) (*model.Child, error) {
	return m.child, m.err
}

func (m *mockChildService) Update(ctx context.Context, parentID, childID string, input parent.ChildInput) (*model.Child, error) {
	return m.child, m.err
}

func (m *mockChildService) Remove(ctx context.Context, parentID, childID string) error {
	m.removedChildID = childID
	return m.err
}

func TestHandleChildList(t *testing.T) {
	service := &mockChildService{children: []model.Child{
		{ID: "child-1", Name: "太郎", BirthYear: 2018},
		{ID: "child-2", Name: "花子", BirthYear: 2020},
	}}
	h := NewChildHandler(service)

	identity := &model.Identity{ID: "parent-1"}
	req := authedRequest(http.MethodGet, "/api/children", nil, identity)
	w := httptest.NewRecorder()
	h.HandleList(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Children []childResponse `json:"children"`
		Count    int             `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Children) != 2 {
		t.Errorf("expected 2 children, got %+v", resp)
	}
}

func TestHandleChildAdd(t *testing.T) {
	service := &mockChildService{child: &model.Child{ID: "child-1", Name: "太郎", BirthYear: 2018}}
	h := NewChildHandler(service)

	identity := &model.Identity{ID: "parent-1"}
	req := authedRequest(http.MethodPost, "/api/children", childInput{Name: "太郎", BirthYear: 2018}, identity)
	w := httptest.NewRecorder()
	h.HandleAdd(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
}

func TestHandleChildUpdate_NotFound(t *testing.T) {
	service := &mockChildService{err: model.NewChildNotFoundError("child-x")}
	h := NewChildHandler(service)

	r := chi.NewRouter()
	r.Put("/api/children/{childID}", h.HandleUpdate)

	identity := &model.Identity{ID: "parent-1"}
	req := authedRequest(http.MethodPut, "/api/children/child-x", childInput{Name: "太郎"}, identity)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleChildRemove(t *testing.T) {
	service := &mockChildService{}
	h := NewChildHandler(service)

	r := chi.NewRouter()
	r.Delete("/api/children/{childID}", h.HandleRemove)

	identity := &model.Identity{ID: "parent-1"}
	req := authedRequest(http.MethodDelete, "/api/children/child-1", nil, identity)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if service.removedChildID != "child-1" {
		t.Errorf("expected child-1 removed, got %q", service.removedChildID)
	}
}

func TestHandleChildList_RequiresSession(t *testing.T) {
	h := NewChildHandler(&mockChildService{})

	req := httptest.NewRequest(http.MethodGet, "/api/children", nil)
	w := httptest.NewRecorder()
	h.HandleList(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}
