package echo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	httpecho "github.com/mohammadpnp/member-provisioning/internal/interfaces/http/echo"
)

type fakeGetMember struct {
	output app.GetMemberByIDOutput
	err    error
	got    app.GetMemberByIDInput
}

func (f *fakeGetMember) Execute(ctx context.Context, in app.GetMemberByIDInput) (app.GetMemberByIDOutput, error) {
	f.got = in
	if f.err != nil {
		return app.GetMemberByIDOutput{}, f.err
	}
	return f.output, nil
}

func newMemberServer(uc app.GetMemberByID) *echo.Echo {
	e := echo.New()
	httpecho.RegisterRoutes(e, httpecho.NewImportHandler(&fakeStartImport{}, &fakeEngine{}), httpecho.NewMemberHandler(uc))
	return e
}

func TestGetMemberSuccess(t *testing.T) {
	t.Parallel()

	uc := &fakeGetMember{output: app.GetMemberByIDOutput{
		ID:       "0f8fad5b-d9cb-469f-a165-70867728950e",
		Name:     "Alice",
		Email:    "alice@example.com",
		Role:     "member",
		PersonID: "P1",
	}}
	e := newMemberServer(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/0f8fad5b-d9cb-469f-a165-70867728950e", nil)
	req.Header.Set(httpecho.HeaderTenantID, "tenant-1")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if uc.got.TenantID != "tenant-1" || uc.got.ID != "0f8fad5b-d9cb-469f-a165-70867728950e" {
		t.Fatalf("unexpected input: %+v", uc.got)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["email"] != "alice@example.com" {
		t.Fatalf("unexpected email: %#v", data["email"])
	}
	if _, ok := data["password_hash"]; ok {
		t.Fatalf("credential material must not be exposed")
	}
}

func TestGetMemberErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing tenant", err: app.ErrMissingTenant, want: http.StatusBadRequest},
		{name: "invalid id", err: app.ErrInvalidMemberID, want: http.StatusBadRequest},
		{name: "not found", err: app.ErrMemberNotFound, want: http.StatusNotFound},
		{name: "internal", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newMemberServer(&fakeGetMember{err: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/members/some-id", nil)
			req.Header.Set(httpecho.HeaderTenantID, "tenant-1")
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
