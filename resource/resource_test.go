// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "rivaas.dev/rest/errors"
)

type createOrder struct {
	Item string
}

type orderView struct {
	ID   int
	Item string
}

type orderService struct{ next int }

func (s *orderService) Create(ctx context.Context, in *createOrder) (*orderView, error) {
	s.next++
	return &orderView{ID: s.next, Item: in.Item}, nil
}

func (s *orderService) Delete(r *http.Request) error {
	if r.URL.Query().Get("id") == "" {
		return rerrors.NewApplicationError("id is required")
	}
	return nil
}

func TestHandle_ClassifiesParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fn       any
		want     []ParamKind
		wantBody bool
	}{
		{name: "none", fn: func() {}, want: nil},
		{name: "request only", fn: func(*http.Request) error { return nil }, want: []ParamKind{ParamRequest}},
		{name: "context and body", fn: func(context.Context, createOrder) (string, error) { return "", nil }, want: []ParamKind{ParamContext, ParamBody}, wantBody: true},
		{name: "all three", fn: func(*createOrder, *http.Request, context.Context) {}, want: []ParamKind{ParamBody, ParamRequest, ParamContext}, wantBody: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New("Orders")
			require.NoError(t, r.Handle("m", tt.fn))
			m, err := r.Lookup("m")
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Descriptor().Params())
			assert.Equal(t, tt.wantBody, m.Descriptor().BodyType() != nil)
		})
	}
}

func TestHandle_InvalidSignatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   any
	}{
		{name: "two bodies", fn: func(createOrder, orderView) {}},
		{name: "two requests", fn: func(*http.Request, *http.Request) {}},
		{name: "two contexts", fn: func(context.Context, context.Context) {}},
		{name: "not a function", fn: "create"},
		{name: "nil", fn: nil},
		{name: "variadic", fn: func(...string) {}},
		{name: "second result not error", fn: func() (int, int) { return 0, 0 }},
		{name: "three results", fn: func() (int, string, error) { return 0, "", nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := New("Orders").Handle("create", tt.fn)
			require.Error(t, err)
			require.ErrorIs(t, err, rerrors.ErrInvalidSignature)
			assert.Contains(t, err.Error(), "Orders.create")
			assert.True(t, rerrors.IsConfigurationError(err))
		})
	}
}

func TestMustHandle_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		New("Orders").MustHandle("create", func(createOrder, createOrder) {})
	})
}

func TestLookup(t *testing.T) {
	t.Parallel()

	r := New("OrderResource")
	r.MustHandle("list", func() []string { return nil })

	_, err := r.Lookup("List")
	require.ErrorIs(t, err, rerrors.ErrNotFound, "names are case-sensitive")
	status, _ := rerrors.StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)

	r.MustHandle("list", func(*http.Request) []string { return nil })
	_, err = r.Lookup("list")
	require.ErrorIs(t, err, rerrors.ErrAmbiguousMethod)
	assert.Contains(t, err.Error(), "OrderResource")
	assert.Contains(t, err.Error(), `"list"`)
}

func TestOptions_FirstDeclaredWins(t *testing.T) {
	t.Parallel()

	r := New("Orders")
	r.MustHandle("create", func(createOrder) {},
		Consumes("application/json", "application/xml"),
		Consumes("text/plain"),
		Produces("", "application/xml"),
		Validate("create"),
		ConvertGroup("Default", "create"),
	)
	m, err := r.Lookup("create")
	require.NoError(t, err)
	d := m.Descriptor()
	assert.Equal(t, "application/json", d.Consumes())
	assert.Equal(t, "application/xml", d.Produces())
	assert.True(t, d.Validated())
	assert.Equal(t, []string{"create"}, d.Groups())
	conv, ok := d.GroupConversion()
	require.True(t, ok)
	assert.Equal(t, GroupConversion{From: "Default", To: "create"}, conv)
	assert.Equal(t, "Orders.create", d.Path())
}

func TestInvoke_BuildsArguments(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	var gotReq *http.Request
	var gotCtx context.Context

	r := New("Orders")
	r.MustHandle("create", func(body *createOrder, req *http.Request, ctx context.Context) (string, error) {
		gotReq, gotCtx = req, ctx
		return body.Item, nil
	})
	m, err := r.Lookup("create")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	out, err := m.Invoke(ctx, req, &createOrder{Item: "book"})
	require.NoError(t, err)
	assert.Equal(t, "book", out)
	assert.Same(t, req, gotReq)
	assert.Equal(t, "v", gotCtx.Value(ctxKey{}))
}

func TestInvoke_Results(t *testing.T) {
	t.Parallel()

	appErr := rerrors.NewApplicationError("out of stock")
	r := New("Orders")
	r.MustHandle("nothing", func() {})
	r.MustHandle("nilPointer", func() *orderView { return nil })
	r.MustHandle("failing", func() (*orderView, error) { return &orderView{}, appErr })
	r.MustHandle("wrapped", func() error { return fmt.Errorf("lookup: %w", appErr) })
	r.MustHandle("nilBody", func(in *createOrder) bool { return in == nil })

	invoke := func(name string, body any) (any, error) {
		m, err := r.Lookup(name)
		require.NoError(t, err)
		return m.Invoke(context.Background(), nil, body)
	}

	out, err := invoke("nothing", nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = invoke("nilPointer", nil)
	require.NoError(t, err)
	assert.Nil(t, out, "typed nil results are reported as nil")

	out, err = invoke("failing", nil)
	assert.Nil(t, out)
	assert.Same(t, appErr, err, "errors propagate unchanged")

	_, err = invoke("wrapped", nil)
	assert.Equal(t, "lookup: out of stock", err.Error())
	assert.ErrorIs(t, err, appErr)

	out, err = invoke("nilBody", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestInvoke_RecoversPanics(t *testing.T) {
	t.Parallel()

	r := New("Orders")
	r.MustHandle("explode", func() error { panic("boom") })
	m, err := r.Lookup("explode")
	require.NoError(t, err)

	out, err := m.Invoke(context.Background(), nil, nil)
	assert.Nil(t, out)
	require.ErrorIs(t, err, rerrors.ErrInternal)
	var internal *rerrors.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "boom", internal.Value)
	assert.NotEmpty(t, internal.Stack)
	assert.Equal(t, rerrors.KindUnclassified, rerrors.Classify(err))
}

func TestInvoke_WrongBodyTypeIsInternal(t *testing.T) {
	t.Parallel()

	r := New("Orders")
	r.MustHandle("create", func(*createOrder) {})
	m, err := r.Lookup("create")
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(), nil, "not an order")
	require.ErrorIs(t, err, rerrors.ErrInternal)
}

func TestFunc(t *testing.T) {
	t.Parallel()

	r := New("Orders")
	require.NoError(t, Func(r, "create", func(_ context.Context, in createOrder) (*orderView, error) {
		if in.Item == "" {
			return nil, nil
		}
		return &orderView{ID: 1, Item: in.Item}, nil
	}, Consumes("application/json")))

	m, err := r.Lookup("create")
	require.NoError(t, err)
	assert.Equal(t, []ParamKind{ParamContext, ParamBody}, m.Descriptor().Params())
	assert.Equal(t, "application/json", m.Descriptor().Consumes())

	out, err := m.Invoke(context.Background(), nil, createOrder{Item: "pen"})
	require.NoError(t, err)
	assert.Equal(t, &orderView{ID: 1, Item: "pen"}, out)

	out, err = m.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = m.Invoke(context.Background(), nil, 42)
	require.ErrorIs(t, err, rerrors.ErrInternal)

	require.NoError(t, RequestFunc(r, "ping", func(_ context.Context, req *http.Request) (string, error) {
		return req.Method, nil
	}))
	ping, err := r.Lookup("ping")
	require.NoError(t, err)
	out, err = ping.Invoke(context.Background(), httptest.NewRequest(http.MethodHead, "/", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, out)
}

func TestFromDelegate(t *testing.T) {
	t.Parallel()

	svc := &orderService{}
	r, err := FromDelegate("", svc, map[string][]MethodOption{
		"Create": {Consumes("application/json"), Produces("application/json")},
	})
	require.NoError(t, err)
	assert.Equal(t, "orderService", r.Name())
	assert.ElementsMatch(t, []string{"Create", "Delete"}, r.Names())

	create, err := r.Lookup("Create")
	require.NoError(t, err)
	assert.Equal(t, "orderService.Create", create.Descriptor().Path())
	assert.Equal(t, "application/json", create.Descriptor().Produces())

	out, err := create.Invoke(context.Background(), nil, &createOrder{Item: "mug"})
	require.NoError(t, err)
	assert.Equal(t, &orderView{ID: 1, Item: "mug"}, out)

	del, err := r.Lookup("Delete")
	require.NoError(t, err)
	_, err = del.Invoke(context.Background(), httptest.NewRequest(http.MethodDelete, "/orders", nil), nil)
	assert.True(t, rerrors.IsApplicationError(err))

	_, err = FromDelegate("x", nil, nil)
	require.ErrorIs(t, err, rerrors.ErrInvalidSignature)
}

func TestRequestContext(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rc := NewRequestContext(req)
	assert.Equal(t, "req-42", rc.RequestID())
	assert.False(t, rc.StartTime().IsZero())
	assert.Nil(t, rc.Descriptor())

	_, ok := rc.Body()
	assert.False(t, ok)
	require.NoError(t, rc.SetBody(nil))
	v, ok := rc.Body()
	assert.True(t, ok)
	assert.Nil(t, v)
	require.ErrorIs(t, rc.SetBody("again"), ErrBodyAlreadySet)

	r := New("Orders")
	r.MustHandle("list", func() {})
	m, err := r.Lookup("list")
	require.NoError(t, err)
	rc.Bind(m)
	assert.Same(t, m.Descriptor(), rc.Descriptor())
	assert.Equal(t, "Orders", rc.HandlerType())
	assert.Equal(t, "list", rc.HandlerMethod())

	ctx := NewContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)
	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestRequestContext_GeneratesID(t *testing.T) {
	t.Parallel()

	a := NewRequestContext(httptest.NewRequest(http.MethodGet, "/", nil))
	b := NewRequestContext(nil)
	assert.Len(t, a.RequestID(), 36)
	assert.NotEqual(t, a.RequestID(), b.RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, string(make([]byte, 500)))
	assert.Len(t, NewRequestContext(req).RequestID(), 36)
}

func TestRequestContext_CustomGenerator(t *testing.T) {
	t.Parallel()

	rc := NewRequestContextWithID(httptest.NewRequest(http.MethodGet, "/", nil), func() string { return "fixed" })
	assert.Equal(t, "fixed", rc.RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	assert.Equal(t, "client-id", NewRequestContextWithID(req, func() string { return "fixed" }).RequestID())
}

func TestRequestContext_RejectsUnsafeInboundID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{
		"has space",
		"line\nbreak",
		"tab\tid",
		"<script>alert(1)</script>",
		"quote\"id",
		"ünïcode",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header[HeaderRequestID] = []string{id}
		assert.Equal(t, "fixed", NewRequestContextWithID(req, func() string { return "fixed" }).RequestID(), id)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "018f3e9a-1b2c-7def-8000-abcdef123456")
	assert.Equal(t, "018f3e9a-1b2c-7def-8000-abcdef123456", NewRequestContext(req).RequestID())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "svc.a:trace_01")
	assert.Equal(t, "svc.a:trace_01", NewRequestContext(req).RequestID())
}
