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

// Package orders is the in-memory orders resource served by restd.
package orders

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Order is a customer order.
type Order struct {
	XMLName  xml.Name  `json:"-" xml:"order"`
	ID       string    `json:"id" xml:"id"`
	SKU      string    `json:"sku" xml:"sku" validate:"required,alphanum" validate_create:"required,alphanum"`
	Quantity int       `json:"quantity" xml:"quantity" validate:"gte=1,lte=1000" validate_create:"gte=1,lte=1000"`
	Note     string    `json:"note,omitempty" xml:"note,omitempty" validate_create:"max=200"`
	Created  time.Time `json:"created" xml:"created"`
}

// ErrNotFound is returned for unknown order ids.
var ErrNotFound = errors.New("order not found")

// Store keeps orders in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*Order
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*Order), now: time.Now}
}

// Create stores o under a new id.
func (s *Store) Create(_ context.Context, o *Order) (*response.Entity, error) {
	stored := *o
	stored.ID = uuid.NewString()
	stored.Created = s.now().UTC()

	s.mu.Lock()
	s.orders[stored.ID] = &stored
	s.mu.Unlock()

	return response.NewEntity(&stored).
		WithStatus(http.StatusCreated).
		WithHeader("Location", "/orders/"+stored.ID), nil
}

// Get returns the order named by the {id} path variable.
func (s *Store) Get(_ context.Context, r *http.Request) (*Order, error) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, rerrors.WithStatus(fmt.Errorf("%w: %s", ErrNotFound, id), http.StatusNotFound)
	}
	cp := *o
	return &cp, nil
}

// List returns all orders sorted by creation time, optionally filtered by
// the sku query parameter.
func (s *Store) List(_ context.Context, r *http.Request) ([]Order, error) {
	sku := r.URL.Query().Get("sku")
	s.mu.RLock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if sku == "" || strings.EqualFold(o.SKU, sku) {
			out = append(out, *o)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Order) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete removes the order named by the {id} path variable.
func (s *Store) Delete(_ context.Context, r *http.Request) (*response.Response, error) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return nil, rerrors.WithStatus(fmt.Errorf("%w: %s", ErrNotFound, id), http.StatusNotFound)
	}
	delete(s.orders, id)
	return response.NoContent(), nil
}

// Len returns the number of stored orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Media types the resource reads and writes.
const (
	Consumes = "application/json"
	Produces = "application/json"
)

// Resource exposes s as the "Orders" resource with the methods Create,
// Get, List and Delete.
func Resource(s *Store) (*resource.Resource, error) {
	res := resource.New("Orders")
	err := errors.Join(
		resource.Func(res, "Create", s.Create,
			resource.Consumes(Consumes),
			resource.Produces(Produces),
			resource.Validate("create"),
		),
		resource.RequestFunc(res, "Get", s.Get, resource.Produces(Produces)),
		resource.RequestFunc(res, "List", s.List, resource.Produces(Produces)),
		resource.RequestFunc(res, "Delete", s.Delete),
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Route binds a resource method to an HTTP method and path.
type Route struct {
	Method, Path, Name string
}

// Routes lists where the methods of [Resource] are served.
var Routes = []Route{
	{http.MethodPost, "/orders", "Create"},
	{http.MethodGet, "/orders", "List"},
	{http.MethodGet, "/orders/{id}", "Get"},
	{http.MethodDelete, "/orders/{id}", "Delete"},
}
