package main

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/debounce"
	"quantum-stock/internal/domain"
	"quantum-stock/internal/fetcher"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/stock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	mu       sync.Mutex
	products []domain.Product
	created  []domain.ProductInput
	deleted  []domain.ProductID
}

func (m *memoryRepository) List(ctx context.Context, token string, params repository.ListParams) (*domain.PageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := append([]domain.Product(nil), m.products...)
	return &domain.PageResult{Products: products, TotalElements: len(products), TotalPages: 1}, nil
}

func (m *memoryRepository) Create(ctx context.Context, token string, input domain.ProductInput) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, input)
	p := domain.Product{ID: "3", Name: input.Name, Category: input.Category, Price: input.Price, Quantity: input.Quantity}
	m.products = append(m.products, p)
	return &p, nil
}

func (m *memoryRepository) Update(ctx context.Context, token string, id domain.ProductID, input domain.ProductInput) (*domain.Product, error) {
	return &domain.Product{ID: id, Name: input.Name}, nil
}

func (m *memoryRepository) Delete(ctx context.Context, token string, id domain.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

const (
	consoleClient = "quantum-stock-frontend"
	consoleSecret = "console-secret"
)

func consoleToken(t *testing.T, roles ...string) string {
	t.Helper()
	claimRoles := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		claimRoles = append(claimRoles, r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "ana",
		"preferred_username": "ana",
		"exp":                time.Now().Add(time.Hour).Unix(),
		"resource_access": map[string]interface{}{
			consoleClient: map[string]interface{}{"roles": claimRoles},
		},
	})
	s, err := token.SignedString([]byte(consoleSecret))
	require.NoError(t, err)
	return s
}

type consoleHarness struct {
	c       *console
	out     *bytes.Buffer
	repo    *memoryRepository
	clock   *debounce.ManualClock
	address *querystate.Address
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()
	address, err := querystate.NewAddress("/stock")
	require.NoError(t, err)

	repo := &memoryRepository{products: []domain.Product{
		{ID: "1", Name: "Laptop", Description: "14 pulgadas", Category: "ELECTRONICS", Price: 1000, Quantity: 5, MinQuantity: 2},
		{ID: "2", Name: "Mouse", Description: "Inalámbrico", Category: "ELECTRONICS", Price: 20, Quantity: 0, MinQuantity: 1},
	}}
	clock := debounce.NewManualClock()
	ctrl := stock.New(context.Background(), address, fetcher.New(repo, fetcher.Options{}), repo, stock.Options{Clock: clock})
	t.Cleanup(ctrl.Close)

	out := &bytes.Buffer{}
	return &consoleHarness{
		c: &console{
			ctx:    context.Background(),
			ctrl:   ctrl,
			parser: auth.NewParser(consoleClient, consoleSecret),
			out:    out,
		},
		out:     out,
		repo:    repo,
		clock:   clock,
		address: address,
	}
}

func (h *consoleHarness) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, h.c.exec(line), line)
	}
}

func TestConsole_ListRequiresAdminSession(t *testing.T) {
	h := newConsoleHarness(t)

	h.run(t, "list")
	assert.Contains(t, h.out.String(), "Inicia sesión")

	h.out.Reset()
	h.run(t, "token "+consoleToken(t, "user"), "list")
	assert.Contains(t, h.out.String(), "denied")
	assert.Contains(t, h.out.String(), "No tienes permisos")

	h.out.Reset()
	h.run(t, "token "+consoleToken(t, auth.RoleAdmin), "list")
	out := h.out.String()
	assert.Contains(t, out, "Laptop")
	assert.Contains(t, out, "Sin stock")
	assert.Contains(t, out, "Mostrando 1 a 2 de 2 productos")
}

func TestConsole_SearchIsDebounced(t *testing.T) {
	h := newConsoleHarness(t)
	h.run(t, "token "+consoleToken(t, auth.RoleAdmin), "page 3", "search laptop")

	assert.Equal(t, "/stock?page=3", h.address.String())

	h.clock.Advance(stock.DefaultSearchDelay)
	assert.Equal(t, "/stock?page=1&query=laptop", h.address.String())

	h.run(t, "clear")
	assert.Equal(t, "/stock?page=1", h.address.String())
}

func TestConsole_AddProduct(t *testing.T) {
	h := newConsoleHarness(t)
	h.run(t,
		"token "+consoleToken(t, auth.RoleAdmin),
		"add",
		"set name Monitor 27",
		"set description Pantalla",
		"set category home",
		"set price 0",
		"submit",
	)
	assert.Contains(t, h.out.String(), "El precio debe ser mayor a 0")
	assert.Empty(t, h.repo.created)

	h.run(t, "set price 199.9", "set quantity 3", "submit")
	require.Len(t, h.repo.created, 1)
	assert.Equal(t, "Monitor 27", h.repo.created[0].Name)
	assert.Equal(t, "HOME", h.repo.created[0].Category)
	assert.False(t, h.c.ctrl.View().Modal.Open())
}

func TestConsole_DeleteNeedsConfirmation(t *testing.T) {
	h := newConsoleHarness(t)
	h.run(t, "token "+consoleToken(t, auth.RoleAdmin), "delete 2")

	assert.Contains(t, h.out.String(), `¿Eliminar "Mouse"?`)
	assert.Empty(t, h.repo.deleted)

	h.run(t, "submit")
	assert.Equal(t, []domain.ProductID{"2"}, h.repo.deleted)
}

func TestConsole_Errors(t *testing.T) {
	h := newConsoleHarness(t)

	assert.ErrorIs(t, h.c.exec("quit"), errQuit)
	assert.ErrorIs(t, h.c.exec("frobnicate"), errUnknownCommand)
	assert.ErrorIs(t, h.c.exec("submit"), errNoDialog)
	assert.ErrorIs(t, h.c.exec("set name x"), errNoDialog)
	assert.Error(t, h.c.exec("page two"))
	assert.Error(t, h.c.exec("token not-a-jwt"))
	assert.NoError(t, h.c.exec("   "))
}

func TestApplyField(t *testing.T) {
	var in domain.ProductInput

	require.NoError(t, applyField(&in, "minQuantity", "4"))
	require.NoError(t, applyField(&in, "quantity", "9"))
	require.NoError(t, applyField(&in, "price", "12.5"))
	assert.Equal(t, 4, in.MinQuantity)
	assert.Equal(t, 9, in.Quantity)
	assert.Equal(t, 12.5, in.Price)

	err := applyField(&in, "quantity", "muchos")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errNoDialog))
	assert.Error(t, applyField(&in, "color", "rojo"))
}
