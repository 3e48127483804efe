package service

import (
	"context"
	"errors"
	"testing"

	"panaderia/internal/domain"
	"panaderia/internal/repository"
	"panaderia/internal/validate"
)

func TestProductCRUD(t *testing.T) {
	ctx := context.Background()
	ps, _, _ := setup(t)

	p, err := ps.Create(ctx, domain.Product{Name: "Concha", Price: 8.5, Stock: 5, Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	p.Price = 9
	if _, err := ps.Update(ctx, *p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := ps.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 9 {
		t.Fatalf("price expected 9, got %v", got.Price)
	}

	if err := ps.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ps.GetByID(ctx, p.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductInvalidInput(t *testing.T) {
	ctx := context.Background()
	ps, _, _ := setup(t)

	cases := []domain.Product{
		{Name: "", Price: 1, Stock: 1},
		{Name: "Concha", Price: -1, Stock: 1},
		{Name: "Concha", Price: 1, Stock: -1},
	}
	for _, c := range cases {
		if _, err := ps.Create(ctx, c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", c, err)
		}
	}
}

func TestProductListFilters(t *testing.T) {
	ctx := context.Background()
	ps, _, _ := setup(t)

	mustCreate := func(p domain.Product) {
		t.Helper()
		if _, err := ps.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.Name, err)
		}
	}
	mustCreate(domain.Product{Name: "Concha", Price: 8.5, Stock: 5, Active: true})
	mustCreate(domain.Product{Name: "Bolillo", Price: 2, Stock: 9, Active: true})
	mustCreate(domain.Product{Name: "Rosca de Reyes", Price: 120, Stock: 1, Active: false})

	active, err := ps.List(ctx, repository.ProductFilter{OnlyActive: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}

	byName, err := ps.List(ctx, repository.ProductFilter{NameSubstring: "rosca"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Rosca de Reyes" {
		t.Fatalf("name filter failed: %+v", byName)
	}
}

func TestCustomerSchemaValidation(t *testing.T) {
	ctx := context.Background()
	_, cs, _ := setup(t)

	_, err := cs.Create(ctx, domain.Customer{FirstName: "M", PaternalName: "", Email: "no-es-correo"})
	var fieldErrs validate.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	for _, field := range []string{"nombre", "apellidoPaterno", "correo"} {
		if _, ok := fieldErrs[field]; !ok {
			t.Fatalf("expected error for %s, got %v", field, fieldErrs)
		}
	}

	// валидная форма проходит
	if _, err := cs.Create(ctx, domain.Customer{
		FirstName:    "María",
		PaternalName: "López",
		Email:        "maria@example.com",
	}); err != nil {
		t.Fatalf("valid customer rejected: %v", err)
	}
}
