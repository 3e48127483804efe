package catalog

import (
	"context"
	"fmt"

	"panaderia/internal/repository"
)

// LocalLoader строит снимок из собственных репозиториев сервиса
type LocalLoader struct {
	products  repository.ProductRepository
	customers repository.CustomerRepository
}

func NewLocalLoader(products repository.ProductRepository, customers repository.CustomerRepository) *LocalLoader {
	return &LocalLoader{products: products, customers: customers}
}

var _ Loader = (*LocalLoader)(nil)

func (l *LocalLoader) Load(ctx context.Context) (*Snapshot, error) {
	products, err := l.products.List(ctx, repository.ProductFilter{OnlyActive: true})
	if err != nil {
		return nil, &FetchError{Resource: "productos", Cause: fmt.Sprintf("consulta fallida: %v", err)}
	}
	customers, err := l.customers.List(ctx)
	if err != nil {
		return nil, &FetchError{Resource: "usuarios", Cause: fmt.Sprintf("consulta fallida: %v", err)}
	}
	return NewSnapshot(products, customers), nil
}
