package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"panaderia/internal/checkout"
	"panaderia/internal/domain"
	"panaderia/internal/repository"
)

var (
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrInvalidState   = errors.New("invalid state")
)

// Publisher уведомляет внешние системы о созданном заказе
type Publisher interface {
	OrderCreated(ctx context.Context, o *domain.Order) error
}

// OrderService реализует логику заказов: создание со списанием остатков,
// отмена с возвратом, статистика продаж
type OrderService struct {
	products  repository.ProductRepository
	customers repository.CustomerRepository
	orders    repository.OrderRepository
	tx        repository.TxManager
	publisher Publisher
}

func NewOrderService(
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	orders repository.OrderRepository,
	tx repository.TxManager,
	publisher Publisher,
) *OrderService {
	return &OrderService{products: products, customers: customers, orders: orders, tx: tx, publisher: publisher}
}

var _ checkout.Placer = (*OrderService)(nil)

// PlaceOrder проверяет покупателя и живые остатки и атомарно создаёт заказ.
// Потолки, зафиксированные корзиной, здесь не участвуют: внутри транзакции
// действует только текущее наличие.
func (s *OrderService) PlaceOrder(ctx context.Context, d checkout.Draft) (*domain.Order, error) {
	if d.CustomerID <= 0 || len(d.Items) == 0 {
		return nil, ErrInvalidInput
	}
	if !d.Payment.Valid() || !d.Delivery.Valid() {
		return nil, ErrInvalidInput
	}
	for _, it := range d.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, ErrInvalidInput
		}
	}

	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.customers.GetByID(ctx, d.CustomerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &checkout.SubmissionError{Message: "el cliente no existe"}
			}
			return err
		}

		// load and check stock; accumulate updates to avoid partial state
		var total float64
		items := make([]domain.OrderItem, 0, len(d.Items))
		productCopies := make(map[int64]*domain.Product)
		for _, it := range d.Items {
			p, err := s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return &checkout.SubmissionError{Message: fmt.Sprintf("el producto %d no existe", it.ProductID)}
				}
				return err
			}
			if !p.Active {
				return &checkout.SubmissionError{Message: fmt.Sprintf("%s ya no está disponible", p.Name)}
			}
			if p.Stock < it.Quantity {
				return &checkout.SubmissionError{
					Message: fmt.Sprintf("Stock insuficiente para %s. Solo quedan %d unidades", p.Name, p.Stock),
				}
			}
			// reserve
			p.Stock -= it.Quantity
			productCopies[p.ID] = p
			// цена берётся из каталога на момент создания, не из запроса
			total += p.Price * float64(it.Quantity)
			items = append(items, domain.OrderItem{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
		}
		for _, p := range productCopies {
			if err := s.products.Update(ctx, p); err != nil {
				return err
			}
		}

		number, err := s.nextNumber(ctx)
		if err != nil {
			return err
		}
		o := domain.Order{
			Number:     number,
			CustomerID: d.CustomerID,
			Payment:    d.Payment,
			Delivery:   d.Delivery,
			Notes:      d.Notes,
			Items:      items,
			Total:      math.Round(total*100) / 100,
			Status:     domain.OrderStatusPending,
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if perr := s.publisher.OrderCreated(ctx, created); perr != nil {
			log.Printf("pedido %s: no se pudo publicar el evento: %v", created.Number, perr)
		}
	}
	return created, nil
}

// nextNumber формирует номер PED_YYYYMMDD_NNN по суточному счётчику
func (s *OrderService) nextNumber(ctx context.Context) (string, error) {
	day := time.Now().UTC().Format("20060102")
	n, err := s.orders.CountCreatedOn(ctx, day)
	if err != nil {
		return "", fmt.Errorf("failed to get order count: %w", err)
	}
	return fmt.Sprintf("PED_%s_%03d", day, n+1), nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

// ListOrders все заказы для панели администратора
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// CancelOrder если заказ в PENDIENTE — возвращаем товары на склад и ставим CANCELADO
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusPending {
			return ErrInvalidState
		}
		// return stock
		for _, it := range o.Items {
			p, err := s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return err
			}
			p.Stock += it.Quantity
			if err := s.products.Update(ctx, p); err != nil {
				return err
			}
		}
		o.Status = domain.OrderStatusCancelled
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ProductSales продажи одного товара
type ProductSales struct {
	ProductID int64   `json:"productoId"`
	Quantity  int64   `json:"cantidad"`
	Revenue   float64 `json:"ingresos"`
}

// SalesStats сводка продаж для панели администратора
type SalesStats struct {
	TotalOrders  int64          `json:"totalPedidos"`
	TotalRevenue float64        `json:"ingresosTotales"`
	ByProduct    []ProductSales `json:"porProducto"`
}

// SalesStatistics агрегирует продажи по неотменённым заказам
func (s *OrderService) SalesStatistics(ctx context.Context) (*SalesStats, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &SalesStats{}
	byProduct := make(map[int64]*ProductSales)
	productOrder := make([]int64, 0)
	for _, o := range orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue += o.Total
		for _, it := range o.Items {
			ps, ok := byProduct[it.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: it.ProductID}
				byProduct[it.ProductID] = ps
				productOrder = append(productOrder, it.ProductID)
			}
			ps.Quantity += it.Quantity
			ps.Revenue += it.UnitPrice * float64(it.Quantity)
		}
	}
	stats.TotalRevenue = math.Round(stats.TotalRevenue*100) / 100
	for _, id := range productOrder {
		ps := byProduct[id]
		ps.Revenue = math.Round(ps.Revenue*100) / 100
		stats.ByProduct = append(stats.ByProduct, *ps)
	}
	return stats, nil
}
