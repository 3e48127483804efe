package domain

import "time"

// Product представляет товар пекарни
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion,omitempty"`
	Price       float64 `json:"precio"`
	ImageURL    string  `json:"imagen,omitempty"`
	Stock       int64   `json:"disponibilidad"`
	Active      bool    `json:"activo"`
}

// Customer покупатель
type Customer struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"nombre"`
	PaternalName string `json:"apellidoPaterno"`
	MaternalName string `json:"apellidoMaterno,omitempty"`
	Email        string `json:"correo"`
	Role         string `json:"rol,omitempty"`
}

// FullName имя для отображения в кассе
func (c Customer) FullName() string {
	s := c.FirstName
	if c.PaternalName != "" {
		s += " " + c.PaternalName
	}
	return s
}

// PaymentMethod метод оплаты
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "EFECTIVO"
	PaymentQR   PaymentMethod = "QR"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCash || m == PaymentQR }

// DeliveryType способ выдачи заказа
type DeliveryType string

const (
	DeliveryDineIn   DeliveryType = "PARA_AQUI"
	DeliveryTakeaway DeliveryType = "LLEVAR"
)

func (d DeliveryType) Valid() bool { return d == DeliveryDineIn || d == DeliveryTakeaway }

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDIENTE"
	OrderStatusCancelled OrderStatus = "CANCELADO"
)

// OrderItem позиция в заказе; цена фиксируется на момент создания
type OrderItem struct {
	ProductID int64   `json:"productoId"`
	Quantity  int64   `json:"cantidad"`
	UnitPrice float64 `json:"precioUnitario"`
}

// Order сущность заказа
type Order struct {
	ID         int64         `json:"id"`
	Number     string        `json:"numeroPedido"`
	CustomerID int64         `json:"usuarioId"`
	Payment    PaymentMethod `json:"metodoPago"`
	Delivery   DeliveryType  `json:"tipoEntrega"`
	Notes      string        `json:"notas,omitempty"`
	Items      []OrderItem   `json:"detalles"`
	Total      float64       `json:"total"`
	Status     OrderStatus   `json:"estado"`
	CreatedAt  time.Time     `json:"creadoEn"`
	UpdatedAt  time.Time     `json:"actualizadoEn"`
}
