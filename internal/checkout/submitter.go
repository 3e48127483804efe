// Package checkout оформляет заказ из корзины: конечный автомат отправки
// с подтверждением для оплаты по QR.
package checkout

import (
	"context"
	"errors"
	"log"
	"sync"

	"panaderia/internal/cart"
	"panaderia/internal/catalog"
	"panaderia/internal/domain"
)

var (
	// ErrMissingCustomer покупатель не выбран
	ErrMissingCustomer = errors.New("debes seleccionar un cliente")
	// ErrEmptyCart в корзине нет позиций
	ErrEmptyCart = errors.New("agrega productos al carrito")
	// ErrSubmissionInFlight предыдущая отправка ещё не завершилась
	ErrSubmissionInFlight = errors.New("ya hay un pedido en proceso")
	// ErrNoPendingConfirmation подтверждать нечего
	ErrNoPendingConfirmation = errors.New("no hay confirmación pendiente")
	// ErrInvalidMeta метод оплаты или способ выдачи не распознан
	ErrInvalidMeta = errors.New("método de pago o tipo de entrega inválido")
)

// SubmissionError отправка заказа отклонена бэкендом или не удалась.
// Message показывается кассиру дословно, если бэкенд его прислал.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "error al crear el pedido"
}

// Draft собранный к отправке заказ
type Draft struct {
	CustomerID int64
	Payment    domain.PaymentMethod
	Delivery   domain.DeliveryType
	Notes      string
	Items      []domain.OrderItem
}

// Placer выполняет единственную попытку создания заказа; ретраев нет
type Placer interface {
	PlaceOrder(ctx context.Context, d Draft) (*domain.Order, error)
}

// Meta выбор кассира на момент отправки
type Meta struct {
	CustomerID int64
	Payment    domain.PaymentMethod
	Delivery   domain.DeliveryType
	Notes      string
}

// State состояние автомата отправки
type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StateAwaitingQR State = "ESPERANDO_CONFIRMACION"
)

// Confirmation шаг подтверждения оплаты по QR: итог показывается до того,
// как уйдёт сетевой запрос.
type Confirmation struct {
	Total float64 `json:"total"`
}

// Submitter конечный автомат отправки одной кассовой сессии.
// Выход из IDLE запрещён без покупателя и с пустой корзиной. Покинуть IDLE
// можно только из IDLE: пока идёт отправка или открыт шаг подтверждения QR,
// повторный Submit отклоняется, а не ставится в очередь. Открытый шаг
// подтверждения сначала закрывают через Confirm или CancelConfirmation.
type Submitter struct {
	mu      sync.Mutex
	state   State
	pending *Meta

	placer  Placer
	catalog *catalog.Cache
}

func NewSubmitter(placer Placer, cat *catalog.Cache) *Submitter {
	return &Submitter{state: StateIdle, placer: placer, catalog: cat}
}

func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit пытается оформить заказ. Для оплаты QR первая попытка не отправляет
// ничего: возвращается Confirmation с текущим итогом, заказ уйдёт после
// Confirm. Для наличных заказ отправляется сразу.
func (s *Submitter) Submit(ctx context.Context, sess *cart.Session, meta Meta) (*domain.Order, *Confirmation, error) {
	if err := s.guard(sess, meta); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, nil, ErrSubmissionInFlight
	}
	if meta.Payment == domain.PaymentQR {
		m := meta
		s.pending = &m
		s.state = StateAwaitingQR
		s.mu.Unlock()
		return nil, &Confirmation{Total: sess.Cart.Total()}, nil
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	order, err := s.place(ctx, sess, meta)
	if err != nil {
		return nil, nil, err
	}
	return order, nil, nil
}

// Confirm отправляет заказ, ожидающий подтверждения QR
func (s *Submitter) Confirm(ctx context.Context, sess *cart.Session) (*domain.Order, error) {
	s.mu.Lock()
	if s.state != StateAwaitingQR || s.pending == nil {
		s.mu.Unlock()
		return nil, ErrNoPendingConfirmation
	}
	meta := *s.pending
	s.pending = nil
	s.state = StateSubmitting
	s.mu.Unlock()

	if err := s.guard(sess, meta); err != nil {
		s.reset()
		return nil, err
	}
	return s.place(ctx, sess, meta)
}

// CancelConfirmation закрывает шаг подтверждения; корзина не трогается
func (s *Submitter) CancelConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingQR {
		s.state = StateIdle
		s.pending = nil
	}
}

func (s *Submitter) guard(sess *cart.Session, meta Meta) error {
	if meta.CustomerID <= 0 {
		return ErrMissingCustomer
	}
	if sess.Cart.Empty() {
		return ErrEmptyCart
	}
	if !meta.Payment.Valid() || !meta.Delivery.Valid() {
		return ErrInvalidMeta
	}
	return nil
}

func (s *Submitter) reset() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// place выполняет единственную попытку отправки; вызывающий уже перевёл
// автомат в SUBMITTING. Успех очищает корзину и счётчики и перезагружает
// снимок каталога; неудача оставляет всё как есть.
func (s *Submitter) place(ctx context.Context, sess *cart.Session, meta Meta) (*domain.Order, error) {
	defer s.reset()

	draft := Draft{
		CustomerID: meta.CustomerID,
		Payment:    meta.Payment,
		Delivery:   meta.Delivery,
		Notes:      meta.Notes,
		Items:      sess.Cart.Items(),
	}

	order, err := s.placer.PlaceOrder(ctx, draft)
	if err != nil {
		var se *SubmissionError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &SubmissionError{Message: err.Error()}
	}

	sess.Cart.Clear()
	sess.Selector.ResetAll()
	if s.catalog != nil {
		// после создания заказа остатки на сервере уменьшились;
		// неудачная перезагрузка каталога заказ не отменяет
		if _, rerr := s.catalog.Reload(ctx); rerr != nil {
			log.Printf("pedido %s creado, pero el catálogo no se pudo recargar: %v", order.Number, rerr)
		}
	}
	return order, nil
}

// Registry сабмиттеры по кассовым сессиям
type Registry struct {
	mu         sync.Mutex
	submitters map[string]*Submitter
	placer     Placer
	catalog    *catalog.Cache
}

func NewRegistry(placer Placer, cat *catalog.Cache) *Registry {
	return &Registry{
		submitters: make(map[string]*Submitter),
		placer:     placer,
		catalog:    cat,
	}
}

// ForSession возвращает сабмиттер сессии, создавая его при первом обращении
func (r *Registry) ForSession(id string) *Submitter {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submitters[id]
	if !ok {
		s = NewSubmitter(r.placer, r.catalog)
		r.submitters[id] = s
	}
	return s
}

// Drop удаляет сабмиттер закрытой сессии
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.submitters, id)
}
