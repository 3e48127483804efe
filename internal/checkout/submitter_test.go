package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panaderia/internal/cart"
	"panaderia/internal/catalog"
	"panaderia/internal/domain"
)

// fakePlacer считает вызовы и отдаёт заранее заданный результат
type fakePlacer struct {
	calls int
	err   error
	block chan struct{} // если задан, PlaceOrder ждёт закрытия
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, d Draft) (*domain.Order, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{Number: "PED_20260101_001", CustomerID: d.CustomerID, Items: d.Items}, nil
}

type staticLoader struct{ products []domain.Product }

func (l staticLoader) Load(ctx context.Context) (*catalog.Snapshot, error) {
	return catalog.NewSnapshot(l.products, nil), nil
}

func session(t *testing.T) *cart.Session {
	t.Helper()
	sessions := cart.NewMemorySessions()
	sess, err := sessions.Create(context.Background())
	require.NoError(t, err)
	return sess
}

func meta(payment domain.PaymentMethod) Meta {
	return Meta{CustomerID: 1, Payment: payment, Delivery: domain.DeliveryDineIn}
}

func pan() domain.Product {
	return domain.Product{ID: 1, Name: "Concha", Price: 8.50, Stock: 10, Active: true}
}

func TestSubmitMissingCustomer(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 1))
	s := NewSubmitter(&fakePlacer{}, nil)

	_, _, err := s.Submit(context.Background(), sess, Meta{Payment: domain.PaymentCash, Delivery: domain.DeliveryDineIn})
	require.ErrorIs(t, err, ErrMissingCustomer)
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, sess.Cart.Empty())
}

func TestSubmitEmptyCart(t *testing.T) {
	sess := session(t)
	s := NewSubmitter(&fakePlacer{}, nil)

	_, _, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitCashSuccessClearsEverything(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 2))
	sess.Selector.Set(1, 7)

	cache := catalog.NewCache(staticLoader{products: []domain.Product{pan()}})
	placer := &fakePlacer{}
	s := NewSubmitter(placer, cache)

	order, confirmation, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
	require.NoError(t, err)
	require.Nil(t, confirmation)
	require.NotNil(t, order)
	assert.Equal(t, 1, placer.calls)

	assert.True(t, sess.Cart.Empty())
	assert.Equal(t, int64(1), sess.Selector.Get(1))
	assert.NotNil(t, cache.Current()) // снимок перезагружен
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitFailureKeepsCart(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 2))
	placer := &fakePlacer{err: &SubmissionError{Message: "Stock insuficiente para Concha. Solo quedan 1 unidades"}}
	s := NewSubmitter(placer, nil)

	_, _, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	// сообщение бэкенда дословно
	assert.Equal(t, "Stock insuficiente para Concha. Solo quedan 1 unidades", se.Error())

	assert.False(t, sess.Cart.Empty())
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitFailureGenericMessage(t *testing.T) {
	se := &SubmissionError{}
	assert.Equal(t, "error al crear el pedido", se.Error())
}

func TestQRConfirmationFlow(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 2))
	placer := &fakePlacer{}
	s := NewSubmitter(placer, nil)

	// первая отправка ничего не шлёт: показываем итог и ждём подтверждения
	order, confirmation, err := s.Submit(context.Background(), sess, meta(domain.PaymentQR))
	require.NoError(t, err)
	require.Nil(t, order)
	require.NotNil(t, confirmation)
	assert.Equal(t, 17.00, confirmation.Total)
	assert.Equal(t, 0, placer.calls)
	assert.Equal(t, StateAwaitingQR, s.State())

	created, err := s.Confirm(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 1, placer.calls)
	assert.True(t, sess.Cart.Empty())
}

func TestQRCancelKeepsCart(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 2))
	s := NewSubmitter(&fakePlacer{}, nil)

	_, confirmation, err := s.Submit(context.Background(), sess, meta(domain.PaymentQR))
	require.NoError(t, err)
	require.NotNil(t, confirmation)

	s.CancelConfirmation()
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, sess.Cart.Empty())

	_, err = s.Confirm(context.Background(), sess)
	require.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestDoubleSubmitRejected(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 1))

	block := make(chan struct{})
	placer := &fakePlacer{block: block}
	s := NewSubmitter(placer, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
		done <- err
	}()

	// ждём, пока первая отправка займёт автомат
	for s.State() != StateSubmitting {
		time.Sleep(time.Millisecond)
	}

	_, _, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
	require.ErrorIs(t, err, ErrSubmissionInFlight)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, placer.calls)
}

func TestQRSubmitDuringInFlightSendRejected(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 1))

	block := make(chan struct{})
	placer := &fakePlacer{block: block}
	s := NewSubmitter(placer, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Submit(context.Background(), sess, meta(domain.PaymentCash))
		done <- err
	}()

	for s.State() != StateSubmitting {
		time.Sleep(time.Millisecond)
	}

	// шаг подтверждения нельзя открыть, пока наличный заказ в полёте
	_, confirmation, err := s.Submit(context.Background(), sess, meta(domain.PaymentQR))
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	require.Nil(t, confirmation)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, s.State())

	// отклонённая попытка не оставила висящего подтверждения
	_, err = s.Confirm(context.Background(), sess)
	require.ErrorIs(t, err, ErrNoPendingConfirmation)
	assert.Equal(t, 1, placer.calls)
}

func TestSubmitWhileAwaitingConfirmationRejected(t *testing.T) {
	sess := session(t)
	require.NoError(t, sess.Cart.Add(pan(), 2))
	placer := &fakePlacer{}
	s := NewSubmitter(placer, nil)

	_, confirmation, err := s.Submit(context.Background(), sess, meta(domain.PaymentQR))
	require.NoError(t, err)
	require.NotNil(t, confirmation)

	// открытый шаг подтверждения блокирует новые отправки в обоих режимах
	_, _, err = s.Submit(context.Background(), sess, meta(domain.PaymentCash))
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	_, _, err = s.Submit(context.Background(), sess, meta(domain.PaymentQR))
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StateAwaitingQR, s.State())

	created, err := s.Confirm(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 1, placer.calls)
}
