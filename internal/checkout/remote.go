package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"panaderia/internal/domain"
)

// RemotePlacer отправляет заказ на внешний бэкенд пекарни.
// Тело ошибки не-2xx ответа несёт поле message — оно показывается дословно.
type RemotePlacer struct {
	baseURL string
	client  *http.Client
}

func NewRemotePlacer(baseURL string) *RemotePlacer {
	return &RemotePlacer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Placer = (*RemotePlacer)(nil)

type wireOrderReq struct {
	CustomerID int64           `json:"usuarioId"`
	Payment    string          `json:"metodoPago"`
	Delivery   string          `json:"tipoEntrega"`
	Notes      string          `json:"notas,omitempty"`
	Items      []wireOrderItem `json:"detalles"`
}

type wireOrderItem struct {
	ProductID int64 `json:"productoId"`
	Quantity  int64 `json:"cantidad"`
}

func (p *RemotePlacer) PlaceOrder(ctx context.Context, d Draft) (*domain.Order, error) {
	req := wireOrderReq{
		CustomerID: d.CustomerID,
		Payment:    string(d.Payment),
		Delivery:   string(d.Delivery),
		Notes:      d.Notes,
		Items:      make([]wireOrderItem, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		req.Items = append(req.Items, wireOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pedidos", bytes.NewReader(body))
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// кассиру уходит общее сообщение, причина остаётся в логе
		log.Printf("no se pudo enviar el pedido a %s: %v", p.baseURL, err)
		return nil, &SubmissionError{}
	}
	defer resp.Body.Close()

	var payload struct {
		Message string          `json:"message"`
		Datos   json.RawMessage `json:"datos"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmissionError{Message: payload.Message}
	}

	order := &domain.Order{
		CustomerID: d.CustomerID,
		Payment:    d.Payment,
		Delivery:   d.Delivery,
		Notes:      d.Notes,
		Items:      d.Items,
		Status:     domain.OrderStatusPending,
	}
	if decodeErr == nil && len(payload.Datos) > 0 {
		// бэкенд присылает созданный заказ в конверте datos
		_ = json.Unmarshal(payload.Datos, order)
	}
	return order, nil
}
