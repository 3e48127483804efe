package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"panaderia/internal/domain"
)

// FetchError ошибка загрузки каталога: сеть, не-2xx статус или битый ответ.
// Cause — человекочитаемая причина для сообщения кассиру.
type FetchError struct {
	Resource string
	Cause    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error al cargar %s: %s", e.Resource, e.Cause)
}

// RemoteLoader загружает каталог с внешнего бэкенда пекарни.
// Терпимо относится к формату: массив может приходить голым или в конверте
// {datos: [...]}, а числовые поля — строками.
type RemoteLoader struct {
	baseURL string
	client  *http.Client
}

func NewRemoteLoader(baseURL string) *RemoteLoader {
	return &RemoteLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Loader = (*RemoteLoader)(nil)

// flexFloat принимает число или строку с числом
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type wireProduct struct {
	ID          int64     `json:"id"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion"`
	Price       flexFloat `json:"precio"`
	ImageURL    string    `json:"imagen"`
	Stock       flexFloat `json:"disponibilidad"`
	Active      bool      `json:"activo"`
}

func (l *RemoteLoader) Load(ctx context.Context) (*Snapshot, error) {
	var wire []wireProduct
	if err := l.getJSON(ctx, "/productos", "productos", &wire); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(wire))
	for _, w := range wire {
		if !w.Active {
			continue
		}
		products = append(products, domain.Product{
			ID:          w.ID,
			Name:        w.Name,
			Description: w.Description,
			Price:       float64(w.Price),
			ImageURL:    w.ImageURL,
			Stock:       int64(w.Stock),
			Active:      true,
		})
	}

	var customers []domain.Customer
	if err := l.getJSON(ctx, "/usuarios", "usuarios", &customers); err != nil {
		return nil, err
	}
	return NewSnapshot(products, customers), nil
}

// getJSON выполняет GET и разворачивает опциональный конверт {datos: ...}
func (l *RemoteLoader) getJSON(ctx context.Context, path, resource string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return &FetchError{Resource: resource, Cause: err.Error()}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return &FetchError{Resource: resource, Cause: "fallo de red: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Resource: resource, Cause: "fallo de red: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Resource: resource, Cause: fmt.Sprintf("estado %d", resp.StatusCode)}
	}

	var envelope struct {
		Datos json.RawMessage `json:"datos"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Datos) > 0 {
		body = envelope.Datos
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Resource: resource, Cause: "respuesta malformada: " + err.Error()}
	}
	return nil
}
