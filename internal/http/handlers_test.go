package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"panaderia/internal/cart"
	"panaderia/internal/catalog"
	"panaderia/internal/checkout"
	"panaderia/internal/events"
	"panaderia/internal/repository"
	"panaderia/internal/service"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	store := repository.NewMemoryStore()
	customersRepo := repository.NewMemoryCustomers(store)
	ordersRepo := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)

	productsSvc := service.NewProductService(store)
	customersSvc := service.NewCustomerService(customersRepo)
	ordersSvc := service.NewOrderService(store, customersRepo, ordersRepo, tx, events.Noop{})

	cache := catalog.NewCache(catalog.NewLocalLoader(store, customersRepo))
	sessions := cart.NewMemorySessions()
	registry := checkout.NewRegistry(ordersSvc, cache)

	return NewServer(productsSvc, customersSvc, ordersSvc, sessions, registry, cache)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func datos(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Datos map[string]any `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode datos: %v (%s)", err, w.Body.String())
	}
	return resp.Datos
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode message: %v (%s)", err, w.Body.String())
	}
	return resp.Message
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/productos", map[string]any{
		"nombre": "Concha", "precio": 8.5, "disponibilidad": 3,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: %v %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/usuarios", map[string]any{
		"nombre": "María", "apellidoPaterno": "López", "correo": "maria@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create customer: %v %s", w.Code, w.Body.String())
	}
}

func TestProductFlow(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodPost, "/productos", map[string]any{
		"nombre": "Concha", "precio": 8.5, "disponibilidad": 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/productos/1", map[string]any{
		"nombre": "Concha grande", "precio": 10, "disponibilidad": 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/productos?q=concha", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/productos/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/productos/1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete code %v", w.Code)
	}
}

func TestCustomerValidationErrors(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodPost, "/usuarios", map[string]any{
		"nombre": "M", "correo": "no-es-correo",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	var resp struct {
		Errores map[string]string `json:"errores"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Errores) < 3 {
		t.Fatalf("expected per-field errors, got %v", resp.Errores)
	}
}

func TestOrderFlow(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/pedidos", map[string]any{
		"usuarioId":   1,
		"metodoPago":  "EFECTIVO",
		"tipoEntrega": "PARA_AQUI",
		"detalles":    []map[string]any{{"productoId": 1, "cantidad": 2}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %v %s", w.Code, w.Body.String())
	}
	d := datos(t, w)
	if d["total"].(float64) != 17 {
		t.Fatalf("total expected 17, got %v", d["total"])
	}

	// остаток уменьшился
	w = doJSON(t, s, http.MethodGet, "/productos", nil)
	var listResp struct {
		Datos []map[string]any `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listResp.Datos[0]["disponibilidad"].(float64) != 1 {
		t.Fatalf("stock not decremented: %v", listResp.Datos[0])
	}

	// больше, чем осталось
	w = doJSON(t, s, http.MethodPost, "/pedidos", map[string]any{
		"usuarioId":   1,
		"metodoPago":  "EFECTIVO",
		"tipoEntrega": "PARA_AQUI",
		"detalles":    []map[string]any{{"productoId": 1, "cantidad": 2}},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", w.Code)
	}
	if msg := message(t, w); msg == "" {
		t.Fatalf("expected verbatim backend message")
	}

	// отмена возвращает остаток
	w = doJSON(t, s, http.MethodPost, "/pedidos/1/cancelar", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %v %s", w.Code, w.Body.String())
	}
}

func TestCartFlow(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/carrito", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %v", w.Code)
	}
	id := datos(t, w)["id"].(string)

	// два добавления сливаются в одну позицию
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("add: %v %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("add merge: %v %s", w.Code, w.Body.String())
	}
	if total := datos(t, w)["total"].(float64); total != 25.5 {
		t.Fatalf("total expected 25.5, got %v", total)
	}

	// превышение потолка — конфликт, корзина не изменилась
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v %s", w.Code, w.Body.String())
	}

	// прямое редактирование количества
	w = doJSON(t, s, http.MethodPut, "/carrito/"+id+"/items/1", map[string]any{"cantidad": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("set qty: %v %s", w.Code, w.Body.String())
	}

	// ноль удаляет позицию
	w = doJSON(t, s, http.MethodPut, "/carrito/"+id+"/items/1", map[string]any{"cantidad": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("set qty 0: %v", w.Code)
	}
	var view struct {
		Datos struct {
			Lines []any `json:"lineas"`
		} `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Datos.Lines) != 0 {
		t.Fatalf("line must be removed: %s", w.Body.String())
	}
}

func TestCartSubmitGuards(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/carrito", nil)
	id := datos(t, w)["id"].(string)

	// пустая корзина
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido", map[string]any{
		"usuarioId": 1, "metodoPago": "EFECTIVO", "tipoEntrega": "PARA_AQUI",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty cart: expected 400, got %v", w.Code)
	}

	doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 1})

	// без покупателя
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido", map[string]any{
		"metodoPago": "EFECTIVO", "tipoEntrega": "PARA_AQUI",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing customer: expected 400, got %v", w.Code)
	}
}

func TestCartQRFlow(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/carrito", nil)
	id := datos(t, w)["id"].(string)
	doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 2})

	// QR: сначала подтверждение с итогом, заказ ещё не создан
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido", map[string]any{
		"usuarioId": 1, "metodoPago": "QR", "tipoEntrega": "LLEVAR",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("qr submit: %v %s", w.Code, w.Body.String())
	}
	d := datos(t, w)
	if d["estado"].(string) != "ESPERANDO_CONFIRMACION" || d["total"].(float64) != 17 {
		t.Fatalf("unexpected confirmation: %v", d)
	}

	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido/confirmar", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm: %v %s", w.Code, w.Body.String())
	}

	// корзина пуста, снимок каталога перезагружен с новым остатком
	w = doJSON(t, s, http.MethodGet, "/carrito/"+id, nil)
	var view struct {
		Datos struct {
			Lines []any   `json:"lineas"`
			Total float64 `json:"total"`
		} `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Datos.Lines) != 0 || view.Datos.Total != 0 {
		t.Fatalf("cart must be cleared: %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/catalogo", nil)
	var cat struct {
		Datos struct {
			Productos []map[string]any `json:"productos"`
		} `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if cat.Datos.Productos[0]["disponibilidad"].(float64) != 1 {
		t.Fatalf("snapshot not refreshed: %v", cat.Datos.Productos[0])
	}
}

func TestCartQRCancel(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/carrito", nil)
	id := datos(t, w)["id"].(string)
	doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1, "cantidad": 1})

	doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido", map[string]any{
		"usuarioId": 1, "metodoPago": "QR", "tipoEntrega": "PARA_AQUI",
	})
	w = doJSON(t, s, http.MethodDelete, "/carrito/"+id+"/pedido", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel confirmation: %v", w.Code)
	}

	// корзина не тронута, подтверждать больше нечего
	w = doJSON(t, s, http.MethodGet, "/carrito/"+id, nil)
	if datos(t, w)["total"].(float64) != 8.5 {
		t.Fatalf("cart must be intact: %s", w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/pedido/confirmar", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
}

func TestSelectorUsedWhenBodyOmitsQuantity(t *testing.T) {
	s := setupServer(t)
	seed(t, s)

	w := doJSON(t, s, http.MethodPost, "/carrito", nil)
	id := datos(t, w)["id"].(string)

	w = doJSON(t, s, http.MethodPut, "/carrito/"+id+"/cantidades/1", map[string]any{"cantidad": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("set selector: %v %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/carrito/"+id+"/items", map[string]any{"productoId": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("add: %v %s", w.Code, w.Body.String())
	}
	if total := datos(t, w)["total"].(float64); total != 17 {
		t.Fatalf("selector quantity not used: total %v", total)
	}
}

func TestSessionNotFound(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodGet, "/carrito/no-existe", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := setupServer(t)
	seed(t, s)
	doJSON(t, s, http.MethodPost, "/pedidos", map[string]any{
		"usuarioId":   1,
		"metodoPago":  "EFECTIVO",
		"tipoEntrega": "PARA_AQUI",
		"detalles":    []map[string]any{{"productoId": 1, "cantidad": 2}},
	})
	w := doJSON(t, s, http.MethodGet, "/estadisticas/ventas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %v", w.Code)
	}
	d := datos(t, w)
	if d["totalPedidos"].(float64) != 1 || d["ingresosTotales"].(float64) != 17 {
		t.Fatalf("unexpected stats: %v", d)
	}
}
