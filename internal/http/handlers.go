package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"panaderia/internal/cart"
	"panaderia/internal/catalog"
	"panaderia/internal/checkout"
	"panaderia/internal/domain"
	"panaderia/internal/repository"
	"panaderia/internal/service"
	"panaderia/internal/validate"
)

// Server HTTP-слой: витрина, панель администратора и кассовые сессии.
// Ответы в конверте {datos: ...}, ошибки — {message: ...}.
type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	customers *service.CustomerService
	orders    *service.OrderService
	sessions  cart.Store
	registry  *checkout.Registry
	catalog   *catalog.Cache
}

func NewServer(
	products *service.ProductService,
	customers *service.CustomerService,
	orders *service.OrderService,
	sessions cart.Store,
	registry *checkout.Registry,
	cat *catalog.Cache,
) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{
		engine:    r,
		products:  products,
		customers: customers,
		orders:    orders,
		sessions:  sessions,
		registry:  registry,
		catalog:   cat,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine.GET("/productos", s.listProducts)
	s.engine.GET("/productos/activos", s.listActiveProducts)
	s.engine.POST("/productos", s.createProduct)
	s.engine.PUT("/productos/:id", s.updateProduct)
	s.engine.DELETE("/productos/:id", s.deleteProduct)

	s.engine.GET("/usuarios", s.listCustomers)
	s.engine.POST("/usuarios", s.createCustomer)

	s.engine.POST("/pedidos", s.createOrder)
	s.engine.GET("/pedidos", s.listOrders)
	s.engine.GET("/pedidos/:id", s.getOrder)
	s.engine.POST("/pedidos/:id/cancelar", s.cancelOrder)

	s.engine.GET("/estadisticas/ventas", s.salesStats)
	s.engine.GET("/catalogo", s.showCatalog)
	s.engine.POST("/catalogo/recargar", s.reloadCatalog)

	carrito := s.engine.Group("/carrito")
	{
		carrito.POST("", s.createSession)
		carrito.GET(":id", s.showCart)
		carrito.DELETE(":id", s.closeSession)
		carrito.POST(":id/items", s.addToCart)
		carrito.PUT(":id/items/:productoId", s.setLineQuantity)
		carrito.DELETE(":id/items/:productoId", s.removeLine)
		carrito.PUT(":id/cantidades/:productoId", s.setSelectorQuantity)
		carrito.POST(":id/pedido", s.submitOrder)
		carrito.POST(":id/pedido/confirmar", s.confirmOrder)
		carrito.DELETE(":id/pedido", s.cancelConfirmation)
	}
}

func ok(c *gin.Context, code int, datos any) {
	c.JSON(code, gin.H{"datos": datos})
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"message": err.Error()})
}

// statusFor единое место перевода ошибок домена в HTTP-статусы
func statusFor(err error) int {
	var (
		insufficient *cart.InsufficientStockError
		fieldErrs    validate.FieldErrors
		fetchErr     *catalog.FetchError
		submitErr    *checkout.SubmissionError
	)
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, cart.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient), errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, checkout.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &submitErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fieldErrs),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, checkout.ErrMissingCustomer),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidMeta),
		errors.Is(err, checkout.ErrNoPendingConfirmation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrInvalidInput
	}
	return id, nil
}

// Product handlers

type productReq struct {
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion"`
	Price       float64 `json:"precio"`
	ImageURL    string  `json:"imagen"`
	Stock       int64   `json:"disponibilidad"`
	Active      *bool   `json:"activo"`
}

// @Summary List products
// @Tags productos
// @Produce json
// @Param q query string false "Name contains"
// @Success 200 {object} map[string]any
// @Router /productos [get]
func (s *Server) listProducts(c *gin.Context) {
	f := repository.ProductFilter{NameSubstring: c.Query("q")}
	products, err := s.products.List(c, f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, products)
}

// @Summary List active products
// @Tags productos
// @Produce json
// @Success 200 {object} map[string]any
// @Router /productos/activos [get]
func (s *Server) listActiveProducts(c *gin.Context) {
	products, err := s.products.List(c, repository.ProductFilter{OnlyActive: true})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, products)
}

// @Summary Create product
// @Tags productos
// @Accept json
// @Produce json
// @Param input body productReq true "Product"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /productos [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := s.products.Create(c, domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		Active:      active,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// @Summary Update product
// @Tags productos
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body productReq true "Update"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /productos/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := s.products.Update(c, domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		Active:      active,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// @Summary Delete product
// @Tags productos
// @Param id path int true "Product ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /productos/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.products.Delete(c, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Customer handlers

type customerReq struct {
	FirstName    string `json:"nombre"`
	PaternalName string `json:"apellidoPaterno"`
	MaternalName string `json:"apellidoMaterno"`
	Email        string `json:"correo"`
	Role         string `json:"rol"`
}

// @Summary List customers
// @Tags usuarios
// @Produce json
// @Success 200 {object} map[string]any
// @Router /usuarios [get]
func (s *Server) listCustomers(c *gin.Context) {
	customers, err := s.customers.List(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, customers)
}

// @Summary Register customer
// @Tags usuarios
// @Accept json
// @Produce json
// @Param input body customerReq true "Customer"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /usuarios [post]
func (s *Server) createCustomer(c *gin.Context) {
	var req customerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	cu, err := s.customers.Create(c, domain.Customer{
		FirstName:    req.FirstName,
		PaternalName: req.PaternalName,
		MaternalName: req.MaternalName,
		Email:        req.Email,
		Role:         req.Role,
	})
	if err != nil {
		var fieldErrs validate.FieldErrors
		if errors.As(err, &fieldErrs) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "errores": fieldErrs})
			return
		}
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, cu)
}

// Order handlers

type orderReq struct {
	CustomerID int64          `json:"usuarioId"`
	Payment    string         `json:"metodoPago"`
	Delivery   string         `json:"tipoEntrega"`
	Notes      string         `json:"notas"`
	Items      []orderItemReq `json:"detalles"`
}

type orderItemReq struct {
	ProductID int64 `json:"productoId"`
	Quantity  int64 `json:"cantidad"`
}

// @Summary Create order
// @Tags pedidos
// @Accept json
// @Produce json
// @Param input body orderReq true "Order"
// @Success 201 {object} map[string]any
// @Failure 422 {object} map[string]string
// @Router /pedidos [post]
func (s *Server) createOrder(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	draft := checkout.Draft{
		CustomerID: req.CustomerID,
		Payment:    domain.PaymentMethod(req.Payment),
		Delivery:   domain.DeliveryType(req.Delivery),
		Notes:      req.Notes,
	}
	for _, it := range req.Items {
		draft.Items = append(draft.Items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, err := s.orders.PlaceOrder(c, draft)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// @Summary List orders
// @Tags pedidos
// @Produce json
// @Success 200 {object} map[string]any
// @Router /pedidos [get]
func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.orders.ListOrders(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, orders)
}

// @Summary Get order by id
// @Tags pedidos
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /pedidos/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	o, err := s.orders.GetOrder(c, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// @Summary Cancel order
// @Tags pedidos
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /pedidos/{id}/cancelar [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	o, err := s.orders.CancelOrder(c, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// @Summary Sales statistics
// @Tags estadisticas
// @Produce json
// @Success 200 {object} map[string]any
// @Router /estadisticas/ventas [get]
func (s *Server) salesStats(c *gin.Context) {
	stats, err := s.orders.SalesStatistics(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}

// Catalog handlers

// @Summary Current catalog snapshot
// @Tags catalogo
// @Produce json
// @Success 200 {object} map[string]any
// @Router /catalogo [get]
func (s *Server) showCatalog(c *gin.Context) {
	snap, err := s.catalog.Ensure(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"productos": snap.Products,
		"usuarios":  snap.Customers,
		"cargadoEn": snap.FetchedAt,
	})
}

// @Summary Reload catalog snapshot
// @Tags catalogo
// @Produce json
// @Success 200 {object} map[string]any
// @Router /catalogo/recargar [post]
func (s *Server) reloadCatalog(c *gin.Context) {
	snap, err := s.catalog.Reload(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"productos": len(snap.Products), "cargadoEn": snap.FetchedAt})
}
