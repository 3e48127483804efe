package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"panaderia/internal/cart"
	"panaderia/internal/checkout"
	"panaderia/internal/domain"
)

// cartView представление корзины для кассы
type cartView struct {
	ID     string      `json:"id"`
	Lines  []cart.Line `json:"lineas"`
	Total  float64     `json:"total"`
	Estado string      `json:"estado"`
}

func (s *Server) viewOf(sess *cart.Session) cartView {
	sub := s.registry.ForSession(sess.ID)
	return cartView{
		ID:     sess.ID,
		Lines:  sess.Cart.Lines(),
		Total:  sess.Cart.Total(),
		Estado: string(sub.State()),
	}
}

// session достаёт кассовую сессию из пути
func (s *Server) session(c *gin.Context) (*cart.Session, bool) {
	sess, err := s.sessions.Get(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

// @Summary Open register session
// @Tags carrito
// @Produce json
// @Success 201 {object} map[string]any
// @Router /carrito [post]
func (s *Server) createSession(c *gin.Context) {
	sess, err := s.sessions.Create(c)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, s.viewOf(sess))
}

// @Summary Show cart
// @Tags carrito
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /carrito/{id} [get]
func (s *Server) showCart(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, s.viewOf(sess))
}

// @Summary Close register session
// @Tags carrito
// @Param id path string true "Session ID"
// @Success 204
// @Router /carrito/{id} [delete]
func (s *Server) closeSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(c, id); err != nil {
		fail(c, err)
		return
	}
	s.registry.Drop(id)
	c.Status(http.StatusNoContent)
}

type addItemReq struct {
	ProductID int64  `json:"productoId"`
	Quantity  *int64 `json:"cantidad"`
}

// @Summary Add product to cart
// @Tags carrito
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param input body addItemReq true "Item"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]string
// @Router /carrito/{id}/items [post]
func (s *Server) addToCart(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}

	snap, err := s.catalog.Ensure(c)
	if err != nil {
		fail(c, err)
		return
	}
	p, exists := snap.Product(req.ProductID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"message": "el producto no está en el catálogo"})
		return
	}

	// количество из тела, иначе — выбранное заранее в счётчике
	qty := sess.Selector.Get(req.ProductID)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	if err := sess.Cart.Add(p, qty); err != nil {
		fail(c, err)
		return
	}
	// успешное добавление возвращает счётчик к 1
	sess.Selector.Reset(req.ProductID)

	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.viewOf(sess))
}

type quantityReq struct {
	Quantity int64 `json:"cantidad"`
}

// @Summary Set line quantity
// @Tags carrito
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param productoId path int true "Product ID"
// @Param input body quantityReq true "Quantity"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]string
// @Router /carrito/{id}/items/{productoId} [put]
func (s *Server) setLineQuantity(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	productID, err := parseID(c.Param("productoId"))
	if err != nil {
		fail(c, err)
		return
	}
	var req quantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	if err := sess.Cart.SetQuantity(productID, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.viewOf(sess))
}

// @Summary Remove line
// @Tags carrito
// @Produce json
// @Param id path string true "Session ID"
// @Param productoId path int true "Product ID"
// @Success 200 {object} map[string]any
// @Router /carrito/{id}/items/{productoId} [delete]
func (s *Server) removeLine(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	productID, err := parseID(c.Param("productoId"))
	if err != nil {
		fail(c, err)
		return
	}
	sess.Cart.Remove(productID)
	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, s.viewOf(sess))
}

// @Summary Set pending quantity selector
// @Tags carrito
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param productoId path int true "Product ID"
// @Param input body quantityReq true "Quantity"
// @Success 200 {object} map[string]any
// @Router /carrito/{id}/cantidades/{productoId} [put]
func (s *Server) setSelectorQuantity(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	productID, err := parseID(c.Param("productoId"))
	if err != nil {
		fail(c, err)
		return
	}
	var req quantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	sess.Selector.Set(productID, req.Quantity)
	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"productoId": productID, "cantidad": sess.Selector.Get(productID)})
}

type submitReq struct {
	CustomerID int64  `json:"usuarioId"`
	Payment    string `json:"metodoPago"`
	Delivery   string `json:"tipoEntrega"`
	Notes      string `json:"notas"`
}

// @Summary Submit cart as order
// @Tags carrito
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param input body submitReq true "Checkout"
// @Success 200 {object} map[string]any "QR: pending confirmation with total"
// @Success 201 {object} map[string]any "order created"
// @Failure 422 {object} map[string]string
// @Router /carrito/{id}/pedido [post]
func (s *Server) submitOrder(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "JSON inválido"})
		return
	}
	meta := checkout.Meta{
		CustomerID: req.CustomerID,
		Payment:    domain.PaymentMethod(req.Payment),
		Delivery:   domain.DeliveryType(req.Delivery),
		Notes:      req.Notes,
	}

	sub := s.registry.ForSession(sess.ID)
	order, confirmation, err := sub.Submit(c, sess, meta)
	if err != nil {
		fail(c, err)
		return
	}
	if confirmation != nil {
		ok(c, http.StatusOK, gin.H{"estado": string(sub.State()), "total": confirmation.Total})
		return
	}
	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

// @Summary Confirm QR payment and fire the order
// @Tags carrito
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /carrito/{id}/pedido/confirmar [post]
func (s *Server) confirmOrder(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	sub := s.registry.ForSession(sess.ID)
	order, err := sub.Confirm(c, sess)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.sessions.Save(c, sess); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

// @Summary Cancel QR confirmation
// @Tags carrito
// @Param id path string true "Session ID"
// @Success 204
// @Router /carrito/{id}/pedido [delete]
func (s *Server) cancelConfirmation(c *gin.Context) {
	sess, found := s.session(c)
	if !found {
		return
	}
	s.registry.ForSession(sess.ID).CancelConfirmation()
	c.Status(http.StatusNoContent)
}
