package api

import (
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/listing"
	"storefront/internal/models"

	"github.com/gin-gonic/gin"
)

type cartItemBody struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

type filterDraftBody struct {
	Current  string `json:"current"`
	Keyword  string `json:"keyword"`
	MinPrice string `json:"minPrice"`
	MaxPrice string `json:"maxPrice"`
}

// listProducts derives the listing state from the request query. The
// canonical query and the neighbouring page links are returned for the UI to
// navigate with.
func (h *Handler) listProducts(c *gin.Context) {
	query := c.Request.URL.Query()
	filter := listing.Parse(query)

	page, err := current(c).Catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	prev, next := listing.Links(query, page.TotalPages)
	c.JSON(http.StatusOK, gin.H{
		"products":      page.Content,
		"page":          filter.Page,
		"totalPages":    page.TotalPages,
		"totalElements": page.TotalElements,
		"query":         filter.Encode(),
		"prev":          prev,
		"next":          next,
	})
}

// commitFilter applies the typed search box and price inputs to the current
// listing query and returns the query to navigate to.
func (h *Handler) commitFilter(c *gin.Context) {
	var body filterDraftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	currentQuery, err := url.ParseQuery(body.Current)
	if err != nil {
		badRequest(c, "Invalid current query", err)
		return
	}

	draft := listing.Draft{Keyword: body.Keyword, MinPrice: body.MinPrice, MaxPrice: body.MaxPrice}
	next, err := draft.Commit(currentQuery)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": next.Encode()})
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := current(c).Catalog.Featured(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	product, err := current(c).Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) categories(c *gin.Context) {
	categories, err := current(c).Catalog.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// getCart resynchronizes the mirror and returns it.
func (h *Handler) getCart(c *gin.Context) {
	sf := current(c)
	if err := sf.Cart.FetchCart(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sf.Cart.Snapshot())
}

func (h *Handler) addCartItem(c *gin.Context) {
	var body cartItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sf := current(c)
	if err := sf.Cart.AddToCart(c.Request.Context(), body.ProductID, body.Quantity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sf.Cart.Snapshot())
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := int64Param(c, "productId")
	if !ok {
		return
	}
	var body quantityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sf := current(c)
	if err := sf.Cart.UpdateQuantity(c.Request.Context(), id, body.Quantity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sf.Cart.Snapshot())
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := int64Param(c, "productId")
	if !ok {
		return
	}

	sf := current(c)
	if err := sf.Cart.RemoveFromCart(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sf.Cart.Snapshot())
}

// checkout places the order for the selected cart lines. A context evicted
// since its last request has an empty mirror, so the cart is loaded first.
func (h *Handler) checkout(c *gin.Context) {
	var req models.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sf := current(c)
	if len(sf.Cart.Lines()) == 0 {
		if err := sf.Cart.FetchCart(c.Request.Context()); err != nil {
			h.respondError(c, err)
			return
		}
	}

	result, err := sf.Checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		if result != nil {
			c.JSON(http.StatusCreated, gin.H{
				"order":   result.Order,
				"error":   "Payment link unavailable",
				"details": genericFailure,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := current(c).Orders.MyOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := current(c).Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := current(c).Orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}
