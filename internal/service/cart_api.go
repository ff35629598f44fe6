package service

import (
	"context"
	"net/http"
	"strconv"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/util"
)

// CartAPI is the server-owned cart. It backs the cart synchronizer.
type CartAPI struct {
	api API
}

// NewCartAPI creates a new cart API
func NewCartAPI(api API) *CartAPI {
	return &CartAPI{api: api}
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (c *CartAPI) GetCart(ctx context.Context) (*models.CartResponse, error) {
	ctx, span := util.StartSpan(ctx, "CartAPI.GetCart")
	defer span.End()

	var out models.CartResponse
	if err := c.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/carts/my-cart"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CartAPI) AddItem(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartAPI.AddItem")
	defer span.End()

	return c.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/carts/add",
		Body:   cartItemRequest{ProductID: productID, Quantity: quantity},
	}, nil)
}

func (c *CartAPI) RemoveItem(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartAPI.RemoveItem")
	defer span.End()

	return c.api.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/carts/remove/" + strconv.FormatInt(productID, 10),
		Endpoint: "/carts/remove/{id}",
	}, nil)
}

// UpdateQuantity sets the quantity of one line on the server.
func (c *CartAPI) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "CartAPI.UpdateQuantity")
	defer span.End()

	return c.api.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/carts/update",
		Body:   cartItemRequest{ProductID: productID, Quantity: quantity},
	}, nil)
}

// MirrorOnly returns the cart without its quantity endpoint, so quantity
// edits stay in the local mirror. For order services that lack /carts/update.
func (c *CartAPI) MirrorOnly() *MirrorOnlyCart {
	return &MirrorOnlyCart{api: c}
}

type MirrorOnlyCart struct {
	api *CartAPI
}

func (m *MirrorOnlyCart) GetCart(ctx context.Context) (*models.CartResponse, error) {
	return m.api.GetCart(ctx)
}

func (m *MirrorOnlyCart) AddItem(ctx context.Context, productID int64, quantity int) error {
	return m.api.AddItem(ctx, productID, quantity)
}

func (m *MirrorOnlyCart) RemoveItem(ctx context.Context, productID int64) error {
	return m.api.RemoveItem(ctx, productID)
}
