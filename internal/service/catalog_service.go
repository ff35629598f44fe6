package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/apiclient"
	"storefront/internal/listing"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogService reads and administers products and categories
type CatalogService struct {
	api      API
	pageSize int
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(api API, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 18
	}
	return &CatalogService{api: api, pageSize: pageSize, logger: util.GetLogger()}
}

// ListProducts loads the page of products the filter describes.
func (s *CatalogService) ListProducts(ctx context.Context, f listing.Filter) (*models.Page[models.Product], error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	path, query := f.ProductQuery(s.pageSize)
	var page models.Page[models.Product]
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Query: query, Public: true}, &page)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &page, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	var p models.Product
	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     productPath(id),
		Endpoint: "/products/{id}",
		Public:   true,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Categories")
	defer span.End()

	var out []models.Category
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/products/categories", Public: true}, &out)
	return out, err
}

// Featured is a plain list, not a page envelope.
func (s *CatalogService) Featured(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Featured")
	defer span.End()

	var out []models.Product
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/products/featured", Public: true}, &out)
	return out, err
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := validateProduct(req); err != nil {
		return nil, err
	}

	var p models.Product
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/products/create", Body: req}, &p); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.Int64("product_id", p.ProductID))
	return &p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *models.ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := validateProduct(req); err != nil {
		return nil, err
	}

	var p models.Product
	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPut,
		Path:     productPath(id),
		Endpoint: "/products/{id}",
		Body:     req,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct fails with a 409 resource error when orders reference the product.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     productPath(id),
		Endpoint: "/products/{id}",
	}, nil)
	if err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// UploadImage stores a product image and returns its public URL.
func (s *CatalogService) UploadImage(ctx context.Context, file Upload) (string, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UploadImage")
	defer span.End()

	if err := file.validate(); err != nil {
		return "", err
	}

	var resp urlResponse
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/products/upload-image",
		Upload: &apiclient.Upload{Field: "file", FileName: file.FileName, Content: file.Content},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateCategory")
	defer span.End()

	req := struct {
		CategoryName string `json:"categoryName" validate:"required,max=100"`
	}{CategoryName: name}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var c models.Category
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/products/categories", Body: req}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CatalogService) Stats(ctx context.Context) (*models.ProductStats, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Stats")
	defer span.End()

	var out models.ProductStats
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/products/stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func validateProduct(req *models.ProductRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if !req.Price.IsPositive() {
		return apiclient.Invalid("price", "price must be greater than 0")
	}
	return nil
}

func productPath(id int64) string {
	return "/products/" + url.PathEscape(strconv.FormatInt(id, 10))
}
