package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Role decides access to the admin area.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes the role strings the auth service emits ("ADMIN", "ROLE_ADMIN", "USER", ...).
func ParseRole(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	r = strings.TrimPrefix(r, "ROLE_")
	if r == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleCustomer
}

// UserProfile is an immutable snapshot of the signed-in user.
type UserProfile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
}

// IsAdmin reports whether the profile may enter the admin area.
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session is the bundle identifying an authenticated browsing context.
type Session struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *UserProfile `json:"user,omitempty"`
}

// Clone returns a deep copy so callers never share the stored profile.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return &out
}

// Product as served by the catalog service.
type Product struct {
	ProductID     int64           `json:"productId"`
	ProductName   string          `json:"productName"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	Description   string          `json:"description"`
	CategoryName  string          `json:"categoryName"`
	CategoryID    int64           `json:"categoryId"`
	StockQuantity int             `json:"stockQuantity"`
	QuantitySold  int             `json:"quantitySold"`
	CreatedAt     string          `json:"createdAt"`
}

type Category struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// Page is the list envelope every paged upstream endpoint returns.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// ProductRequest is the admin create/update payload.
type ProductRequest struct {
	ProductName   string          `json:"productName" validate:"required,max=255"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	Description   string          `json:"description,omitempty"`
	Image         string          `json:"image,omitempty"`
	CategoryID    int64           `json:"categoryId" validate:"required,gt=0"`
}

type ProductStats struct {
	TotalProducts    int64 `json:"total_products"`
	LowStockProducts int64 `json:"low_stock_products"`
}

// CartItemResponse is one line of the server-owned cart.
type CartItemResponse struct {
	CartItemID    int64           `json:"cartItemId"`
	ProductID     int64           `json:"productId"`
	Quantity      int             `json:"quantity"`
	ProductName   string          `json:"productName"`
	ProductPrice  decimal.Decimal `json:"productPrice"`
	ProductImage  string          `json:"productImage"`
	StockQuantity int             `json:"stockQuantity"`
}

type CartResponse struct {
	CartID     string             `json:"cartId"`
	UserID     int64              `json:"userId"`
	TotalItems int                `json:"totalItems"`
	Items      []CartItemResponse `json:"items"`
}

// CartLine is one line of the local cart mirror.
type CartLine struct {
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	ImageURL       string          `json:"imageUrl"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"availableStock"`
}

// Subtotal is unitPrice x quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a render-friendly snapshot of the mirror with derived totals.
type Cart struct {
	Lines      []CartLine      `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipping,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodGateway PaymentMethod = "VNPAY"
)

type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
)

type OrderDetail struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
}

type Order struct {
	OrderID       string          `json:"orderId"`
	FullName      string          `json:"fullName"`
	PhoneNumber   string          `json:"phoneNumber"`
	Address       string          `json:"address"`
	Note          string          `json:"note"`
	Status        OrderStatus     `json:"status"`
	TotalMoney    decimal.Decimal `json:"totalMoney"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	OrderDate     string          `json:"orderDate"`
	OrderDetails  []OrderDetail   `json:"orderDetails"`
}

type PlaceOrderRequest struct {
	FullName           string        `json:"fullName" validate:"required,max=100"`
	PhoneNumber        string        `json:"phoneNumber" validate:"required,numeric,min=9,max=11"`
	Address            string        `json:"address" validate:"required,max=255"`
	Note               string        `json:"note"`
	PaymentMethod      PaymentMethod `json:"paymentMethod" validate:"required,oneof=COD VNPAY"`
	SelectedProductIDs []int64       `json:"selectedProductIds" validate:"required,min=1,dive,gt=0"`
}

type OrderStats struct {
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalOrders     int64           `json:"totalOrders"`
	PendingOrders   int64           `json:"pendingOrders"`
	ShippingOrders  int64           `json:"shippingOrders"`
	SuccessOrders   int64           `json:"successOrders"`
	CancelledOrders int64           `json:"cancelledOrders"`
}

// RevenuePoint is one month of the admin revenue chart.
type RevenuePoint struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// PaymentResult is the verdict of the server-side gateway verification.
type PaymentResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

// Succeeded reports whether the gateway payment was accepted.
func (r *PaymentResult) Succeeded() bool {
	return r != nil && strings.EqualFold(r.Status, "success")
}

// UserResponse is the identity service's user representation.
type UserResponse struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Profile converts the upstream representation into the cached profile.
func (u *UserResponse) Profile() *UserProfile {
	return &UserProfile{
		ID:          u.UserID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        ParseRole(u.Role),
		AvatarURL:   u.Avatar,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
	}
}

type UserCreateRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required,min=6"`
	Email       string `json:"email" validate:"required,email"`
	Role        string `json:"role" validate:"omitempty,oneof=ADMIN CUSTOMER USER"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

type UserUpdateRequest struct {
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,numeric,min=9,max=11"`
	Address     string `json:"address,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Role        string `json:"role,omitempty" validate:"omitempty,oneof=ADMIN CUSTOMER USER"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=2000"`
}

// UserStats is keyed by whatever counters the identity service reports.
type UserStats map[string]int64
