package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/apperror"
	"zipngo/config"
	"zipngo/middleware"
	"zipngo/models"
	"zipngo/utils"
)

// ProductStore is the persistence the product controller needs.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, keyword, category string) ([]models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
}

// ProductController handles product-related requests
type ProductController struct {
	Products ProductStore

	timeout time.Duration
}

// NewProductController creates a new ProductController
func NewProductController(products ProductStore, cfg config.Config) *ProductController {
	return &ProductController{Products: products, timeout: cfg.RequestTimeout}
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := utils.DecodeJSON(r, &product); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	product.ID = primitive.NilObjectID
	product.Name = strings.TrimSpace(product.Name)
	switch {
	case product.Name == "":
		utils.WriteError(w, r, apperror.Validation("Product name is required"))
		return
	case product.Price < 0 || product.Stock < 0:
		utils.WriteError(w, r, apperror.Validation("Price and stock cannot be negative"))
		return
	}
	if user, ok := middleware.CurrentUser(r.Context()); ok {
		product.CreatedBy = user.ID
	}

	ctx, cancel := requestContext(r, pc.timeout)
	defer cancel()

	if err := pc.Products.Create(ctx, &product); err != nil {
		utils.WriteError(w, r, apperror.Internal("Error creating product", err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{"success": true, "product": product})
}

// GetProducts lists products, filtered by ?keyword= and ?category=.
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ctx, cancel := requestContext(r, pc.timeout)
	defer cancel()

	products, err := pc.Products.List(ctx, strings.TrimSpace(q.Get("keyword")), strings.TrimSpace(q.Get("category")))
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error fetching products", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "products": products})
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Product not found")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r, pc.timeout)
	defer cancel()

	product, err := pc.Products.FindByID(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "product": product})
}

// UpdateProduct handles updating a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Product not found")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var update models.ProductUpdate
	if err := utils.DecodeJSON(r, &update); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	switch {
	case update.Empty():
		utils.WriteError(w, r, apperror.Validation("Nothing to update"))
		return
	case update.Name != nil && strings.TrimSpace(*update.Name) == "":
		utils.WriteError(w, r, apperror.Validation("Product name is required"))
		return
	case (update.Price != nil && *update.Price < 0) || (update.Stock != nil && *update.Stock < 0):
		utils.WriteError(w, r, apperror.Validation("Price and stock cannot be negative"))
		return
	}

	ctx, cancel := requestContext(r, pc.timeout)
	defer cancel()

	product, err := pc.Products.Update(ctx, id, update)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "product": product})
}

// DeleteProduct handles deleting a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Product not found")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r, pc.timeout)
	defer cancel()

	product, err := pc.Products.Delete(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Product deleted successfully",
		"product": product,
	})
}
