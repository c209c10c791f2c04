package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	prod "github.com/MikeMC777/ecom-ledger/internal/product"
)

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func repoErr(c *gin.Context, err error) {
	if errors.Is(err, prod.ErrNotFound) {
		httpx.WriteError(c, apperr.NotFound("product not found"))
		return
	}
	httpx.WriteError(c, apperr.Internal("product repository failure", err))
}

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, apperr.BadRequest("price must be a non-negative decimal")
	}
	return d.Round(2), nil
}

// listOnlyHandler godoc
// @Summary      List products
// @Description  Active catalog, newest first. Pagination only.
// @Tags         products
// @Produce      json
// @Param        limit   query  int  false  "page size (max 100)"
// @Param        offset  query  int  false  "offset"
// @Success      200  {object}  prod.ListResponse
// @Failure      500  {object}  httpx.HTTPError
// @Router       /products [get]
func listOnlyHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		items, err := repo.List(c.Request.Context(), prod.Query{Limit: limit, Offset: offset})
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// searchHandler godoc
// @Summary      Search products
// @Tags         products
// @Produce      json
// @Param        q       query  string  true   "name or description fragment (min 2 chars)"
// @Param        limit   query  int     false  "page size (max 100)"
// @Param        offset  query  int     false  "offset"
// @Success      200  {object}  prod.ListResponse
// @Failure      400  {object}  httpx.HTTPError
// @Router       /products/search [get]
func searchHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if len([]rune(q)) < 2 {
			httpx.WriteError(c, apperr.BadRequest("q must have at least 2 characters"))
			return
		}
		limit, offset := pageParams(c)
		items, err := repo.List(c.Request.Context(), prod.Query{Q: q, Limit: limit, Offset: offset})
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{Q: q, Limit: limit, Offset: offset, Items: items})
	}
}

// getProductHandler godoc
// @Summary      Get product
// @Tags         products
// @Produce      json
// @Param        id   path  string  true  "product id"
// @Success      200  {object}  prod.Product
// @Failure      404  {object}  httpx.HTTPError
// @Router       /products/{id} [get]
func getProductHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// createProductHandler godoc
// @Summary      Create product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string                      true  "admin id"
// @Param        body       body    prod.CreateProductRequest  true  "product"
// @Success      201  {object}  prod.Product
// @Failure      400  {object}  httpx.HTTPError
// @Router       /products [post]
func createProductHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req prod.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || strings.TrimSpace(req.Price) == "" {
			httpx.WriteError(c, apperr.BadRequest("name and price are required"))
			return
		}
		if req.Stock < 0 {
			httpx.WriteError(c, apperr.BadRequest("stock must be >= 0"))
			return
		}
		price, err := parsePrice(req.Price)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}

		p := &prod.Product{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Price:       price,
			Stock:       req.Stock,
			IsActive:    true,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// updateProductHandler godoc
// @Summary      Update product (partial)
// @Description  Omitted fields are left unchanged.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string                      true  "admin id"
// @Param        id         path    string                      true  "product id"
// @Param        body       body    prod.UpdateProductRequest  true  "fields to change"
// @Success      200  {object}  prod.Product
// @Failure      400  {object}  httpx.HTTPError
// @Failure      404  {object}  httpx.HTTPError
// @Router       /products/{id} [put]
func updateProductHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req prod.UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
			return
		}
		patch := prod.Patch{Description: req.Description, Stock: req.Stock, IsActive: req.IsActive}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				httpx.WriteError(c, apperr.BadRequest("name cannot be empty"))
				return
			}
			patch.Name = &name
		}
		if req.Stock != nil && *req.Stock < 0 {
			httpx.WriteError(c, apperr.BadRequest("stock must be >= 0"))
			return
		}
		if req.Price != nil {
			price, err := parsePrice(*req.Price)
			if err != nil {
				httpx.WriteError(c, err)
				return
			}
			patch.Price = &price
		}

		p, err := repo.Update(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// deleteProductHandler godoc
// @Summary      Move product to trash
// @Tags         products
// @Param        X-User-ID  header  string  true  "admin id"
// @Param        id         path    string  true  "product id"
// @Success      204
// @Failure      404  {object}  httpx.HTTPError
// @Router       /products/{id} [delete]
func deleteProductHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.SoftDelete(c.Request.Context(), c.Param("id"))
		if err != nil {
			repoErr(c, err)
			return
		}
		if !ok {
			repoErr(c, prod.ErrNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// trashHandler godoc
// @Summary      List trashed products
// @Tags         products
// @Produce      json
// @Param        X-User-ID  header  string  true   "admin id"
// @Param        limit      query   int     false  "page size (max 100)"
// @Param        offset     query   int     false  "offset"
// @Success      200  {object}  prod.ListResponse
// @Router       /products/trash [get]
func trashHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		items, err := repo.ListTrash(c.Request.Context(), prod.Query{Limit: limit, Offset: offset})
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// restoreHandler godoc
// @Summary      Restore product from trash
// @Tags         products
// @Param        X-User-ID  header  string  true  "admin id"
// @Param        id         path    string  true  "product id"
// @Success      200  {object}  prod.Product
// @Failure      404  {object}  httpx.HTTPError
// @Router       /products/{id}/restore [post]
func restoreHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ok, err := repo.Restore(c.Request.Context(), id)
		if err != nil {
			repoErr(c, err)
			return
		}
		if !ok {
			httpx.WriteError(c, apperr.NotFound("product not found in trash"))
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			repoErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// permanentDeleteHandler godoc
// @Summary      Permanently delete a trashed product
// @Tags         products
// @Param        X-User-ID  header  string  true  "admin id"
// @Param        id         path    string  true  "product id"
// @Success      204
// @Failure      404  {object}  httpx.HTTPError
// @Router       /products/{id}/permanent [delete]
func permanentDeleteHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.PermanentDelete(c.Request.Context(), c.Param("id"))
		if err != nil {
			repoErr(c, err)
			return
		}
		if !ok {
			httpx.WriteError(c, apperr.NotFound("product not found in trash"))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
