package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ecom-ledger/internal/admin"
	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	ord "github.com/MikeMC777/ecom-ledger/internal/order"
)

// registerRoutes mounts the customer and admin APIs. Every route resolves
// the caller through identity; /admin additionally requires the admin role.
func registerRoutes(r gin.IRouter, svc *ord.Service, adm *admin.Service, identity httpx.IdentityResolver) {
	orders := r.Group("/orders", httpx.Identity(identity))
	orders.GET("", listOrdersHandler(svc))
	orders.POST("", placeOrderHandler(svc))
	orders.POST("/verify-payment", verifyPaymentHandler(svc))
	orders.GET("/:id", getOrderHandler(svc))
	orders.POST("/:id/cancel", cancelOrderHandler(svc))

	ad := r.Group("/admin", httpx.Identity(identity), httpx.RequireAdmin())
	ad.GET("/orders", adminListOrdersHandler(svc))
	ad.GET("/orders/:id", adminGetOrderHandler(svc))
	ad.PUT("/orders/:id/status", adminUpdateStatusHandler(svc))
	ad.DELETE("/orders/:id", adminDeleteOrderHandler(svc))
	ad.GET("/dashboard", dashboardHandler(adm))
	ad.GET("/analytics", analyticsHandler(adm))
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(c, apperr.BadRequest("invalid order id"))
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func callerID(c *gin.Context) string {
	p, _ := httpx.CurrentPrincipal(c)
	return p.ID
}

// listOrdersHandler godoc
// @Summary  List own orders
// @Tags     orders
// @Produce  json
// @Param    X-User-ID  header  string  true   "caller id"
// @Param    limit      query   int     false  "page size (max 100)"
// @Param    offset     query   int     false  "offset"
// @Success  200  {array}   ord.Order
// @Failure  401  {object}  httpx.HTTPError
// @Router   /orders [get]
func listOrdersHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		out, err := svc.List(c.Request.Context(), callerID(c), limit, offset)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// placeOrderHandler godoc
// @Summary      Place order
// @Description  COD orders start as "ordered". RAZORPAY/Online orders start as "pending" and carry the gateway order.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string            true  "caller id"
// @Param        body       body    ord.PlaceRequest  true  "checkout"
// @Success      201  {object}  ord.PlaceResult
// @Failure      400  {object}  httpx.HTTPError
// @Failure      500  {object}  httpx.HTTPError
// @Router       /orders [post]
func placeOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.PlaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
			return
		}
		res, err := svc.Place(c.Request.Context(), callerID(c), req)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if res.Gateway == nil {
			c.JSON(http.StatusCreated, res.Order)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// verifyPaymentHandler godoc
// @Summary  Verify gateway payment
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header  string             true  "caller id"
// @Param    body       body    ord.VerifyRequest  true  "gateway callback"
// @Success  200  {object}  map[string]any
// @Failure  400  {object}  httpx.HTTPError
// @Failure  404  {object}  httpx.HTTPError
// @Router   /orders/verify-payment [post]
func verifyPaymentHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
			return
		}
		res, err := svc.VerifyPayment(c.Request.Context(), callerID(c), req)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if !res.Verified {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          "Payment verification failed",
				"order_id":       res.Order.ID,
				"payment_status": res.Order.PaymentStatus,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    "Payment verified successfully",
			"order_id":   res.Order.ID,
			"payment_id": req.GatewayPaymentID,
			"status":     res.Order.Status,
		})
	}
}

// getOrderHandler godoc
// @Summary  Get own order
// @Tags     orders
// @Produce  json
// @Param    X-User-ID  header  string  true  "caller id"
// @Param    id         path    int     true  "order id"
// @Success  200  {object}  ord.Order
// @Failure  404  {object}  httpx.HTTPError
// @Router   /orders/{id} [get]
func getOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		o, err := svc.Get(c.Request.Context(), callerID(c), id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// cancelOrderHandler godoc
// @Summary      Cancel own order
// @Description  Only "ordered" orders, within the cancellation window, with a reason of at least 10 characters.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string             true  "caller id"
// @Param        id         path    int                true  "order id"
// @Param        body       body    ord.CancelRequest  true  "reason"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  httpx.HTTPError
// @Failure      403  {object}  httpx.HTTPError
// @Failure      404  {object}  httpx.HTTPError
// @Router       /orders/{id}/cancel [post]
func cancelOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		var req ord.CancelRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
				return
			}
		}
		o, err := svc.Cancel(c.Request.Context(), callerID(c), id, req.Reason)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":          "Order cancelled successfully",
			"order_id":         o.ID,
			"status":           o.Status,
			"cancelled_reason": o.CancellationReason,
		})
	}
}

// adminListOrdersHandler godoc
// @Summary  List all orders
// @Tags     admin
// @Produce  json
// @Param    X-User-ID  header  string  true   "admin id"
// @Param    status     query   string  false  "status filter"
// @Param    user_id    query   string  false  "owner filter"
// @Param    limit      query   int     false  "page size (max 100)"
// @Param    offset     query   int     false  "offset"
// @Success  200  {array}   ord.Order
// @Failure  400  {object}  httpx.HTTPError
// @Failure  403  {object}  httpx.HTTPError
// @Router   /admin/orders [get]
func adminListOrdersHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		f := ord.ListFilter{UserID: strings.TrimSpace(c.Query("user_id")), Limit: limit, Offset: offset}
		if raw := c.Query("status"); raw != "" {
			st, err := ord.ParseStatus(raw)
			if err != nil {
				httpx.WriteError(c, apperr.BadRequest("unknown status").With("status", raw))
				return
			}
			f.Status = st
		}
		out, err := svc.AdminList(c.Request.Context(), f)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// adminGetOrderHandler godoc
// @Summary  Order detail
// @Tags     admin
// @Produce  json
// @Param    X-User-ID  header  string  true  "admin id"
// @Param    id         path    int     true  "order id"
// @Success  200  {object}  ord.Order
// @Failure  404  {object}  httpx.HTTPError
// @Router   /admin/orders/{id} [get]
func adminGetOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		o, err := svc.AdminGet(c.Request.Context(), id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// adminUpdateStatusHandler godoc
// @Summary  Change order status
// @Tags     admin
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header  string             true  "admin id"
// @Param    id         path    int                true  "order id"
// @Param    body       body    ord.StatusRequest  true  "target status"
// @Success  200  {object}  ord.Order
// @Failure  400  {object}  httpx.HTTPError
// @Failure  404  {object}  httpx.HTTPError
// @Router   /admin/orders/{id}/status [put]
func adminUpdateStatusHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		var req ord.StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.WriteError(c, apperr.BadRequest("invalid JSON body"))
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), id, req)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// adminDeleteOrderHandler godoc
// @Summary      Delete order
// @Description  Restocks the items unless the order was already cancelled.
// @Tags         admin
// @Produce      json
// @Param        X-User-ID  header  string  true  "admin id"
// @Param        id         path    int     true  "order id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  httpx.HTTPError
// @Router       /admin/orders/{id} [delete]
func adminDeleteOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
	}
}

// dashboardHandler godoc
// @Summary      Dashboard
// @Description  Aggregates over the last `days` days (default 30). Records an analytics snapshot.
// @Tags         admin
// @Produce      json
// @Param        X-User-ID  header  string  true   "admin id"
// @Param        days       query   int     false  "window in days"
// @Success      200  {object}  admin.Dashboard
// @Failure      403  {object}  httpx.HTTPError
// @Router       /admin/dashboard [get]
func dashboardHandler(adm *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := adm.Dashboard(c.Request.Context(), callerID(c), admin.ParseDays(c.Query("days")))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// analyticsHandler godoc
// @Summary  Stored analytics snapshots
// @Tags     admin
// @Produce  json
// @Param    X-User-ID  header  string  true   "admin id"
// @Param    days       query   int     false  "window in days"
// @Success  200  {object}  map[string]any
// @Router   /admin/analytics [get]
func analyticsHandler(adm *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := admin.ParseDays(c.Query("days"))
		snaps, err := adm.Snapshots(c.Request.Context(), days)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"period_days": days, "count": len(snaps), "snapshots": snaps})
	}
}
