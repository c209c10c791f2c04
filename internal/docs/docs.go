// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/orders": {
            "get": {
                "tags": ["orders"],
                "summary": "List own orders",
                "parameters": [
                    {"type": "string", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}}
            },
            "post": {
                "tags": ["orders"],
                "summary": "Place order",
                "parameters": [
                    {"type": "string", "name": "X-User-ID", "in": "header", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.PlaceRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}}
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": ["orders"],
                "summary": "Get own order",
                "parameters": [
                    {"type": "string", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}}
            }
        },
        "/orders/{id}/cancel": {
            "post": {
                "tags": ["orders"],
                "summary": "Cancel own order",
                "parameters": [
                    {"type": "string", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.CancelRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/orders/verify-payment": {
            "post": {
                "tags": ["orders"],
                "summary": "Verify gateway payment",
                "parameters": [
                    {"type": "string", "name": "X-User-ID", "in": "header", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.VerifyRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/admin/orders": {
            "get": {"tags": ["admin"], "summary": "List all orders", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/admin/orders/{id}": {
            "get": {"tags": ["admin"], "summary": "Order detail", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["admin"], "summary": "Delete order and restock", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/admin/orders/{id}/status": {
            "put": {
                "tags": ["admin"],
                "summary": "Change order status",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.StatusRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/admin/dashboard": {
            "get": {
                "tags": ["admin"],
                "summary": "Dashboard aggregates",
                "parameters": [{"type": "integer", "name": "days", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/analytics": {
            "get": {
                "tags": ["admin"],
                "summary": "Stored analytics snapshots",
                "parameters": [{"type": "integer", "name": "days", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/products": {
            "get": {"tags": ["products"], "summary": "List products", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/product.ListResponse"}}}},
            "post": {
                "tags": ["products"],
                "summary": "Create product",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/product.CreateProductRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/products/search": {
            "get": {"tags": ["products"], "summary": "Search products", "parameters": [{"type": "string", "name": "q", "in": "query", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/products/trash": {
            "get": {"tags": ["products"], "summary": "List trashed products", "responses": {"200": {"description": "OK"}}}
        },
        "/products/{id}": {
            "get": {"tags": ["products"], "summary": "Get product", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {
                "tags": ["products"],
                "summary": "Update product (partial)",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/product.UpdateProductRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            },
            "delete": {"tags": ["products"], "summary": "Move product to trash", "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/products/{id}/restore": {
            "post": {"tags": ["products"], "summary": "Restore product", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/products/{id}/permanent": {
            "delete": {"tags": ["products"], "summary": "Permanently delete trashed product", "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        }
    },
    "definitions": {
        "httpx.HTTPError": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "not found"}}
        },
        "order.PlaceRequest": {
            "type": "object",
            "properties": {
                "product": {"type": "string"},
                "quantity": {"type": "integer", "example": 1},
                "payment_method": {"type": "string", "enum": ["COD", "RAZORPAY", "Online"]},
                "delivery_charge": {"type": "string", "example": "40.00"},
                "total": {"type": "string", "example": "540.00"},
                "address": {"type": "string"},
                "customer_name": {"type": "string"},
                "customer_phone": {"type": "string"},
                "customer_email": {"type": "string"},
                "card_details": {"type": "object"}
            }
        },
        "order.VerifyRequest": {
            "type": "object",
            "properties": {
                "razorpay_order_id": {"type": "string"},
                "razorpay_payment_id": {"type": "string"},
                "razorpay_signature": {"type": "string"}
            }
        },
        "order.CancelRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string", "example": "ordered the wrong size"}}
        },
        "order.StatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["pending", "ordered", "processing", "shipped", "delivered", "cancelled"]},
                "reason": {"type": "string"}
            }
        },
        "product.CreateProductRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Mechanical Keyboard"},
                "description": {"type": "string", "example": "RGB 60%"},
                "price": {"type": "string", "example": "199.90"},
                "stock": {"type": "integer", "example": 10}
            }
        },
        "product.UpdateProductRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "string"},
                "stock": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        },
        "product.ListResponse": {
            "type": "object",
            "properties": {
                "q": {"type": "string"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "items": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ecom-ledger API",
	Description:      "Catalog, order ledger and admin analytics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
