// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "openapi": "3.1.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "//{{.Host}}{{.BasePath}}"}],
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Check the health of the service",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/v1/menu": {
            "get": {
                "tags": ["store"],
                "summary": "List the menu items currently available",
                "responses": {
                    "200": {
                        "description": "OK",
                        "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/main.MenuItemResponse"}}}}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.ErrorResponse"}}}
                    }
                }
            }
        },
        "/v1/orders": {
            "post": {
                "tags": ["order"],
                "summary": "Place a new order",
                "description": "Runs the order through the intake checks, stores it and notifies the kitchen.",
                "requestBody": {
                    "required": true,
                    "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.CreateOrderRequest"}}}
                },
                "responses": {
                    "201": {
                        "description": "Created",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.CreateOrderResponse"}}}
                    },
                    "400": {
                        "description": "validation or store_closed",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.RejectionResponse"}}}
                    },
                    "403": {
                        "description": "email_unverified",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.RejectionResponse"}}}
                    },
                    "429": {
                        "description": "duplicate or rate_limited",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.RejectionResponse"}}}
                    },
                    "503": {
                        "description": "capacity",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.RejectionResponse"}}}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.ErrorResponse"}}}
                    }
                }
            }
        },
        "/v1/orders/sse": {
            "get": {
                "tags": ["order"],
                "summary": "Stream placed orders via Server-Sent Events (SSE)",
                "responses": {
                    "200": {"description": "OK", "content": {"text/event-stream": {}}}
                }
            }
        },
        "/v1/store-status": {
            "get": {
                "tags": ["store"],
                "summary": "Report whether orders are being accepted",
                "responses": {
                    "200": {
                        "description": "OK",
                        "content": {"application/json": {"schema": {"$ref": "#/components/schemas/main.StoreStatusResponse"}}}
                    }
                }
            }
        }
    },
    "components": {
        "schemas": {
            "main.OrderItemRequest": {
                "type": "object",
                "properties": {
                    "id": {"type": "integer"},
                    "name": {"type": "string"},
                    "price": {"type": "number"},
                    "quantity": {"type": "integer"}
                }
            },
            "main.CreateOrderRequest": {
                "type": "object",
                "required": ["customerName", "customerPhone", "items"],
                "properties": {
                    "customerName": {"type": "string"},
                    "customerPhone": {"type": "string"},
                    "customerEmail": {"type": "string"},
                    "notes": {"type": "string", "maxLength": 500},
                    "items": {"type": "array", "minItems": 1, "items": {"$ref": "#/components/schemas/main.OrderItemRequest"}}
                }
            },
            "main.LineItemResponse": {
                "type": "object",
                "properties": {
                    "id": {"type": "integer"},
                    "name": {"type": "string"},
                    "price": {"type": "string"},
                    "quantity": {"type": "integer"}
                }
            },
            "main.OrderResponse": {
                "type": "object",
                "properties": {
                    "id": {"type": "integer"},
                    "userId": {"type": "integer"},
                    "customerName": {"type": "string"},
                    "customerPhone": {"type": "string"},
                    "customerEmail": {"type": "string"},
                    "notes": {"type": "string"},
                    "items": {"type": "array", "items": {"$ref": "#/components/schemas/main.LineItemResponse"}},
                    "total": {"type": "string"},
                    "status": {"type": "string"},
                    "createdAt": {"type": "string", "format": "date-time"}
                }
            },
            "main.CloverSyncResponse": {
                "type": "object",
                "properties": {
                    "success": {"type": "boolean"},
                    "cloverOrderId": {"type": "string"},
                    "error": {"type": "string"}
                }
            },
            "main.CreateOrderResponse": {
                "type": "object",
                "properties": {
                    "accepted": {"type": "boolean"},
                    "orderId": {"type": "integer"},
                    "posSyncStatus": {"type": "string", "enum": ["synced", "failed", "skipped"]},
                    "order": {"$ref": "#/components/schemas/main.OrderResponse"},
                    "clover": {"$ref": "#/components/schemas/main.CloverSyncResponse"}
                }
            },
            "main.StoreHoursResponse": {
                "type": "object",
                "properties": {
                    "openTime": {"type": "string"},
                    "closeTime": {"type": "string"}
                }
            },
            "main.RejectionResponse": {
                "type": "object",
                "properties": {
                    "accepted": {"type": "boolean"},
                    "reason": {"type": "string"},
                    "category": {"type": "string", "enum": ["validation", "store_closed", "duplicate", "rate_limited", "capacity", "email_unverified"]},
                    "invalidItems": {"type": "array", "items": {"type": "string"}},
                    "unavailableItems": {"type": "array", "items": {"type": "string"}},
                    "storeHours": {"$ref": "#/components/schemas/main.StoreHoursResponse"},
                    "needsVerification": {"type": "boolean"}
                }
            },
            "main.StoreStatusResponse": {
                "type": "object",
                "properties": {
                    "isOpen": {"type": "boolean"},
                    "status": {"type": "string", "enum": ["open", "closing_soon", "closed"]},
                    "message": {"type": "string"},
                    "openTime": {"type": "string"},
                    "closeTime": {"type": "string"}
                }
            },
            "main.MenuItemResponse": {
                "type": "object",
                "properties": {
                    "id": {"type": "integer"},
                    "name": {"type": "string"},
                    "price": {"type": "string"}
                }
            },
            "main.ErrorResponse": {
                "type": "object",
                "properties": {
                    "error": {"type": "string"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Banco",
	Description:      "Order intake for the restaurant storefront.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
