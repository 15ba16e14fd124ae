// Package docs registers the OpenAPI document of the connections API with
// swag so gin-swagger can serve it. Regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
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
        "/posts/{postId}/connections": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Sends a connection request from the caller to the owner of the post.\nSupports idempotency via the Idempotency-Key header (same key and post → same connection).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Request a connection on a post",
                "operationId": "sendConnection",
                "parameters": [
                    {"type": "string", "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab", "description": "Idempotency key for safe retries (UUID recommended)", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Post ID", "name": "postId", "in": "path", "required": true},
                    {"description": "Optional note", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.SendConnectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Idempotent replay", "schema": {"$ref": "#/definitions/handlers.ConnectionEnvelope"}},
                    "201": {"description": "Request created", "schema": {"$ref": "#/definitions/handlers.ConnectionEnvelope"}},
                    "400": {"description": "Validation, conflict or invalid state", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Post or owner not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "429": {"description": "Restricted by cooldown", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "503": {"description": "Storage busy", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/connections": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns sent and received connections in every status. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "All connections of the caller",
                "operationId": "listConnections",
                "parameters": [
                    {"type": "string", "description": "ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OverviewEnvelope"}},
                    "304": {"description": "Not Modified"}
                }
            }
        },
        "/connections/pending": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Pending requests received",
                "operationId": "listPendingConnections",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConnectionListEnvelope"}}
                }
            }
        },
        "/connections/accepted": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Accepted connections",
                "operationId": "listAcceptedConnections",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConnectionListEnvelope"}}
                }
            }
        },
        "/connections/restrictions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Lists posts the caller may not request again yet, with the expiry of each cooldown.",
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Active cooldowns of the caller",
                "operationId": "listRestrictions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RestrictionListEnvelope"}}
                }
            }
        },
        "/connections/{id}/accept": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Only the receiver may accept, and only while the request is pending.",
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Accept a pending request",
                "operationId": "acceptConnection",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Connection ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConnectionEnvelope"}},
                    "400": {"description": "Not pending or already connected", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Caller is not the receiver", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Connection not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/connections/{id}/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Only the receiver may reject. The sender is blocked from requesting the same post until restricted_until.",
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Reject a pending request",
                "operationId": "rejectConnection",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Connection ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RejectEnvelope"}},
                    "400": {"description": "Not pending", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Caller is not the receiver", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Connection not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/connections/{id}/cancel": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Only the sender may cancel, and only while the request is pending. The request is removed.",
                "produces": ["application/json"],
                "tags": ["Connections"],
                "summary": "Cancel a pending request",
                "operationId": "cancelConnection",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Connection ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Not pending", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Caller is not the sender", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Connection not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/connections/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns a page of messages, oldest first. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages on a connection",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Connection ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessagePageEnvelope"}},
                    "304": {"description": "Not Modified"},
                    "403": {"description": "Caller is not a party", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Connection not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Stores a message from the caller. The connection must be accepted and the caller one of its parties.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Send a message on a connection",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Connection ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"description": "Message payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.MessageEnvelope"}},
                    "400": {"description": "Bad request or connection not accepted", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Caller is not a party", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Connection not found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Connection": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "sender_id": {"type": "string"},
                "receiver_id": {"type": "string"},
                "post_id": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "accepted", "rejected"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.ConnectionRestriction": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "sender_id": {"type": "string"},
                "post_id": {"type": "string"},
                "restricted_until": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "connection_id": {"type": "string"},
                "sender_id": {"type": "string"},
                "content": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "message": {"type": "string", "example": "connection not found"},
                "data": {},
                "restricted_until": {"type": "string", "format": "date-time", "example": "2025-06-02T12:00:00Z"},
                "code": {"type": "string", "example": "not_found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.ConnectionEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/domain.Connection"}}}
            ]
        },
        "handlers.ConnectionListEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/domain.Connection"}}}}
            ]
        },
        "handlers.RestrictionListEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/domain.ConnectionRestriction"}}}}
            ]
        },
        "handlers.OverviewEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/services.Overview"}}}
            ]
        },
        "handlers.RejectEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/services.RejectResult"}}}
            ]
        },
        "handlers.MessageEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/domain.Message"}}}
            ]
        },
        "handlers.MessagePageEnvelope": {
            "allOf": [
                {"$ref": "#/definitions/handlers.Envelope"},
                {"type": "object", "properties": {"data": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}}
            ]
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "content": {"type": "string", "minLength": 1, "example": "Does Saturday morning work for the first session?"}
            }
        },
        "handlers.SendConnectionRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Hi! I'd love to swap guitar lessons for Spanish practice."}
            }
        },
        "services.Overview": {
            "type": "object",
            "properties": {
                "sent": {"type": "array", "items": {"$ref": "#/definitions/domain.Connection"}},
                "received": {"type": "array", "items": {"$ref": "#/definitions/domain.Connection"}}
            }
        },
        "services.RejectResult": {
            "type": "object",
            "properties": {
                "connection": {"$ref": "#/definitions/domain.Connection"},
                "restricted_until": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT issued by the SkillSwap identity service: \"Bearer <token>\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "SkillSwap Connections API",
	Description:      "Connection request lifecycle and restriction engine: send, accept, reject and cancel requests around a post, with a cooldown after rejection.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
