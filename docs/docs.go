// Package docs は user-api の OpenAPI (Swagger 2.0) 定義を swag に登録します。
// ルートを追加・変更した場合はこの定義も更新してください。
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "consumes": ["application/json"],
    "produces": ["application/json"],
    "paths": {
        "/users": {
            "post": {
                "tags": ["users"],
                "summary": "Create a user",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/User"}},
                    "409": {"description": "username_exists or email_exists", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "get": {
                "tags": ["users"],
                "summary": "List users ordered by created_at descending",
                "parameters": [
                    {"in": "query", "name": "active", "type": "boolean", "required": false},
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1, "maximum": 200, "default": 50, "required": false},
                    {"in": "query", "name": "offset", "type": "integer", "minimum": 0, "default": 0, "required": false}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/User"}}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/users/{id}": {
            "parameters": [
                {"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true}
            ],
            "get": {
                "tags": ["users"],
                "summary": "Get a user, including soft-deleted ones",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "404": {"description": "user not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "put": {
                "tags": ["users"],
                "summary": "Partially update a user (PATCH is accepted as an alias)",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "404": {"description": "user not found", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "email_exists", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "delete": {
                "tags": ["users"],
                "summary": "Soft-delete a user (idempotent)",
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "user not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/health/live": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health/ready": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Readiness"}},
                    "503": {"description": "degraded", "schema": {"$ref": "#/definitions/Readiness"}}
                }
            }
        }
    },
    "definitions": {
        "User": {
            "type": "object",
            "required": ["id", "username", "email", "first_name", "last_name", "role", "created_at", "updated_at", "active"],
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "username": {"type": "string", "minLength": 3, "maxLength": 50, "pattern": "^[a-zA-Z0-9_]+$"},
                "email": {"type": "string", "format": "email", "maxLength": 254},
                "first_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "last_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "role": {"type": "string", "enum": ["admin", "user", "guest"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "active": {"type": "boolean"}
            }
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["username", "email"],
            "additionalProperties": false,
            "properties": {
                "username": {"type": "string", "minLength": 3, "maxLength": 50, "pattern": "^[a-zA-Z0-9_]+$"},
                "email": {"type": "string", "format": "email", "maxLength": 254},
                "first_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "last_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "role": {"type": "string", "enum": ["admin", "user", "guest"], "default": "user"},
                "active": {"type": "boolean", "default": true}
            }
        },
        "UpdateUserRequest": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
                "email": {"type": "string", "format": "email", "maxLength": 254},
                "first_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "last_name": {"type": "string", "maxLength": 100, "x-nullable": true},
                "role": {"type": "string", "enum": ["admin", "user", "guest"]},
                "active": {"type": "boolean"}
            }
        },
        "FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Error": {
            "type": "object",
            "required": ["error"],
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/FieldError"}}
            }
        },
        "Readiness": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["ok", "degraded"]},
                "dependencies": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "object",
                        "properties": {
                            "status": {"type": "string"},
                            "error": {"type": "string"}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo は公開する API 定義のメタデータです。
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "User API",
	Description:      "User management: create, read, update, list and soft-delete users with unique username and email.",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
