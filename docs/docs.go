// Package docs registers the swagger document for the whattodo HTTP API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/document": {
            "get": {
                "tags": ["document"],
                "summary": "Get the task document",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}}
                }
            }
        },
        "/document/reload": {
            "post": {
                "tags": ["document"],
                "summary": "Reload the document from storage",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "500": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks": {
            "post": {
                "tags": ["tasks"],
                "summary": "Create a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/TaskResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}": {
            "put": {
                "tags": ["tasks"],
                "summary": "Update a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/UpdateTaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["tasks"],
                "summary": "Delete a task",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/today": {
            "post": {
                "tags": ["tasks"],
                "summary": "Move a task into today",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/labels": {
            "post": {
                "tags": ["labels"],
                "summary": "Create a label",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/LabelRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/LabelResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/labels/{id}": {
            "put": {
                "tags": ["labels"],
                "summary": "Update a label",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/LabelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["labels"],
                "summary": "Delete a label",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/notes/{date}": {
            "put": {
                "tags": ["notes"],
                "summary": "Set the note for a day",
                "description": "date is a day key such as \"Mon Oct 19 2026\", or \"today\". Blank notes are ignored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "date", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/NoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/filters": {
            "put": {
                "tags": ["filters"],
                "summary": "Set the label filter selection",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/FiltersRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}}
                }
            }
        },
        "/storage": {
            "delete": {
                "tags": ["storage"],
                "summary": "Reset to the default document",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "500": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/storage/upload": {
            "post": {
                "tags": ["storage"],
                "summary": "Replace the document",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/session": {
            "get": {
                "tags": ["session"],
                "summary": "Current session state",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthState"}}
                }
            },
            "post": {
                "tags": ["session"],
                "summary": "Sign in for remote sync",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "request", "required": false, "schema": {"$ref": "#/definitions/SessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthState"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Remote sync disabled", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["session"],
                "summary": "Sign out of remote sync",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthState"}}
                }
            }
        }
    },
    "definitions": {
        "Label": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "color": {"type": "string"}
            }
        },
        "Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "created_at": {"type": "string"},
                "completed": {"type": "boolean"},
                "completed_at": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "pinned": {"type": "boolean"}
            }
        },
        "Document": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"type": "string"}},
                "labels": {"type": "array", "items": {"$ref": "#/definitions/Label"}},
                "tasks": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/Task"}}},
                "notes": {"type": "object", "additionalProperties": {"type": "string"}},
                "migrated": {"type": "boolean"},
                "lastMerged": {"type": "string"}
            }
        },
        "DocumentResponse": {
            "type": "object",
            "properties": {
                "document": {"$ref": "#/definitions/Document"},
                "today": {"type": "string"},
                "usage_ratio": {"type": "number"}
            }
        },
        "TaskResponse": {
            "type": "object",
            "properties": {
                "task": {"$ref": "#/definitions/Task"},
                "document": {"$ref": "#/definitions/Document"}
            }
        },
        "LabelResponse": {
            "type": "object",
            "properties": {
                "label": {"$ref": "#/definitions/Label"},
                "document": {"$ref": "#/definitions/Document"}
            }
        },
        "CreateTaskRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "created_at": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "pinned": {"type": "boolean"}
            }
        },
        "UpdateTaskRequest": {
            "type": "object",
            "required": ["created_at"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "created_at": {"type": "string"},
                "completed": {"type": "boolean"},
                "completed_at": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "pinned": {"type": "boolean"}
            }
        },
        "LabelRequest": {
            "type": "object",
            "required": ["title", "color"],
            "properties": {
                "title": {"type": "string"},
                "color": {"type": "string"}
            }
        },
        "NoteRequest": {
            "type": "object",
            "properties": {
                "note": {"type": "string"}
            }
        },
        "FiltersRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"type": "string"}}
            }
        },
        "SessionRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"}
            }
        },
        "AuthState": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "signed_in": {"type": "boolean"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "whattodo API",
	Description:      "Local task document with optional remote sync",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
