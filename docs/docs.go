// Package docs holds the Swagger document served under /swagger.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service is shutting down", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {"200": {"description": "Service is ready"}, "503": {"description": "Service is not ready"}}
            }
        },
        "/live": {
            "get": {
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "Service is alive"}}
            }
        },
        "/api/v1/connection": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Get connection state",
                "responses": {"200": {"description": "Connection state", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/connection/wifi": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Connect over WiFi",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.WifiConnectRequest"}}],
                "responses": {
                    "200": {"description": "Connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid target", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Superseded by another intent", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Glove unreachable", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "504": {"description": "Connection timed out", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/connection/bluetooth": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Connect over Bluetooth",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.BluetoothConnectRequest"}}],
                "responses": {
                    "200": {"description": "Connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Device not bonded", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Bluetooth unavailable", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/connection/serial": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Connect over serial",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.SerialConnectRequest"}}],
                "responses": {
                    "200": {"description": "Connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Port could not be opened", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/connection/disconnect": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Disconnect",
                "responses": {"200": {"description": "Disconnected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/ui": {
            "get": {
                "produces": ["application/json"],
                "tags": ["UI"],
                "summary": "Get presentation state",
                "responses": {"200": {"description": "Presentation state", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/samples": {
            "get": {
                "produces": ["application/json"],
                "tags": ["UI"],
                "summary": "Get samples",
                "responses": {"200": {"description": "Sample window", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/status": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["UI"],
                "summary": "Clear status message",
                "responses": {"200": {"description": "Status message cleared", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/training/start": {
            "post": {
                "produces": ["application/json"],
                "tags": ["UI"],
                "summary": "Start training",
                "responses": {
                    "200": {"description": "Training started", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Glove is not connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/training/stop": {
            "post": {
                "produces": ["application/json"],
                "tags": ["UI"],
                "summary": "Stop training",
                "responses": {"200": {"description": "Training stopped", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/devices": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "List connection candidates",
                "responses": {"200": {"description": "Candidates", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/devices/bluetooth": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "List bonded Bluetooth devices",
                "responses": {
                    "200": {"description": "Bonded devices", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Bluetooth unavailable", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/devices/serial": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "List serial ports",
                "responses": {"200": {"description": "Serial ports", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/devices/scanners": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "List scanners",
                "responses": {"200": {"description": "Scanner types", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/api/v1/devices/scan/{type}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "Scan one transport",
                "parameters": [{"in": "path", "name": "type", "required": true, "type": "string", "enum": ["bluetooth", "serial"]}],
                "responses": {
                    "200": {"description": "Candidates", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Scanner not available", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/stream/clients": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stream"],
                "summary": "Stream clients",
                "responses": {"200": {"description": "Stream clients", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/ws/stream": {
            "get": {
                "tags": ["Stream"],
                "summary": "Event stream",
                "description": "WebSocket stream. Sends a snapshot on open, then every presentation event.",
                "parameters": [{"in": "query", "name": "events", "type": "string", "description": "Comma separated event types to receive"}],
                "responses": {"101": {"description": "Switching protocols"}, "400": {"description": "Unknown event type"}}
            }
        }
    },
    "definitions": {
        "handler.WifiConnectRequest": {
            "type": "object",
            "required": ["host", "port"],
            "properties": {
                "host": {"type": "string", "example": "192.168.4.1"},
                "port": {"type": "string", "example": "8080"}
            }
        },
        "handler.BluetoothConnectRequest": {
            "type": "object",
            "required": ["address"],
            "properties": {
                "address": {"type": "string", "example": "00:11:22:33:44:55"}
            }
        },
        "handler.SerialConnectRequest": {
            "type": "object",
            "required": ["port"],
            "properties": {
                "port": {"type": "string", "example": "/dev/ttyUSB0"},
                "baud_rate": {"type": "integer", "example": 115200}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "service": {"type": "string"},
                "version": {"type": "string"},
                "uptime": {"type": "string"},
                "checks": {"type": "object"}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8084",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "EMG Glove Service API",
	Description:      "Connects to an EMG glove over WiFi, Bluetooth or serial and streams its samples",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
