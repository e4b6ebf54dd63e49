// Package docs registers the OpenAPI description of the reconengine API with
// swag so that it can be served by the Swagger UI handler.
//
// @title reconengine API
// @version 1.0
// @description TCP connect reconnaissance engine. Resolves a single IPv4 target,
// @description probes a bounded set of TCP ports in fixed-size batches and reports
// @description every port as open, closed, filtered or error.
//
// @host localhost:8080
// @BasePath /api/v1
//
//go:generate swag init -g docs.go -o . --parseInternal
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "operationId": "getHealth",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}},
                    "503": {"description": "Report history database unreachable", "schema": {"$ref": "#/definitions/HealthResponse"}}
                }
            }
        },
        "/scanner/scan": {
            "post": {
                "operationId": "fullScan",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scanner"],
                "summary": "Probe a target's TCP ports",
                "description": "Resolves the host and probes the requested ports, or the reference table when ports is omitted.",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scan report", "schema": {"$ref": "#/definitions/ReportEnvelope"}},
                    "400": {"description": "Invalid target, port list or unresolvable host", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "408": {"description": "Scan cancelled or deadline exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "415": {"description": "Unsupported content type", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/scanner/quick": {
            "post": {
                "operationId": "quickScan",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scanner"],
                "summary": "Liveness check over a fixed set of ports",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/QuickScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "Liveness result", "schema": {"$ref": "#/definitions/QuickScanEnvelope"}},
                    "400": {"description": "Invalid or unresolvable target", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "408": {"description": "Scan cancelled or deadline exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/scanner/ports": {
            "get": {
                "operationId": "listPorts",
                "produces": ["application/json"],
                "tags": ["scanner"],
                "summary": "Reference port table",
                "responses": {
                    "200": {"description": "Ports in scan order", "schema": {"$ref": "#/definitions/PortsEnvelope"}}
                }
            }
        },
        "/scanner/history": {
            "get": {
                "operationId": "listReports",
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Most recent stored reports",
                "parameters": [
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1}
                ],
                "responses": {
                    "200": {"description": "Report summaries, newest first"},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Report history disabled", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/scanner/history/{id}": {
            "get": {
                "operationId": "getReport",
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "One stored report",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true}
                ],
                "responses": {
                    "200": {"description": "Scan report", "schema": {"$ref": "#/definitions/ReportEnvelope"}},
                    "400": {"description": "Malformed id", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Unknown report or history disabled", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ScanRequest": {
            "type": "object",
            "required": ["host"],
            "properties": {
                "host": {"type": "string", "maxLength": 253, "example": "192.0.2.10"},
                "ports": {"type": "array", "items": {"type": "integer"}, "example": [22, 80, 443]}
            }
        },
        "QuickScanRequest": {
            "type": "object",
            "required": ["host"],
            "properties": {
                "host": {"type": "string", "maxLength": 253, "example": "192.0.2.10"}
            }
        },
        "Target": {
            "type": "object",
            "properties": {
                "ip": {"type": "string", "example": "192.0.2.10"},
                "hostname": {"type": "string", "x-nullable": true}
            }
        },
        "ProbeResult": {
            "type": "object",
            "properties": {
                "port": {"type": "integer", "example": 22},
                "status": {"type": "string", "enum": ["open", "closed", "filtered", "error"]},
                "service": {"type": "string", "example": "SSH"},
                "reason": {"type": "string"}
            }
        },
        "Summary": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "open": {"type": "integer"},
                "closed": {"type": "integer"},
                "filtered": {"type": "integer"},
                "errors": {"type": "integer"}
            }
        },
        "Report": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "mode": {"type": "string", "enum": ["full", "quick"]},
                "target": {"$ref": "#/definitions/Target"},
                "scanTime": {"type": "string", "format": "date-time"},
                "results": {"type": "array", "items": {"$ref": "#/definitions/ProbeResult"}},
                "summary": {"$ref": "#/definitions/Summary"}
            }
        },
        "ReportEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"$ref": "#/definitions/Report"}
            }
        },
        "QuickScanEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {
                    "type": "object",
                    "properties": {
                        "target": {"$ref": "#/definitions/Target"},
                        "isUp": {"type": "boolean"},
                        "openPorts": {"type": "integer"}
                    }
                }
            }
        },
        "PortsEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "port": {"type": "integer"},
                            "service": {"type": "string"}
                        }
                    }
                }
            }
        },
        "HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "version": {"type": "string"},
                "uptime": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}},
                "scans": {
                    "type": "object",
                    "properties": {
                        "capacity": {"type": "integer"},
                        "active": {"type": "integer"},
                        "available": {"type": "integer"}
                    }
                }
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "message": {"type": "string"},
                "code": {"type": "string", "example": "TARGET_INVALID"},
                "requestId": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "reconengine API",
	Description:      "TCP connect reconnaissance engine. Resolves a single IPv4 target, probes a bounded set of TCP ports in fixed-size batches and reports every port as open, closed, filtered or error.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
