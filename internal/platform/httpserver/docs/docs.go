// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Kept by hand and updated alongside route changes in httpserver.
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
        "/v1/scheduler/tick": {
            "post": {
                "tags": ["scheduler"],
                "summary": "Run one scheduler tick",
                "responses": {
                    "200": {"description": "tick report"}
                }
            }
        },
        "/v1/scheduler/periods/{period_type}/active": {
            "get": {
                "tags": ["scheduler"],
                "summary": "Get the active voting period of a type",
                "parameters": [
                    {"name": "period_type", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "active period"},
                    "404": {"description": "no active period"}
                }
            }
        },
        "/v1/series/{series_id}/works": {
            "get": {
                "tags": ["pipeline"],
                "summary": "List produced works for a series",
                "parameters": [
                    {"name": "series_id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "series with works"},
                    "404": {"description": "series not found"}
                }
            }
        },
        "/v1/clips/{work_id}/vote": {
            "post": {
                "tags": ["settlement"],
                "summary": "Settle a paid vote on a produced clip",
                "parameters": [
                    {"name": "work_id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-PAYMENT", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "vote settled"},
                    "402": {"description": "payment rejected"},
                    "409": {"description": "nonce already consumed"}
                }
            }
        },
        "/v1/clips/{work_id}/votes/count": {
            "get": {
                "tags": ["settlement"],
                "summary": "Count settled votes for a clip",
                "parameters": [
                    {"name": "work_id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "vote count"}
                }
            }
        },
        "/v1/series/{series_id}/tip": {
            "post": {
                "tags": ["settlement"],
                "summary": "Settle a paid tip on a series",
                "parameters": [
                    {"name": "series_id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-PAYMENT", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "tip settled"},
                    "402": {"description": "payment rejected"}
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Backlot API",
	Description:      "Voting period scheduling, content production, and x402 payment settlement.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
