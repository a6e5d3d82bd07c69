// Package docs is generated by swag init from the handler annotations.
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
        "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/readyz": {"get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/api/v1/auth/register": {"post": {"tags": ["auth"], "summary": "Register a user", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/auth/login": {"post": {"tags": ["auth"], "summary": "Log in", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["portfolios"], "summary": "List the caller's portfolios", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["portfolios"], "summary": "Create a portfolio", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createPortfolioRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}
        },
        "/api/v1/portfolios/{id}": {"get": {"security": [{"BearerAuth": []}], "tags": ["portfolios"], "summary": "Get a portfolio with its holdings", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/transactions": {"get": {"security": [{"BearerAuth": []}], "tags": ["portfolios"], "summary": "List portfolio transactions, newest first", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "type", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}, {"type": "integer", "name": "offset", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/history": {"get": {"security": [{"BearerAuth": []}], "tags": ["portfolios"], "summary": "Hourly value history", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "since", "in": "query"}, {"type": "string", "name": "until", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/buy": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Buy an asset", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.buyRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/assets/{assetId}/sell": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Sell part or all of a holding", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "assetId", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.sellRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/assets/{assetId}/dividend": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Record a dividend paid by a holding", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "assetId", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.amountRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/update-prices": {"put": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Refresh holding prices and recompute total value", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/deposit": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Deposit cash", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.amountRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/withdraw": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Withdraw cash", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.amountRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/portfolios/{id}/rebalance": {"post": {"security": [{"BearerAuth": []}], "tags": ["trades"], "summary": "Recommend trades toward target weights", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.rebalanceRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/market/quotes": {"get": {"security": [{"BearerAuth": []}], "tags": ["market"], "summary": "Stored quotes", "parameters": [{"type": "string", "name": "symbols", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/market/quotes/{symbol}": {"get": {"security": [{"BearerAuth": []}], "tags": ["market"], "summary": "Current quote for a symbol", "parameters": [{"type": "string", "name": "symbol", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/notifications": {"get": {"security": [{"BearerAuth": []}], "tags": ["notifications"], "summary": "List notifications, newest first", "parameters": [{"type": "boolean", "name": "unread", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}, {"type": "integer", "name": "offset", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/notifications/{id}/read": {"post": {"security": [{"BearerAuth": []}], "tags": ["notifications"], "summary": "Mark a notification read", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/profile/risk": {"put": {"security": [{"BearerAuth": []}], "tags": ["profile"], "summary": "Set the risk profile", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.riskProfileRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/profile/goals": {"post": {"security": [{"BearerAuth": []}], "tags": ["profile"], "summary": "Add a financial goal", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.goalRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}},
        "/api/v1/ws": {"get": {"tags": ["live"], "summary": "Live event channel", "parameters": [{"type": "string", "name": "token", "in": "query"}], "responses": {"101": {"description": "Switching Protocols"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}}}
    },
    "definitions": {
        "handler.apiResponse": {"type": "object", "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "data": {}, "meta": {"type": "object", "additionalProperties": true}}},
        "handler.registerRequest": {"type": "object", "properties": {"email": {"type": "string"}, "name": {"type": "string"}, "password": {"type": "string"}}},
        "handler.loginRequest": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "handler.createPortfolioRequest": {"type": "object", "properties": {"name": {"type": "string"}, "description": {"type": "string"}, "cash": {"type": "number"}}},
        "handler.buyRequest": {"type": "object", "properties": {"symbol": {"type": "string"}, "name": {"type": "string"}, "assetType": {"type": "string"}, "quantity": {"type": "number"}, "price": {"type": "number"}}},
        "handler.sellRequest": {"type": "object", "properties": {"quantity": {"type": "number"}, "price": {"type": "number"}}},
        "handler.amountRequest": {"type": "object", "properties": {"amount": {"type": "number"}}},
        "handler.rebalanceRequest": {"type": "object", "properties": {"targets": {"type": "object", "additionalProperties": {"type": "number"}}}},
        "handler.riskProfileRequest": {"type": "object", "properties": {"tolerance": {"type": "string"}, "horizonYears": {"type": "integer"}}},
        "handler.goalRequest": {"type": "object", "properties": {"name": {"type": "string"}, "targetAmount": {"type": "number"}, "targetDate": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Folio API",
	Description:      "Portfolio ledger, market quotes and live portfolio updates.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
