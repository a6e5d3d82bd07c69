package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Folio API
// @version         1.0.0
// @description     Portfolio ledger, market quotes and live portfolio updates.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
