package main

// @title           WhatsApp Commerce API
// @version         1.0
// @description     Atendimento de loja pelo WhatsApp: catálogo, carrinho e checkout

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Cabeçalho de autenticação JWT usando o esquema Bearer. Exemplo: "Bearer {token}"
