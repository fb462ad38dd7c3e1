package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title Sift API
// @version 0.1
// @description Multi-tool OSINT scan orchestration: fan-out, credit billing, progress streaming and stored scan runs.
// @contact.name Sift Maintainers
// @contact.url https://github.com/raysh454/sift
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
