package server

//go:generate swag init -g internal/server/swagger.go -o internal/server/docs

// @title Darklens API
// @version 0.1
// @description Dark-pattern GDPR compliance audits: capture a page, detect manipulative consent designs, and score them against the regulatory taxonomy.
// @contact.name Darklens Maintainers
// @contact.url https://github.com/raysh454/darklens
// @BasePath /
