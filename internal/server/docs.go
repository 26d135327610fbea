package server

// @title Chainpad API
// @version 1.0
// @description Local test-network orchestration API for Pact and Chainweb development

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http
