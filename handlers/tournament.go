package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tournament-factory/middleware"
	"tournament-factory/services"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, factoryService *services.FactoryService) {
	// Caller identity is required on every mutating route
	api := app.Group("/", middleware.CallerContextMiddleware())

	// Factory
	api.Get("/factory", factoryService.GetFactory)
	api.Get("/owner", factoryService.GetOwner)
	api.Put("/factory/resolver", factoryService.SetResolver)
	api.Post("/factory/pause", factoryService.Pause)
	api.Post("/factory/unpause", factoryService.Unpause)
	api.Put("/factory/verified/:creator", factoryService.SetVerified)
	api.Get("/journal", factoryService.GetJournal)

	// Tournaments
	api.Post("/tournaments", tournamentService.CreateTournament)
	api.Get("/tournaments", tournamentService.GetTournaments)
	api.Get("/tournaments/:id", tournamentService.GetTournament)
	api.Get("/tournaments/:id/events", tournamentService.GetTournamentEvents)
	api.Post("/tournaments/:id/register", tournamentService.Register)
	api.Post("/tournaments/:id/lock", tournamentService.Lock)
	api.Post("/tournaments/:id/advance", tournamentService.Advance)
	api.Post("/tournaments/:id/cancel", tournamentService.Cancel)
	api.Get("/events", tournamentService.GetEvents)

	// Wallets
	api.Post("/wallets/me/withdraw", factoryService.Withdraw)
	api.Post("/wallets/:account/deposit", factoryService.Deposit)
	api.Get("/wallets/:account", factoryService.GetBalance)
}
