package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(apiHandler *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	// Tracker firmware endpoints
	r.Post("/sensor_values", apiHandler.HandleSensorValues)
	r.Post("/diagnostics", apiHandler.HandleDiagnostics)

	r.Get("/stats", apiHandler.HandleStats)
	r.Get("/healthz", apiHandler.HandleHealth)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", apiHandler.HandleListDevices)
		r.Get("/{deviceID}/state", apiHandler.HandleDeviceState)
		r.Put("/{deviceID}/limits", apiHandler.HandleSetLimits)
		r.Get("/{deviceID}/samples", apiHandler.HandleDeviceSamples)
	})

	return r
}
