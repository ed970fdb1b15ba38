package server

import (
	"net/http"

	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/middleware"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/monitoring"
)

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	monitoring.RegisterMetricsEndpoint(mux)
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)

	mux.HandleFunc("POST /stars", s.starHandler.HandleMint)
	mux.HandleFunc("GET /stars/{id}", s.starHandler.HandleGetMetadata)
	mux.HandleFunc("GET /stars/{id}/owner", s.starHandler.HandleOwnerOf)
	mux.HandleFunc("POST /stars/{id}/approve", s.starHandler.HandleApprove)
	mux.HandleFunc("GET /stars/{id}/approved", s.starHandler.HandleGetApproved)
	mux.HandleFunc("POST /stars/{id}/transfer", s.starHandler.HandleTransfer)
	mux.HandleFunc("GET /coordinates/exists", s.starHandler.HandleCoordinateExists)

	mux.HandleFunc("POST /stars/{id}/sale", s.marketplaceHandler.HandleListForSale)
	mux.HandleFunc("GET /stars/{id}/sale", s.marketplaceHandler.HandleGetSalePrice)
	mux.HandleFunc("POST /stars/{id}/buy", s.marketplaceHandler.HandleBuy)

	mux.HandleFunc("POST /operators", s.operatorHandler.HandleSetApprovalForAll)
	mux.HandleFunc("GET /operators", s.operatorHandler.HandleIsApprovedForAll)

	mux.HandleFunc("GET /accounts/{account}/balance", s.accountHandler.HandleBalanceOf)
	mux.HandleFunc("GET /accounts/{account}/funds", s.accountHandler.HandleGetFunds)
	mux.HandleFunc("POST /accounts/{account}/funds", s.accountHandler.HandleDeposit)

	mux.HandleFunc("GET /events", s.eventsHandler.HandleRecent)

	handler := middleware.NewRecoveryMiddleware(s.logger)(mux)
	handler = middleware.NewLoggingMiddleware(s.logger)(handler)
	handler = middleware.NewAccountMiddleware()(handler)
	handler = monitoring.WrapHandler(handler)
	handler = s.corsMiddleware(handler)
	handler = s.timeoutMiddleware(handler)

	return handler
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, "+middleware.AccountHeader+", X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, s.requestTimeout, "Request timeout")
}
