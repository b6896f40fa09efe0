package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/handler/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/handler/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/handler/planner"
	"github.com/zhouzirui/z-mentor/backend/internal/handler/stream"
	"github.com/zhouzirui/z-mentor/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-mentor/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	chatService "github.com/zhouzirui/z-mentor/backend/internal/service/chat"
	plannerService "github.com/zhouzirui/z-mentor/backend/internal/service/planner"
	profileService "github.com/zhouzirui/z-mentor/backend/internal/service/profile"
	"github.com/zhouzirui/z-mentor/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。Planner 与 Profiles 为空时不注册对应路由。
type Deps struct {
	Personas       personaModel.Store
	Chat           *chatService.Service
	Planner        *plannerService.Service
	Profiles       *profileService.Service
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler(deps.Gatherer))

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas, deps.Logger).RegisterRoutes(api)
		chat.New(deps.Chat, deps.Logger).RegisterRoutes(api)
		stream.New(deps.Chat, deps.Personas, deps.Logger).RegisterRoutes(api)

		if deps.Planner != nil {
			planner.New(deps.Planner, deps.Profiles, deps.Logger).RegisterRoutes(api)
		}
	})

	ws.New(deps.Chat, originChecker(deps.AllowedOrigins), deps.Logger).RegisterRoutes(r)

	return r
}

func originChecker(allowed []string) func(string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[o] = struct{}{}
	}
	return func(origin string) bool {
		_, ok := set[origin]
		return ok
	}
}
