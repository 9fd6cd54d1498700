// api/router.go
package api

import (
	"github.com/gin-gonic/gin"

	"fabrika/internal/store"
)

func NewRouter(st store.Store) *gin.Engine {
	r := gin.Default()

	// регистрация — единственный маршрут без токена
	r.POST("/auth/register", RegisterHandler(st))

	apiGroup := r.Group("/api", AuthRequired(st))
	{
		// статические "служебные" маршруты — СНАЧАЛА
		admin := apiGroup.Group("/_admin")
		admin.GET("/endpoints", AdminListEndpoints(st))
		admin.POST("/endpoints", AdminCreateEndpoint(st))
		admin.GET("/endpoints/:name", AdminGetEndpoint(st))
		admin.PUT("/endpoints/:name", AdminUpdateEndpoint(st))
		admin.DELETE("/endpoints/:name", AdminDeleteEndpoint(st))

		// всё остальное под /api — динамический диспетчер
		apiGroup.Any("/:endpoint", DispatchHandler(st))
	}

	return r
}

func RunServer(addr string, st store.Store) error {
	return NewRouter(st).Run(addr)
}
