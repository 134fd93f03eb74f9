package controllers

import (
	"context"
	"net/http"

	restful "github.com/emicklei/go-restful/v3"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// HealthWebService serves GET /health, failing with 503 while ping errors.
func HealthWebService(ping func(ctx context.Context) error) *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/health").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").To(func(request *restful.Request, response *restful.Response) {
		if err := ping(request.Request.Context()); err != nil {
			_ = response.WriteHeaderAndJson(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"}, restful.MIME_JSON)
			return
		}
		_ = response.WriteHeaderAndJson(http.StatusOK, HealthResponse{Status: "ok"}, restful.MIME_JSON)
	}).Doc("Liveness and database check").
		Returns(http.StatusOK, "Healthy", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "Database unreachable", HealthResponse{}))
	return ws
}
