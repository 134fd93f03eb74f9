package controllers

import (
	"context"
	"net"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request after it has been handled.
func RequestLogger(logger *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		startTime := time.Now()

		chain.ProcessFilter(req, resp)

		logger.Info("Request",
			zap.String("client_ip", clientIP(req.Request)),
			zap.String("method", req.Request.Method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("user_agent", req.Request.UserAgent()),
			zap.String("path", req.Request.URL.Path),
		)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewContainer wires the web services, request logging, panic recovery and
// the OpenAPI document at /apidocs.json.
func NewContainer(users *UserController, login *AuthController, ping func(ctx context.Context) error, logger *zap.Logger) *restful.Container {
	container := restful.NewContainer()
	container.Router(restful.CurlyRouter{})
	container.DoNotRecover(false)
	container.RecoverHandler(func(panicReason interface{}, w http.ResponseWriter) {
		logger.Error("Recovered from panic", zap.Any("reason", panicReason))
		w.Header().Set("Content-Type", restful.MIME_JSON)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"An internal error occurred"}`))
	})
	container.Filter(RequestLogger(logger.Named("http")))

	container.Add(users.WebService())
	container.Add(login.WebService())
	container.Add(HealthWebService(ping))

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}))
	return container
}
