package controllers

import (
	"net/http"

	"user-admin/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// LoginCredentials defines the structure of the login request
type LoginCredentials struct {
	Email    string `json:"email" description:"Email address of the account"`
	Password string `json:"password" description:"Password for login"`
}

// LoginResponse defines the structure of the login response
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user,omitempty"`
}

type AuthController struct {
	authService services.AuthService
	log         *zap.Logger
}

func NewAuthController(authService services.AuthService, log *zap.Logger) *AuthController {
	return &AuthController{authService: authService, log: log.Named("auth")}
}

func (ctl *AuthController) WebService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/login").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)

	ws.Route(ws.POST("").To(ctl.loginHandler).
		Doc("Exchange email and password for an access token").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Reads(LoginCredentials{}).
		Writes(LoginResponse{}).
		Returns(http.StatusOK, "Logged in", LoginResponse{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Invalid credentials", ErrorResponse{}).
		Returns(http.StatusForbidden, "Account is disabled", ErrorResponse{}).
		Returns(http.StatusUnprocessableEntity, "Email or password missing", ErrorResponse{}))
	return ws
}

func (ctl *AuthController) loginHandler(request *restful.Request, response *restful.Response) {
	creds := new(LoginCredentials)
	if err := request.ReadEntity(creds); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	token, user, err := ctl.authService.Login(request.Request.Context(), creds.Email, creds.Password)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}

	resp := mapModelToUserResponse(user)
	_ = response.WriteHeaderAndJson(http.StatusOK, LoginResponse{Token: token, User: &resp}, restful.MIME_JSON)
}
