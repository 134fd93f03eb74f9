package controllers

import (
	"net/http"
	"strconv"
	"time"

	"user-admin/auth"
	"user-admin/models"
	"user-admin/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

type UserController struct {
	userService services.UserService
	tokens      *auth.TokenIssuer
	log         *zap.Logger
}

func NewUserController(userService services.UserService, tokens *auth.TokenIssuer, log *zap.Logger) *UserController {
	return &UserController{userService: userService, tokens: tokens, log: log.Named("users")}
}

// UserResponse Defines the response structure of user information
type UserResponse struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Roles        []string   `json:"roles"`
	Enabled      bool       `json:"enabled"`
	EnabledAt    *time.Time `json:"enabled_at"`
	ToggleAction string     `json:"toggle_action"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type PaginatedUsersResponse struct {
	Users    []UserResponse `json:"users"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	LastPage int            `json:"last_page"`
}

type UserMessageResponse struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user,omitempty"`
}

type UserFormResponse struct {
	User  *UserResponse `json:"user,omitempty"`
	Roles []string      `json:"roles"`
}

func mapModelToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Roles:        user.RoleNames(),
		Enabled:      user.IsEnabled(),
		EnabledAt:    user.EnabledAt,
		ToggleAction: user.ToggleLabel(),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

// WebService builds the /users routes. Every route requires a bearer token.
func (ctl *UserController) WebService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/users").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON).
		Filter(auth.AuthFilter(ctl.tokens))

	tags := []string{"users"}
	userID := ws.PathParameter("user-id", "Identifier of the user").DataType("integer")

	ws.Route(ws.GET("").To(ctl.listUsersHandler).
		Doc("List users with pagination").
		Param(ws.QueryParameter("page", "Page number (default 1)").DataType("integer").DefaultValue("1")).
		Param(ws.QueryParameter("page_size", "Users per page").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(PaginatedUsersResponse{}).
		Returns(http.StatusOK, "Users listed successfully", PaginatedUsersResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}))

	ws.Route(ws.GET("/create").To(ctl.createFormHandler).
		Doc("Data for the new-user form").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserFormResponse{}).
		Returns(http.StatusOK, "Form data", UserFormResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}))

	ws.Route(ws.POST("").To(ctl.createUserHandler).
		Doc("Create a user").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreateUserInput{}).
		Writes(UserMessageResponse{}).
		Returns(http.StatusCreated, services.MsgUserCreated, UserMessageResponse{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(ws.GET("/{user-id}").To(ctl.getUserHandler).
		Doc("Get user by ID").
		Param(userID).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserResponse{}).
		Returns(http.StatusOK, "User found", UserResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.GET("/{user-id}/edit").To(ctl.editFormHandler).
		Doc("Data for the edit-user form").
		Param(userID).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserFormResponse{}).
		Returns(http.StatusOK, "Form data", UserFormResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		ws.Route(ws.Method(method).Path("/{user-id}").To(ctl.updateUserHandler).
			Operation("updateUser" + method).
			Doc("Update user by ID; only supplied fields change").
			Param(userID).
			Metadata(restfulspec.KeyOpenAPITags, tags).
			Reads(services.UpdateUserInput{}).
			Writes(UserMessageResponse{}).
			Returns(http.StatusOK, services.MsgUserUpdated, UserMessageResponse{}).
			Returns(http.StatusBadRequest, "Invalid request body or user ID", ErrorResponse{}).
			Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
			Returns(http.StatusNotFound, "User not found", ErrorResponse{}).
			Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))
	}

	ws.Route(ws.GET("/{user-id}/toggle").To(ctl.toggleUserHandler).
		Doc("Enable a disabled user or disable an enabled one").
		Param(userID).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserMessageResponse{}).
		Returns(http.StatusOK, "User toggled", UserMessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.DELETE("/{user-id}").To(ctl.deleteUserHandler).
		Doc("Delete user by ID").
		Param(userID).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserMessageResponse{}).
		Returns(http.StatusOK, services.MsgUserDeleted, UserMessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	return ws
}

// --- go-restful Handler Functions ---

// badRequest answers 400 only to callers that pass the guard, so
// unauthorized callers learn nothing about their payload.
func (ctl *UserController) badRequest(request *restful.Request, response *restful.Response, actorID uint, message string) {
	if err := ctl.userService.Authorize(request.Request.Context(), actorID); err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}
	writeError(response, http.StatusBadRequest, message)
}

// actorAndTarget reads the caller id and the {user-id} path parameter.
func (ctl *UserController) actorAndTarget(request *restful.Request, response *restful.Response) (uint, uint, bool) {
	actorID, _ := auth.RequestingUserID(request)
	targetUserID, err := strconv.ParseUint(request.PathParameter("user-id"), 10, 32)
	if err != nil {
		ctl.badRequest(request, response, actorID, "Invalid user ID format")
		return 0, 0, false
	}
	return actorID, uint(targetUserID), true
}

func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	actorID, _ := auth.RequestingUserID(request)

	page, err := strconv.Atoi(request.QueryParameter("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(request.QueryParameter("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = 0
	}

	result, err := ctl.userService.ListUsers(request.Request.Context(), actorID, page, pageSize)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}

	userResponses := make([]UserResponse, len(result.Users))
	for i := range result.Users {
		userResponses[i] = mapModelToUserResponse(&result.Users[i])
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, PaginatedUsersResponse{
		Users:    userResponses,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		LastPage: result.LastPage,
	}, restful.MIME_JSON)
}

func (ctl *UserController) createFormHandler(request *restful.Request, response *restful.Response) {
	actorID, _ := auth.RequestingUserID(request)
	form, err := ctl.userService.CreateForm(request.Request.Context(), actorID)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, UserFormResponse{Roles: form.Roles}, restful.MIME_JSON)
}

func (ctl *UserController) createUserHandler(request *restful.Request, response *restful.Response) {
	actorID, _ := auth.RequestingUserID(request)

	input := new(services.CreateUserInput)
	if err := request.ReadEntity(input); err != nil {
		ctl.badRequest(request, response, actorID, "Invalid request body: "+err.Error())
		return
	}

	user, err := ctl.userService.CreateUser(request.Request.Context(), actorID, input)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}

	resp := mapModelToUserResponse(user)
	response.AddHeader("Location", "/users")
	_ = response.WriteHeaderAndJson(http.StatusCreated, UserMessageResponse{Message: services.MsgUserCreated, User: &resp}, restful.MIME_JSON)
}

func (ctl *UserController) getUserHandler(request *restful.Request, response *restful.Response) {
	actorID, targetUserID, ok := ctl.actorAndTarget(request, response)
	if !ok {
		return
	}

	user, err := ctl.userService.GetUser(request.Request.Context(), actorID, targetUserID)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, mapModelToUserResponse(user), restful.MIME_JSON)
}

func (ctl *UserController) editFormHandler(request *restful.Request, response *restful.Response) {
	actorID, targetUserID, ok := ctl.actorAndTarget(request, response)
	if !ok {
		return
	}

	form, err := ctl.userService.EditForm(request.Request.Context(), actorID, targetUserID)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}
	user := mapModelToUserResponse(form.User)
	_ = response.WriteHeaderAndJson(http.StatusOK, UserFormResponse{User: &user, Roles: form.Roles}, restful.MIME_JSON)
}

func (ctl *UserController) updateUserHandler(request *restful.Request, response *restful.Response) {
	actorID, targetUserID, ok := ctl.actorAndTarget(request, response)
	if !ok {
		return
	}

	input := new(services.UpdateUserInput)
	if err := request.ReadEntity(input); err != nil {
		ctl.badRequest(request, response, actorID, "Invalid request body: "+err.Error())
		return
	}

	updatedUser, err := ctl.userService.UpdateUser(request.Request.Context(), actorID, targetUserID, input)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}

	resp := mapModelToUserResponse(updatedUser)
	_ = response.WriteHeaderAndJson(http.StatusOK, UserMessageResponse{Message: services.MsgUserUpdated, User: &resp}, restful.MIME_JSON)
}

func (ctl *UserController) toggleUserHandler(request *restful.Request, response *restful.Response) {
	actorID, targetUserID, ok := ctl.actorAndTarget(request, response)
	if !ok {
		return
	}

	user, err := ctl.userService.ToggleEnabled(request.Request.Context(), actorID, targetUserID)
	if err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}

	message := services.MsgUserEnabled
	if !user.IsEnabled() {
		message = services.MsgUserDisabled
	}
	resp := mapModelToUserResponse(user)
	_ = response.WriteHeaderAndJson(http.StatusOK, UserMessageResponse{Message: message, User: &resp}, restful.MIME_JSON)
}

func (ctl *UserController) deleteUserHandler(request *restful.Request, response *restful.Response) {
	actorID, targetUserID, ok := ctl.actorAndTarget(request, response)
	if !ok {
		return
	}

	if err := ctl.userService.DeleteUser(request.Request.Context(), actorID, targetUserID); err != nil {
		handleServiceError(response, ctl.log, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, UserMessageResponse{Message: services.MsgUserDeleted}, restful.MIME_JSON)
}
