package grpcserver

import (
	"errors"
	"fmt"
	"time"

	"user-admin/models"
	"user-admin/services"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(in *structpb.Struct, key string) (string, bool) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func optionalString(in *structpb.Struct, key string) *string {
	if s, ok := stringField(in, key); ok {
		return &s
	}
	return nil
}

func intField(in *structpb.Struct, key string) (int, bool) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return int(n.NumberValue), true
}

// stringList reads a list of strings. ok is false when the key is absent or null.
func stringList(in *structpb.Struct, key string) ([]string, bool, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, false, fmt.Errorf("%s must be a list of strings", key)
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, false, fmt.Errorf("%s must be a list of strings", key)
		}
		out = append(out, s.StringValue)
	}
	return out, true, nil
}

func userID(in *structpb.Struct) (uint, error) {
	id, ok := intField(in, "id")
	if !ok || id < 1 {
		return 0, status.Error(codes.InvalidArgument, "id is required")
	}
	return uint(id), nil
}

func strings2any(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func userMap(u *models.User) map[string]interface{} {
	var enabledAt interface{}
	if u.EnabledAt != nil {
		enabledAt = u.EnabledAt.UTC().Format(time.RFC3339)
	}
	return map[string]interface{}{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"roles":         strings2any(u.RoleNames()),
		"enabled":       u.IsEnabled(),
		"enabled_at":    enabledAt,
		"toggle_action": u.ToggleLabel(),
		"created_at":    u.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return s, nil
}

func messageWithUser(message string, u *models.User) (*structpb.Struct, error) {
	out := map[string]interface{}{"message": message}
	if u != nil {
		out["user"] = userMap(u)
	}
	return newStruct(out)
}

// toStatus maps service errors onto gRPC codes. Validation details travel as
// a Struct of field -> messages.
func toStatus(err error) error {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.As(err, &verr):
		st := status.New(codes.InvalidArgument, verr.Error())
		fields := make(map[string]interface{}, len(verr.Fields))
		for k, msgs := range verr.Fields {
			fields[k] = strings2any(msgs)
		}
		if detail, derr := structpb.NewStruct(fields); derr == nil {
			if withDetails, werr := st.WithDetails(protoadapt.MessageV1Of(detail)); werr == nil {
				st = withDetails
			}
		}
		return st.Err()
	case errors.Is(err, services.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, services.ErrAccountDisabled):
		return status.Error(codes.PermissionDenied, "account is disabled")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
