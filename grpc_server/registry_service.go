package grpcserver

import (
	"context"
	"errors"

	"user-admin/registry"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type registryServer struct {
	registry registry.ServiceRegistry
	log      *zap.Logger
}

func NewRegistryServer(r registry.ServiceRegistry, log *zap.Logger) RegistryServer {
	return &registryServer{registry: r, log: log.Named("grpc.registry")}
}

// Discover returns the healthy addresses of the named service.
func (s *registryServer) Discover(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, _ := stringField(in, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "service name required")
	}
	tag, _ := stringField(in, "tag")

	addrs, err := s.registry.Discover(name, tag)
	if err != nil {
		if errors.Is(err, registry.ErrNoInstances) {
			return newStruct(map[string]interface{}{"found": false, "addresses": []interface{}{}})
		}
		s.log.Error("Error discovering service", zap.String("service_name", name), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "error discovering service '%s'", name)
	}
	return newStruct(map[string]interface{}{"found": true, "addresses": strings2any(addrs)})
}

// List returns every service in the catalog with its tags.
func (s *registryServer) List(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	services, err := s.registry.List()
	if err != nil {
		s.log.Error("Error listing services", zap.Error(err))
		return nil, status.Error(codes.Internal, "error listing services")
	}
	out := make(map[string]interface{}, len(services))
	for name, tags := range services {
		out[name] = strings2any(tags)
	}
	return newStruct(map[string]interface{}{"services": out})
}
