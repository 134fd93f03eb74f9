package registry

import (
	"errors"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// ErrNoInstances is returned by Discover when no healthy instance exists.
var ErrNoInstances = errors.New("no healthy instances found")

type consulRegistry struct {
	client *consulapi.Client
	logger *zap.Logger
}

// Ensure consulRegistry implements ServiceRegistry
var _ ServiceRegistry = (*consulRegistry)(nil)

// NewConsulRegistry creates a new registry backed by the Consul agent at address.
func NewConsulRegistry(address string, logger *zap.Logger) (ServiceRegistry, error) {
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = address

	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		logger.Error("Failed to create Consul client", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Agent().NodeName(); err != nil {
		logger.Error("Failed to connect to Consul agent", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("cannot connect to consul agent at %s: %w", address, err)
	}
	logger.Info("Successfully connected to Consul agent", zap.String("address", address))

	return &consulRegistry{
		client: client,
		logger: logger.Named("ConsulRegistry"),
	}, nil
}

// Register registers a service instance with Consul, including a health check.
func (r *consulRegistry) Register(instance Instance, check *consulapi.AgentServiceCheck) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      instance.ID,
		Name:    instance.Name,
		Tags:    instance.Tags,
		Port:    instance.Port,
		Address: instance.Address,
		Check:   check,
	}

	fields := []zap.Field{
		zap.String("service_id", instance.ID),
		zap.String("service_name", instance.Name),
		zap.String("address", instance.Address),
		zap.Int("port", instance.Port),
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		r.logger.Error("Failed to register service with Consul", append(fields, zap.Error(err))...)
		return fmt.Errorf("failed to register service '%s': %w", instance.Name, err)
	}
	r.logger.Info("Successfully registered service with Consul", fields...)
	return nil
}

// Deregister removes a service instance from Consul.
func (r *consulRegistry) Deregister(id string) error {
	if err := r.client.Agent().ServiceDeregister(id); err != nil {
		r.logger.Error("Failed to deregister service from Consul", zap.String("service_id", id), zap.Error(err))
		return fmt.Errorf("failed to deregister service '%s': %w", id, err)
	}
	r.logger.Info("Successfully deregistered service from Consul", zap.String("service_id", id))
	return nil
}

// Discover finds healthy instances of a service in Consul.
func (r *consulRegistry) Discover(name string, tag string) ([]string, error) {
	instances, _, err := r.client.Health().Service(name, tag, true, nil)
	if err != nil {
		r.logger.Warn("Failed to discover service from Consul", zap.String("service_name", name), zap.String("tag", tag), zap.Error(err))
		return nil, fmt.Errorf("failed to discover service '%s': %w", name, err)
	}

	if len(instances) == 0 {
		return nil, fmt.Errorf("%w for service '%s'", ErrNoInstances, name)
	}

	addrs := make([]string, 0, len(instances))
	for _, inst := range instances {
		// Prefer Service.Address, fallback to Node.Address
		addr := inst.Service.Address
		if addr == "" && inst.Node != nil {
			addr = inst.Node.Address
		}
		addrs = append(addrs, fmt.Sprintf("%s:%d", addr, inst.Service.Port))
	}
	r.logger.Debug("Discovered healthy service instances", zap.String("service_name", name), zap.Strings("addresses", addrs))
	return addrs, nil
}

func (r *consulRegistry) List() (map[string][]string, error) {
	services, _, err := r.client.Catalog().Services(nil)
	if err != nil {
		r.logger.Error("Failed to list services from Consul catalog", zap.Error(err))
		return nil, fmt.Errorf("failed to list services from consul: %w", err)
	}
	return services, nil
}

// CreateHTTPCheck creates a Consul HTTP health check hitting checkPath on host:port.
func CreateHTTPCheck(serviceID, serviceHost string, servicePort int, checkPath string, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_http", serviceID),
		Name:                           fmt.Sprintf("HTTP Check for %s", serviceID),
		HTTP:                           fmt.Sprintf("http://%s:%d%s", serviceHost, servicePort, checkPath),
		Method:                         "GET",
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}

// CreateGRPCCheck creates a Consul check against the standard gRPC health service.
func CreateGRPCCheck(serviceID, grpcTarget string, interval, timeout string, useTLS bool) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_grpc", serviceID),
		Name:                           fmt.Sprintf("gRPC Check for %s", serviceID),
		GRPC:                           grpcTarget,
		GRPCUseTLS:                     useTLS,
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}
