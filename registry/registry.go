package registry

import (
	"fmt"

	"github.com/google/uuid"
	consulapi "github.com/hashicorp/consul/api"
)

// ServiceRegistry defines the interface for service registration and discovery.
type ServiceRegistry interface {
	// Register registers one service instance together with its health check.
	Register(instance Instance, check *consulapi.AgentServiceCheck) error

	// Deregister removes a service instance using its unique ID.
	Deregister(id string) error

	// Discover finds healthy instances of a service by name and optional tag.
	// Returns a list of "host:port" strings.
	Discover(name string, tag string) ([]string, error)

	// List maps every registered service name to its tags.
	List() (map[string][]string, error)
}

// Instance describes one listening endpoint of this process.
type Instance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// NewInstance builds an instance with a process-unique ID.
func NewInstance(name, address string, port int, tags ...string) Instance {
	return Instance{
		ID:      fmt.Sprintf("%s-%s", name, uuid.NewString()),
		Name:    name,
		Address: address,
		Port:    port,
		Tags:    tags,
	}
}
