package registry

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/zero-day-ai/council/llm"
)

// Metadata keys written by council components.
const (
	MetaProvider  = "provider"
	MetaModels    = "models"
	MetaNamespace = "namespace"
	MetaHostname  = "hostname"
)

// GetModel looks up a model published under kind "model". It implements
// llm.ModelRegistry. When several instances publish the same id the most
// recently started one wins.
func (c *Client) GetModel(ctx context.Context, id string) (llm.Model, bool, error) {
	instances, err := c.Discover(ctx, KindModel, id)
	if err != nil {
		return nil, false, err
	}
	if len(instances) == 0 {
		return nil, false, nil
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].StartedAt.After(instances[j].StartedAt)
	})
	return ModelFromService(instances[0]), true, nil
}

// RegisterModel publishes a model to the shared catalogue under instanceID.
func (c *Client) RegisterModel(ctx context.Context, m llm.StaticModel, instanceID string) error {
	return c.Register(ctx, ModelService(m, instanceID))
}

// ModelService builds the registry entry for a model.
func ModelService(m llm.StaticModel, instanceID string) ServiceInfo {
	meta := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	if m.Provider != "" {
		meta[MetaProvider] = m.Provider
	}

	return ServiceInfo{
		Kind:       KindModel,
		Name:       m.Name,
		InstanceID: instanceID,
		Endpoint:   m.Endpoint,
		Metadata:   meta,
		StartedAt:  time.Now(),
	}
}

// ModelFromService converts a registry entry back into a model.
func ModelFromService(info ServiceInfo) llm.StaticModel {
	m := llm.StaticModel{
		Name:     info.Name,
		Endpoint: info.Endpoint,
		Metadata: make(map[string]string, len(info.Metadata)),
	}
	for k, v := range info.Metadata {
		if k == MetaProvider {
			m.Provider = v
			continue
		}
		m.Metadata[k] = v
	}
	return m
}

// WorkerService builds the registry entry for a council worker.
func WorkerService(workerID, version, endpoint, namespace string, models []string) ServiceInfo {
	hostname, _ := os.Hostname()

	ids := append([]string(nil), models...)
	sort.Strings(ids)

	return ServiceInfo{
		Kind:       KindWorker,
		Name:       WorkerServiceName,
		Version:    version,
		InstanceID: workerID,
		Endpoint:   endpoint,
		Metadata: map[string]string{
			MetaModels:    strings.Join(ids, ","),
			MetaNamespace: namespace,
			MetaHostname:  hostname,
		},
		StartedAt: time.Now(),
	}
}
