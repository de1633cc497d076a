package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// cosmosItem is the stored document. The seed is the partition key.
type cosmosItem struct {
	ID           string `json:"id"`
	PartitionKey string `json:"partitionKey"`
	Value        []byte `json:"value"`
}

// CosmosCache stores entries as documents in one container
type CosmosCache struct {
	container *azcosmos.ContainerClient
	seed      string
}

// OpenCosmos connects to the configured container and checks it exists
func OpenCosmos(ctx context.Context, seed string, cfg CosmosConfig) (*CosmosCache, error) {
	client := cfg.Client
	if client == nil {
		var err error
		client, err = azcosmos.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("cosmos client: %w", err)
		}
	}

	container, err := client.NewContainer(cfg.DatabaseID, cfg.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("cosmos container: %w", err)
	}
	if _, err := container.Read(ctx, nil); err != nil {
		return nil, fmt.Errorf("cosmos container %s/%s: %w", cfg.DatabaseID, cfg.ContainerID, err)
	}

	return &CosmosCache{container: container, seed: seed}, nil
}

func (c *CosmosCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.container.ReadItem(ctx, azcosmos.NewPartitionKeyString(c.seed), key, nil)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cosmos read: %w", err)
	}

	var item cosmosItem
	if err := json.Unmarshal(resp.Value, &item); err != nil {
		return nil, false, fmt.Errorf("decode cosmos item: %w", err)
	}
	return item.Value, true, nil
}

func (c *CosmosCache) Set(ctx context.Context, key string, value []byte) error {
	doc, err := json.Marshal(cosmosItem{ID: key, PartitionKey: c.seed, Value: value})
	if err != nil {
		return fmt.Errorf("encode cosmos item: %w", err)
	}
	if _, err := c.container.UpsertItem(ctx, azcosmos.NewPartitionKeyString(c.seed), doc, nil); err != nil {
		return fmt.Errorf("cosmos upsert: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections of its own
func (c *CosmosCache) Close() error {
	return nil
}

func (c *CosmosCache) Backend() string {
	return BackendCosmos
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
