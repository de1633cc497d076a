package cache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// BackendConfig is one candidate backend. The set of variants is closed:
// RedisConfig, CosmosConfig and DiskConfig.
type BackendConfig interface {
	backend() string
}

// RedisConfig selects a Redis server by URL
type RedisConfig struct {
	URL string `json:"url" mapstructure:"url"`
}

func (RedisConfig) backend() string { return BackendRedis }

// CosmosConfig selects a Cosmos DB container. Client, when set, is used
// instead of building one from ConnectionString.
type CosmosConfig struct {
	ConnectionString string           `json:"connection_string" mapstructure:"connection_string"`
	DatabaseID       string           `json:"database_id" mapstructure:"database_id"`
	ContainerID      string           `json:"container_id" mapstructure:"container_id"`
	Client           *azcosmos.Client `json:"-" mapstructure:"-"`
}

func (CosmosConfig) backend() string { return BackendCosmos }

// Complete reports whether the connection string and both ids are set
func (c *CosmosConfig) Complete() bool {
	return c != nil &&
		strings.TrimSpace(c.ConnectionString) != "" &&
		strings.TrimSpace(c.DatabaseID) != "" &&
		strings.TrimSpace(c.ContainerID) != ""
}

// DiskConfig selects an sqlite file under RootPath
type DiskConfig struct {
	RootPath string `json:"root_path" mapstructure:"root_path"`
}

func (DiskConfig) backend() string { return BackendDisk }

// Params are the selector inputs. Seed namespaces every backend.
type Params struct {
	Seed          string        `json:"seed" mapstructure:"seed"`
	RedisURL      string        `json:"redis_url" mapstructure:"redis_url"`
	CachePathRoot string        `json:"cache_path_root" mapstructure:"cache_path_root"`
	Cosmos        *CosmosConfig `json:"cosmos,omitempty" mapstructure:"cosmos"`
}

// ValidateSeed rejects seeds that would place the disk cache outside its root
func ValidateSeed(seed string) error {
	if strings.Contains(seed, "..") {
		return fmt.Errorf("cache seed cannot contain '..'")
	}
	if strings.ContainsAny(seed, "/\\") {
		return fmt.Errorf("cache seed cannot contain path separators")
	}
	if strings.Contains(seed, "\x00") {
		return fmt.Errorf("cache seed cannot contain null bytes")
	}
	if filepath.IsAbs(seed) || filepath.VolumeName(seed) != "" {
		return fmt.Errorf("cache seed cannot be an absolute path")
	}
	return nil
}

// Candidates returns the backends to try, in order. The disk backend is
// always last. The seed must pass ValidateSeed.
func Candidates(p Params) []BackendConfig {
	var out []BackendConfig
	if strings.TrimSpace(p.RedisURL) != "" {
		out = append(out, RedisConfig{URL: p.RedisURL})
	}
	if p.Cosmos.Complete() {
		out = append(out, *p.Cosmos)
	}

	root := p.CachePathRoot
	if root == "" {
		root = DefaultPathRoot
	}
	return append(out, DiskConfig{RootPath: filepath.Join(root, p.Seed)})
}
