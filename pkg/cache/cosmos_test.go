package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&azcore.ResponseError{StatusCode: http.StatusNotFound}))
	assert.True(t, isNotFound(fmt.Errorf("read: %w", &azcore.ResponseError{StatusCode: http.StatusNotFound})))
	assert.False(t, isNotFound(&azcore.ResponseError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.False(t, isNotFound(nil))
}

func TestCosmosConfigComplete(t *testing.T) {
	tests := []struct {
		name string
		cfg  *CosmosConfig
		want bool
	}{
		{"nil", nil, false},
		{"empty", &CosmosConfig{}, false},
		{"missing container", &CosmosConfig{ConnectionString: "x", DatabaseID: "db"}, false},
		{"blank database", &CosmosConfig{ConnectionString: "x", DatabaseID: " ", ContainerID: "c"}, false},
		{"complete", &CosmosConfig{ConnectionString: "x", DatabaseID: "db", ContainerID: "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Complete())
		})
	}
}

func TestOpenCosmosBadConnectionString(t *testing.T) {
	_, err := OpenCosmos(context.Background(), "seed", CosmosConfig{
		ConnectionString: "not a connection string",
		DatabaseID:       "db",
		ContainerID:      "c",
	})
	assert.Error(t, err)
}
