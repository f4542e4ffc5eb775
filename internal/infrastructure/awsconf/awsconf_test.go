package awsconf

import (
	"context"
	"testing"

	"github.com/leafbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_StaticCredentials(t *testing.T) {
	cfg := &config.Config{AWSRegion: "eu-west-1", AWSAccessKeyID: "test-key", AWSSecretKey: "test-secret"}

	awsCfg, err := Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-key", creds.AccessKeyID)
	assert.Equal(t, "test-secret", creds.SecretAccessKey)
}

func TestEndpoint(t *testing.T) {
	assert.Nil(t, Endpoint(&config.Config{}))

	ep := Endpoint(&config.Config{AWSEndpointURL: "http://localhost:4566"})
	require.NotNil(t, ep)
	assert.Equal(t, "http://localhost:4566", *ep)
}
