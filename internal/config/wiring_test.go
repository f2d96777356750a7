package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSwitchRejectsUnknownConnectorType(t *testing.T) {
	_, err := BuildSwitch(context.Background(), CatalogFile{
		Connectors: []ConnectorDecl{{Source: "x", Type: "ftp"}},
	})
	require.Error(t, err)
}

func TestBuildSwitchRejectsMissingRequiredOption(t *testing.T) {
	_, err := BuildSwitch(context.Background(), CatalogFile{
		Connectors: []ConnectorDecl{{Source: "obs", Type: "rest"}},
	})
	require.Error(t, err)
}

func TestBuildSwitchWiresRESTConnector(t *testing.T) {
	sw, err := BuildSwitch(context.Background(), CatalogFile{
		Connectors: []ConnectorDecl{{
			Source: "obs",
			Type:   "rest",
			Option: map[string]any{"base_url": "http://example.test"},
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, sw)
}
