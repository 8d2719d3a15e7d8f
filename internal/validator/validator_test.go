package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
)

func workload(name string, fields map[string]any) ir.Record {
	id := model.NodeID("default/App/" + name)
	return ir.Record{
		ID:           ir.RecordID(id, ir.Workload, -1),
		SourceNodeID: id,
		SourceKind:   model.KindApp,
		Name:         name,
		Namespace:    "default",
		Kind:         ir.Workload,
		Fields:       fields,
	}
}

func TestValidateCleanStack(t *testing.T) {
	result := NewValidator([]ir.Record{
		workload("web", map[string]any{"image": "nginx:1.21", "port_mapping": []string{"8080:80"}}),
		workload("api", map[string]any{"image": "ghcr.io/acme/api@sha256:" + sha, "port_mapping": []string{"9090:80"}}),
	}).Validate()

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Contains(t, result.Format(), "2 resources checked")
}

func TestValidateHostPortConflict(t *testing.T) {
	result := NewValidator([]ir.Record{
		workload("web", map[string]any{"image": "nginx:1.21", "port_mapping": []string{"8080:80"}}),
		workload("admin", map[string]any{"image": "nginx:1.21", "port_mapping": []string{"8080:8000"}}),
		workload("udp", map[string]any{"image": "dns:1", "port_mapping": []string{"8080:53/udp"}}),
	}).Validate()

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "port_mapping", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "8080/tcp")
	assert.Contains(t, result.Errors[0].Message, "default/App/web, default/App/admin")
	assert.Contains(t, result.Format(), "✗ Stack lint failed with 1 error(s)")
}

func TestValidateUnpinnedImage(t *testing.T) {
	result := NewValidator([]ir.Record{
		workload("web", map[string]any{"image": "nginx"}),
		workload("api", map[string]any{"image": "acme/api:latest"}),
	}).Validate()

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "default/App/web.image", result.Warnings[0].Field)
	assert.Contains(t, result.Warnings[1].Message, "acme/api:latest")
}

func TestValidateUnattachedSecret(t *testing.T) {
	secretNode := model.NodeID("default/Secret/db-creds")
	secret := ir.Record{
		ID:           ir.RecordID(secretNode, ir.SecretStore, -1),
		SourceNodeID: secretNode,
		Name:         "db-creds",
		Kind:         ir.SecretStore,
		Fields:       map[string]any{},
	}
	unused := ir.Record{
		ID:           ir.RecordID("default/Secret/old", ir.SecretStore, -1),
		SourceNodeID: "default/Secret/old",
		Name:         "old",
		Kind:         ir.SecretStore,
		Fields:       map[string]any{},
	}
	web := workload("web", map[string]any{
		"image":       "nginx:1.21",
		"attachments": []ir.Attachment{{RecordID: secret.ID, Kind: ir.SecretStore, Name: "db-creds"}},
	})

	result := NewValidator([]ir.Record{secret, unused, web}).Validate()
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Secret old is not attached to any workload", result.Warnings[0].Message)
}

func TestValidateHealthCheckHint(t *testing.T) {
	web := workload("web", map[string]any{"image": "nginx:1.21"})
	svc := ir.Record{
		ID:           ir.RecordID(web.SourceNodeID, ir.NetworkService, -1),
		SourceNodeID: web.SourceNodeID,
		Name:         "web",
		Kind:         ir.NetworkService,
		Fields:       map[string]any{"headless": false},
	}

	result := NewValidator([]ir.Record{web, svc}).Validate()
	require.Len(t, result.Hints, 1)
	assert.Contains(t, result.Hints[0], "default/App/web is exposed without health_path")

	web.Fields["health_path"] = "/healthz"
	result = NewValidator([]ir.Record{web, svc}).Validate()
	assert.Empty(t, result.Hints)
}

const sha = "3b1b3d1a6e7c8f9a0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a"
