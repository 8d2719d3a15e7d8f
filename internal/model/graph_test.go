package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := New("test")

	id, err := g.AddNode(KindApp, "web", "")
	require.NoError(t, err)
	assert.Equal(t, NodeID("default/app/web"), id)

	node, ok := g.Node(id)
	require.True(t, ok)
	assert.Equal(t, DefaultNamespace, node.Namespace)
	assert.Equal(t, KindApp, node.Kind)

	t.Run("same name different kind", func(t *testing.T) {
		_, err := g.AddNode(KindSecret, "web", "")
		assert.NoError(t, err)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := g.AddNode(KindApp, "web", "default")
		var dup *DuplicateNodeError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, id, dup.ID)
	})

	t.Run("case-insensitive kind", func(t *testing.T) {
		id, err := g.AddNode(Kind("statefulapp"), "db", "data")
		require.NoError(t, err)
		assert.Equal(t, NodeID("data/statefulapp/db"), id)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := g.AddNode(KindApp, "Web_App", "")
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := g.AddNode(Kind("Lambda"), "fn", "")
		assert.Error(t, err)
	})
}

func TestSetProperty(t *testing.T) {
	g := New("test")
	app, err := g.AddNode(KindApp, "web", "")
	require.NoError(t, err)
	db, err := g.AddNode(KindStatefulApp, "db", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      NodeID
		key     string
		value   any
		wantErr bool
	}{
		{"image", app, "image", "nginx:1.21", false},
		{"port int", app, "port", 80, false},
		{"port float from json", app, "port", float64(8080), false},
		{"port zero", app, "port", 0, true},
		{"port too large", app, "port", 70000, true},
		{"port string", app, "port", "80", true},
		{"replicas negative", app, "replicas", -1, true},
		{"cpu millicores", app, "cpu", "250m", false},
		{"cpu cores number", app, "cpu", 2, false},
		{"memory bad", app, "memory", "lots", true},
		{"env map", app, "env", map[string]any{"MODE": "prod", "DEBUG": false}, false},
		{"env nested", app, "env", map[string]any{"A": map[string]any{}}, true},
		{"port mapping", app, "port_mapping", []any{"8080:80", "9000:9000/udp"}, false},
		{"port mapping bad", app, "port_mapping", []any{"eighty"}, true},
		{"service type", app, "service_type", "LoadBalancer", false},
		{"service type bad", app, "service_type", "External", true},
		{"health interval", app, "health_interval", "30s", false},
		{"health interval seconds", app, "health_interval", 30, false},
		{"health interval minutes", app, "health_interval", "1m30s", false},
		{"health interval sub-second", app, "health_interval", "500ms", true},
		{"health interval fractional", app, "health_interval", "1.5s", true},
		{"unknown key", app, "storage", "1Gi", true},
		{"storage", db, "storage", "10Gi", false},
		{"storage decimal", db, "storage", "1.5Ti", false},
		{"storage no unit", db, "storage", "10", true},
		{"storage wrong unit", db, "storage", "10G", true},
		{"cluster mode", db, "cluster_mode", true, false},
		{"bad image", app, "image", "UPPER/Case:tag", true},
		{"unknown node", NodeID("default/app/missing"), "image", "nginx", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SetProperty(tt.id, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("error types", func(t *testing.T) {
		err := g.SetProperty(app, "port", 0)
		var invalid *InvalidPropertyError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "port", invalid.Key)
		assert.Equal(t, app, invalid.NodeID)

		err = g.SetProperty("default/app/missing", "port", 80)
		var unknown *UnknownNodeError
		assert.True(t, errors.As(err, &unknown))
	})

	t.Run("replace keeps order", func(t *testing.T) {
		g := New("order")
		id, err := g.AddNode(KindApp, "api", "")
		require.NoError(t, err)
		require.NoError(t, g.SetProperty(id, "image", "api:1"))
		require.NoError(t, g.SetProperty(id, "port", 8080))
		require.NoError(t, g.SetProperty(id, "image", "api:2"))

		node, _ := g.Node(id)
		assert.Equal(t, []string{"image", "port"}, node.Properties.Keys())
		assert.Equal(t, "api:2", node.Properties.String("image"))
		port, ok := node.Properties.Int("port")
		assert.True(t, ok)
		assert.Equal(t, int64(8080), port)
	})
}

func TestCanonicalValues(t *testing.T) {
	g := New("canonical")
	id, err := g.AddNode(KindRole, "reader", "")
	require.NoError(t, err)

	require.NoError(t, g.SetProperty(id, "rules", []any{
		map[string]any{
			"api_groups": []any{""},
			"resources":  []any{"pods"},
			"verbs":      []any{"get", "list"},
		},
	}))
	err = g.SetProperty(id, "rules", []any{map[string]any{"verb": "get"}})
	assert.Error(t, err)

	node, _ := g.Node(id)
	rules := node.Properties.MapList("rules")
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"get", "list"}, rules[0]["verbs"])

	// copies returned by Node must not alias graph state
	rules[0]["verbs"] = []string{"delete"}
	again, _ := g.Node(id)
	assert.Equal(t, []string{"get", "list"}, again.Properties.MapList("rules")[0]["verbs"])
}

func TestAttach(t *testing.T) {
	g := New("test")
	app, err := g.AddNode(KindApp, "web", "")
	require.NoError(t, err)

	ref := NodeRef{Kind: KindSecret, Name: "db-creds"}
	require.NoError(t, g.Attach(app, ref), "attachment target may be declared later")

	err = g.Attach(app, ref)
	var dup *DuplicateRelationshipError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, Attaches, dup.Type)

	err = g.Attach(app, NodeRef{Kind: KindService, Name: "svc"})
	var invalid *InvalidRelationshipError
	assert.True(t, errors.As(err, &invalid))

	err = g.Attach("default/app/none", ref)
	var unknown *UnknownNodeError
	assert.True(t, errors.As(err, &unknown))

	node, _ := g.Node(app)
	require.Len(t, node.Attachments, 1)
	assert.Equal(t, "default", node.Attachments[0].Namespace)
	assert.Equal(t, NodeID("default/secret/db-creds"), node.Attachments[0].ID())
}

func TestAddRelationship(t *testing.T) {
	g := New("test")
	web, _ := g.AddNode(KindApp, "web", "")
	db, _ := g.AddNode(KindStatefulApp, "db", "")
	svc, _ := g.AddNode(KindService, "web-svc", "")
	sa, _ := g.AddNode(KindServiceAccount, "runner", "")

	require.NoError(t, g.AddRelationship(web, db, ConnectsTo))
	require.NoError(t, g.AddRelationship(web, db, DependsOn), "different type is a different edge")
	require.NoError(t, g.AddRelationship(svc, web, Exposes))
	require.NoError(t, g.AddRelationship(web, sa, Binds))

	t.Run("duplicate", func(t *testing.T) {
		err := g.AddRelationship(web, db, ConnectsTo)
		var dup *DuplicateRelationshipError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, web, dup.From)
		assert.Equal(t, db, dup.To)
	})

	t.Run("unknown target", func(t *testing.T) {
		err := g.AddRelationship(web, "default/app/ghost", DependsOn)
		var unknown *UnknownNodeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, NodeID("default/app/ghost"), unknown.ID)
		assert.Equal(t, web, unknown.Referrer)
	})

	t.Run("unknown source", func(t *testing.T) {
		err := g.AddRelationship("default/app/ghost", web, DependsOn)
		var unknown *UnknownNodeError
		assert.True(t, errors.As(err, &unknown))
	})

	t.Run("unknown type", func(t *testing.T) {
		err := g.AddRelationship(db, web, RelationType("feeds"))
		var invalid *InvalidRelationshipError
		assert.True(t, errors.As(err, &invalid))
	})

	t.Run("disallowed kinds", func(t *testing.T) {
		err := g.AddRelationship(sa, web, Exposes)
		var invalid *InvalidRelationshipError
		assert.True(t, errors.As(err, &invalid))
	})

	t.Run("type is matched case-insensitively", func(t *testing.T) {
		err := g.AddRelationship(web, db, RelationType("DEPENDS_ON"))
		var dup *DuplicateRelationshipError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, DependsOn, dup.Type)

		secret, err := g.AddNode(KindSecret, "creds", "")
		require.NoError(t, err)
		err = g.AddRelationship(web, secret, RelationType("Connects_To"))
		var invalid *InvalidRelationshipError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, ConnectsTo, invalid.Type)
	})

	node, _ := g.Node(web)
	assert.Len(t, node.Relationships, 3)
}

func TestNodesInsertionOrder(t *testing.T) {
	g := New("order")
	names := []string{"c", "a", "b"}
	for _, n := range names {
		_, err := g.AddNode(KindConfigMap, n, "")
		require.NoError(t, err)
	}

	var got []string
	for _, n := range g.Nodes() {
		got = append(got, n.Name)
	}
	assert.Equal(t, names, got)
	assert.Equal(t, 1, g.Position("default/configmap/a"))
	assert.Equal(t, -1, g.Position("default/configmap/z"))
	assert.Equal(t, 3, g.Len())
}
