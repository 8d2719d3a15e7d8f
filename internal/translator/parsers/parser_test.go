package parsers

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withobsrvr/stackctl/internal/model"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		path    string
		want    Parser
		wantErr bool
	}{
		{"stack.yaml", &YAMLParser{}, false},
		{"stack.YML", &YAMLParser{}, false},
		{"stack.json", &JSONParser{}, false},
		{"stack.cue", NewCUEParser(), false},
		{"stack.toml", nil, true},
		{"stack", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ForFile(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestLoadGraphAllFormats(t *testing.T) {
	for _, file := range []string{"shop.yaml", "shop.json", "shop.cue"} {
		t.Run(file, func(t *testing.T) {
			g, decl, err := LoadGraph(filepath.Join("testdata", file))
			require.NoError(t, err)
			assert.Equal(t, "shop", decl.Metadata.Name)
			assert.Equal(t, "shop", g.Name)

			nodes := g.Nodes()
			require.Len(t, nodes, 3)
			assert.Equal(t, model.NodeID("default/app/web"), nodes[0].ID)
			assert.Equal(t, model.NodeID("default/secret/db-creds"), nodes[1].ID)
			assert.Equal(t, model.NodeID("default/statefulapp/db"), nodes[2].ID)

			web := nodes[0]
			port, ok := web.Properties.Int("port")
			require.True(t, ok)
			assert.Equal(t, int64(80), port)
			assert.Equal(t, []string{"8080:80"}, web.Properties.StringList("port_mapping"))
			assert.True(t, web.Properties.Bool("expose"))
			require.Len(t, web.Attachments, 1)
			assert.Equal(t, model.NodeRef{Kind: model.KindSecret, Namespace: "default", Name: "db-creds"}, web.Attachments[0])
			require.Len(t, web.Relationships, 1)
			assert.Equal(t, model.ConnectsTo, web.Relationships[0].Type)
			assert.Equal(t, map[string]string{"username": "admin", "password": "s3cr3t"}, nodes[1].Properties.StringMap("data"))
		})
	}
}

func TestFormatsBuildIdenticalGraphs(t *testing.T) {
	yamlGraph, _, err := LoadGraph("testdata/shop.yaml")
	require.NoError(t, err)
	for _, file := range []string{"testdata/shop.json", "testdata/shop.cue"} {
		g, _, err := LoadGraph(file)
		require.NoError(t, err)
		assert.Equal(t, yamlGraph.Nodes(), g.Nodes(), file)
	}
}

func TestParseRejectsInvalidDeclarations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "components:\n  - kind: App\n    name: web\n",
			want: "Metadata.Name: field is required",
		},
		{
			name: "no components",
			doc:  "metadata:\n  name: x\n",
			want: "Components: field is required",
		},
		{
			name: "unknown kind",
			doc:  "metadata:\n  name: x\ncomponents:\n  - kind: Lambda\n    name: fn\n",
			want: `unknown component kind "Lambda"`,
		},
		{
			name: "unknown relationship",
			doc:  "metadata:\n  name: x\ncomponents:\n  - kind: App\n    name: a\n    relationships:\n      - type: calls\n        kind: App\n        name: b\n",
			want: `unknown relationship type "calls"`,
		},
		{
			name: "wrong api version",
			doc:  "apiVersion: v2\nmetadata:\n  name: x\ncomponents:\n  - kind: App\n    name: a\n",
			want: "APIVersion: must be",
		},
		{
			name: "unknown field",
			doc:  "metadata:\n  name: x\ncomponents:\n  - kind: App\n    name: a\n    replicas: 2\n",
			want: "field replicas not found",
		},
		{
			name: "empty",
			doc:  "",
			want: "empty document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLParser().Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONParserRejectsUnknownFields(t *testing.T) {
	_, err := NewJSONParser().Parse([]byte(`{"metadata":{"name":"x"},"components":[{"kind":"App","name":"a","image":"x"}]}`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestCUEParserErrors(t *testing.T) {
	_, err := NewCUEParser().Parse([]byte(`metadata: name: "x"` + "\n" + `components: [{kind: "App", name: string}]`))
	assert.ErrorContains(t, err, "not concrete")

	_, err = NewCUEParser().Parse([]byte(`metadata: {`))
	assert.ErrorContains(t, err, "failed to compile")

	_, err = NewCUEParser().Parse([]byte(`port: 80 & 81`))
	assert.Error(t, err)
}

func TestBuildGraphReportsAllErrors(t *testing.T) {
	decl, err := NewYAMLParser().Parse([]byte(strings.Join([]string{
		"metadata:",
		"  name: bad",
		"components:",
		"  - kind: App",
		"    name: web",
		"    properties:",
		"      port: 70000",
		"      colour: blue",
		"  - kind: App",
		"    name: web",
	}, "\n")))
	require.NoError(t, err)

	_, err = BuildGraph(decl)
	require.Error(t, err)

	var propErr *model.InvalidPropertyError
	assert.ErrorAs(t, err, &propErr)
	var dupErr *model.DuplicateNodeError
	assert.ErrorAs(t, err, &dupErr)
	assert.Contains(t, err.Error(), "colour")
	assert.Contains(t, err.Error(), "port")
}

func TestBuildGraphDanglingRelationship(t *testing.T) {
	decl, err := NewYAMLParser().Parse([]byte("metadata:\n  name: x\ncomponents:\n  - kind: App\n    name: a\n    relationships:\n      - type: depends_on\n        kind: App\n        name: ghost\n"))
	require.NoError(t, err)

	_, err = BuildGraph(decl)
	var unknown *model.UnknownNodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, model.NodeID("default/app/ghost"), unknown.ID)
}

func TestNamespaceDefaults(t *testing.T) {
	decl, err := NewYAMLParser().Parse([]byte(strings.Join([]string{
		"metadata:",
		"  name: x",
		"  namespace: shop",
		"components:",
		"  - kind: ConfigMap",
		"    name: settings",
		"  - kind: App",
		"    name: api",
		"    namespace: edge",
		"    attachments:",
		"      - kind: ConfigMap",
		"        name: settings",
		"        namespace: shop",
		"  - kind: App",
		"    name: worker",
		"    attachments:",
		"      - kind: ConfigMap",
		"        name: settings",
	}, "\n")))
	require.NoError(t, err)

	g, err := BuildGraph(decl)
	require.NoError(t, err)
	ids := make([]model.NodeID, 0, g.Len())
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []model.NodeID{"shop/configmap/settings", "edge/app/api", "shop/app/worker"}, ids)
}
