package generator

import (
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withobsrvr/stackctl/internal/model"
)

func TestTerraformModule(t *testing.T) {
	files := generate(t, shopStack(t), model.Terraform, model.TranslationOptions{})
	main := files["terraform/main.tf"]

	assert.Contains(t, main, `source = "hashicorp/kubernetes"`)
	assert.Contains(t, main, `provider "kubernetes"`)
	assert.Contains(t, main, "config_path = var.kubeconfig")
	for _, label := range []string{
		"default_secret_db_creds_secretstore",
		"default_statefulapp_db_workload",
		"default_statefulapp_db_networkservice",
		"default_app_web_workload",
		"default_app_web_networkservice",
	} {
		assert.Contains(t, main, `resource "kubernetes_manifest" "`+label+`"`)
	}
	assert.Contains(t, main, "kubernetes_manifest.default_secret_db_creds_secretstore")
	assert.NotContains(t, main, "8080", "compose-only port mapping is excluded")

	// resources appear in record order
	assert.Less(t,
		strings.Index(main, `"default_secret_db_creds_secretstore"`),
		strings.Index(main, `"default_app_web_workload"`))

	for name, src := range map[string]string{"main.tf": main, "variables.tf": files["terraform/variables.tf"]} {
		_, diags := hclsyntax.ParseConfig([]byte(src), name, hcl.InitialPos)
		assert.False(t, diags.HasErrors(), "%s: %s", name, diags.Error())
	}
}

func TestTerraformNamespaceDependencies(t *testing.T) {
	g := model.New("ns")
	api, _ := g.AddNode(model.KindApp, "api", "payments")
	require.NoError(t, g.SetProperty(api, "image", "api:1"))

	main := generate(t, g, model.Terraform, model.TranslationOptions{CreateNamespaces: true})["terraform/main.tf"]
	assert.Contains(t, main, `resource "kubernetes_manifest" "namespace_payments"`)
	assert.Contains(t, main, "kubernetes_manifest.namespace_payments")
}

func TestTerraformLabelsAreUnique(t *testing.T) {
	g := model.New("labels")
	first, _ := g.AddNode(model.KindConfigMap, "c", "a-configmap-b")
	require.NoError(t, g.SetProperty(first, "data", map[string]any{"K": "1"}))
	second, _ := g.AddNode(model.KindConfigMap, "b-configmap-c", "a")
	require.NoError(t, g.SetProperty(second, "data", map[string]any{"K": "2"}))
	api, _ := g.AddNode(model.KindApp, "api", "a")
	require.NoError(t, g.SetProperty(api, "image", "api:1"))
	require.NoError(t, g.Attach(api, model.NodeRef{Kind: model.KindConfigMap, Namespace: "a", Name: "b-configmap-c"}))

	main := generate(t, g, model.Terraform, model.TranslationOptions{})["terraform/main.tf"]
	file, diags := hclsyntax.ParseConfig([]byte(main), "main.tf", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())

	// resource label -> namespace/name of its manifest
	owners := map[string]string{}
	var apiDeps []string
	for _, block := range file.Body.(*hclsyntax.Body).Blocks {
		if block.Type != "resource" {
			continue
		}
		label := block.Labels[1]
		_, dup := owners[label]
		require.False(t, dup, "label %s declared twice", label)

		manifest, diags := block.Body.Attributes["manifest"].Expr.Value(nil)
		require.False(t, diags.HasErrors(), diags.Error())
		meta := manifest.GetAttr("metadata")
		owners[label] = meta.GetAttr("namespace").AsString() + "/" + meta.GetAttr("name").AsString()

		if manifest.GetAttr("kind").AsString() != "Deployment" {
			continue
		}
		deps, ok := block.Body.Attributes["depends_on"]
		require.True(t, ok)
		exprs, diags := hcl.ExprList(deps.Expr)
		require.False(t, diags.HasErrors(), diags.Error())
		for _, e := range exprs {
			traversal, diags := hcl.AbsTraversalForExpr(e)
			require.False(t, diags.HasErrors(), diags.Error())
			apiDeps = append(apiDeps, traversal[1].(hcl.TraverseAttr).Name)
		}
	}

	assert.Equal(t, "a-configmap-b/c", owners["a_configmap_b_configmap_c_configstore"], "first record keeps the plain label")
	require.Len(t, apiDeps, 1)
	assert.Equal(t, "a/b-configmap-c", owners[apiDeps[0]], "dependency points at the attached config map")
	assert.True(t, strings.HasPrefix(apiDeps[0], "a_configmap_b_configmap_c_configstore_"))

	again := generate(t, g, model.Terraform, model.TranslationOptions{})["terraform/main.tf"]
	assert.Equal(t, main, again)
}

func TestLabelAllocator(t *testing.T) {
	alloc := newLabelAllocator()
	assert.Equal(t, "x_y", alloc.label("x/y"))
	hashed := alloc.label("x-y")
	assert.NotEqual(t, "x_y", hashed)
	assert.True(t, strings.HasPrefix(hashed, "x_y_"))
	third := alloc.label("x#y")
	assert.NotContains(t, []string{"x_y", hashed}, third)

	replay := newLabelAllocator()
	assert.Equal(t, []string{"x_y", hashed, third},
		[]string{replay.label("x/y"), replay.label("x-y"), replay.label("x#y")})
}
