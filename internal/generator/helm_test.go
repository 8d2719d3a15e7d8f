package generator

import (
	"strconv"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/model"
)

func TestHelmChartLayout(t *testing.T) {
	files := generate(t, shopStack(t), model.Helm, model.TranslationOptions{ProjectName: "Shop", ChartVersion: "1.2.3"})

	var paths []string
	for p := range files {
		paths = append(paths, p)
	}
	assert.ElementsMatch(t, []string{
		"helm/Chart.yaml",
		"helm/values.yaml",
		"helm/templates/secret-db-creds.yaml",
		"helm/templates/statefulset-db.yaml",
		"helm/templates/service-db.yaml",
		"helm/templates/deployment-web.yaml",
		"helm/templates/service-web.yaml",
	}, paths)

	var chart map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(files["helm/Chart.yaml"]), &chart))
	assert.Equal(t, "v2", chart["apiVersion"])
	assert.Equal(t, "shop", chart["name"])
	assert.Equal(t, "1.2.3", chart["version"])
	assert.Equal(t, "1.0.0", chart["appVersion"])
}

func TestHelmLiftsConfigurableFields(t *testing.T) {
	files := generate(t, shopStack(t), model.Helm, model.TranslationOptions{})

	var values map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(files["helm/values.yaml"]), &values))
	assert.Equal(t, map[string]interface{}{
		"image":    "nginx:1.21",
		"replicas": 2,
		"cpu":      "250m",
		"memory":   "256Mi",
	}, values["web"])
	assert.Equal(t, map[string]interface{}{
		"image":   "postgres:16",
		"storage": "1Gi",
	}, values["db"])

	web := files["helm/templates/deployment-web.yaml"]
	assert.Contains(t, web, "image: {{ .Values.web.image | quote }}")
	assert.Contains(t, web, "replicas: {{ .Values.web.replicas }}")
	assert.Contains(t, web, "cpu: {{ .Values.web.cpu | quote }}")
	assert.NotContains(t, web, "nginx:1.21")

	db := files["helm/templates/statefulset-db.yaml"]
	assert.Contains(t, db, "storage: {{ .Values.db.storage | quote }}")
	assert.Contains(t, db, "replicas: 1", "unset replicas are not configurable")

	assert.NotContains(t, files["helm/templates/secret-db-creds.yaml"], "{{")
}

func TestHelmKeepsLiteralTemplateDelimiters(t *testing.T) {
	g := model.New("alerts")
	cm, _ := g.AddNode(model.KindConfigMap, "alerts", "")
	require.NoError(t, g.SetProperty(cm, "data", map[string]any{"rule": "{{ .Labels.instance }} down"}))

	src := generate(t, g, model.Helm, model.TranslationOptions{})["helm/templates/configmap-alerts.yaml"]
	require.NotEmpty(t, src)

	// render the way helm does, with the quote helper the templates use
	tpl, err := template.New("configmap").Funcs(template.FuncMap{"quote": strconv.Quote}).Parse(src)
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, tpl.Execute(&out, map[string]any{"Values": map[string]any{}}))

	var rendered map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out.String()), &rendered))
	assert.Equal(t, "{{ .Labels.instance }} down", dig(t, rendered, "data", "rule"))
}

func TestHelmMatchesKubernetesObjects(t *testing.T) {
	records := lower(t, shopStack(t))
	opts := model.TranslationOptions{ResourcePrefix: "shop"}.WithDefaults()

	plain, err := newObjectBuilder(opts, literal).build(records)
	require.NoError(t, err)
	templated, err := newObjectBuilder(opts, newValuesTable(records).param).build(records)
	require.NoError(t, err)

	require.Len(t, templated, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i].Kind, templated[i].Kind)
		assert.Equal(t, plain[i].Name, templated[i].Name)
		assert.Equal(t, plain[i].Namespace, templated[i].Namespace)
		assert.Equal(t, plain[i].Content["metadata"], templated[i].Content["metadata"])
	}
}

func TestValuesKeysAreUnique(t *testing.T) {
	records := []ir.Record{
		{ID: "a/app/web#Workload", SourceKind: model.KindApp, Name: "web", Namespace: "a", Configurable: []string{"image"}},
		{ID: "a/cronjob/web#ScheduledTask", SourceKind: model.KindCronJob, Name: "web", Namespace: "a", Configurable: []string{"schedule"}},
		{ID: "b/app/web#Workload", SourceKind: model.KindApp, Name: "web", Namespace: "b", Configurable: []string{"image"}},
		{ID: "a/app/api-gw#Workload", SourceKind: model.KindApp, Name: "api-gw", Namespace: "a", Configurable: []string{"image"}},
	}
	table := newValuesTable(records)
	assert.Equal(t, map[string]string{
		"a/app/web#Workload":          "web",
		"a/cronjob/web#ScheduledTask": "webCronJob",
		"b/app/web#Workload":          "webApp",
		"a/app/api-gw#Workload":       "apiGw",
	}, table.keys)
}
