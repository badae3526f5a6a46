package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/testutil"
)

// setupWorkspace isolates a test from the caller's config, .env files and
// ABR_* environment.
func setupWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"ABR_DB_PATH", "ABR_OUTPUT_DIR", "ABR_LOG_LEVEL", "ABR_CURRENCY",
		"ABR_PORT", "ABR_CONFIDENCE", "ABR_VARIANTS", "ABR_TOKEN_TTL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", filepath.Join(dir, "abr.db")}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writeExposureCSV(t *testing.T, path string, groups []string, n int, conversions []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, experiment.WriteCSV(f, testutil.Visitors(groups, n, conversions)))
}

func TestAnalyze_File(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 100, []int{10, 15})

	outDir := filepath.Join(dir, "outputs")
	reportPath := filepath.Join(dir, "REPORT.md")
	out, err := run(t, dir, "analyze", "--file", csvPath, "--out", outDir, "--markdown", "--report", reportPath)
	require.NoError(t, err)

	for _, name := range []string{"groups.csv", "daily.csv", "segments.csv", "significance.csv"} {
		assert.FileExists(t, filepath.Join(outDir, biExportsDir, name))
	}
	assert.FileExists(t, filepath.Join(outDir, reportJSONFile))

	md, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# A/B Test Results: E-commerce experiment")
	assert.Contains(t, string(md), "Lift (B vs A)")

	groups, err := os.ReadFile(filepath.Join(outDir, biExportsDir, "groups.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(groups), "group,visitors,conversions,revenue,cr,rpv,cr_low,cr_high\n"))

	assert.Contains(t, out, "EXPERIMENT: ab_data")
	assert.Contains(t, out, "10.00%")
	assert.Contains(t, out, "15.00%")
}

func TestAnalyze_StoredMatchesFileDailyDates(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	data := "visitor_id,group,segment,exposed_at,converted,converted_at,revenue\n" +
		"a1,A,SP,2017-08-01T08:00:00-03:00,1,2017-08-01T23:30:00-03:00,10\n" +
		"a2,A,SP,2017-08-01T08:00:00-03:00,0,,0\n" +
		"b1,B,RJ,2017-08-01T08:00:00-03:00,1,2017-08-02T22:00:00-03:00,5\n" +
		"b2,B,RJ,2017-08-01T08:00:00-03:00,0,,0\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))

	fileOut := filepath.Join(dir, "from-file")
	_, err := run(t, dir, "analyze", "--file", csvPath, "--out", fileOut, "--quiet")
	require.NoError(t, err)

	_, err = run(t, dir, "import", "checkout", "--file", csvPath)
	require.NoError(t, err)
	storeOut := filepath.Join(dir, "from-store")
	_, err = run(t, dir, "analyze", "checkout", "--out", storeOut, "--quiet")
	require.NoError(t, err)

	fromFile, err := os.ReadFile(filepath.Join(fileOut, biExportsDir, "daily.csv"))
	require.NoError(t, err)
	fromStore, err := os.ReadFile(filepath.Join(storeOut, biExportsDir, "daily.csv"))
	require.NoError(t, err)

	assert.Contains(t, string(fromFile), "2017-08-01,A,")
	assert.Contains(t, string(fromFile), "2017-08-02,B,")
	assert.Equal(t, string(fromFile), string(fromStore))
}

func TestAnalyze_SchemaError(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "C"}, 2, []int{0, 0})

	_, err := run(t, dir, "analyze", "--file", csvPath, "--variants", "A,B", "--quiet")
	require.Error(t, err)

	var schemaErr *experiment.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"group"}, schemaErr.FieldNames())
	assert.NoDirExists(t, filepath.Join(dir, "outputs"))
}

func TestAnalyze_MissingFile(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := run(t, dir, "analyze", "--file", filepath.Join(dir, "missing.csv"))
	assert.ErrorContains(t, err, "failed to open")
}

func TestImportListResults(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 1500, []int{150, 180})

	out, err := run(t, dir, "import", "checkout", "--file", csvPath, "--variants", "A,B")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3000 visitors into experiment 'checkout'")

	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "checkout")
	assert.Contains(t, out, "RUNNING")
	assert.Contains(t, out, "3,000")

	out, err = run(t, dir, "results", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "STATE: running")
	assert.Contains(t, out, "EXPERIMENT: checkout")
	assert.Contains(t, out, "Lift (B vs A)")

	_, err = run(t, dir, "analyze", "checkout", "--out", filepath.Join(dir, "stored"), "--quiet")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "stored", reportJSONFile))
}

func TestImport_Duplicate(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 10, []int{1, 2})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath)
	require.NoError(t, err)

	_, err = run(t, dir, "import", "checkout", "--file", csvPath)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, dir, "import", "checkout", "--file", csvPath, "--replace")
	assert.NoError(t, err)
}

func TestImport_RejectsUndeclaredGroup(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "C"}, 2, []int{0, 0})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath, "--variants", "A,B")
	var schemaErr *experiment.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	out, err := run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No experiments yet.")
}

func TestResults_NotFound(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := run(t, dir, "results", "nonexistent")
	assert.EqualError(t, err, "experiment 'nonexistent' not found")
}

func TestExport(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 3, []int{1, 0})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath)
	require.NoError(t, err)

	out, err := run(t, dir, "export", "checkout", "--format", "csv")
	require.NoError(t, err)
	records, err := experiment.ReadCSV(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.Equal(t, "A-000", records[0].VisitorID)
	assert.True(t, records[0].Converted)

	out, err = run(t, dir, "export", "checkout", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"experiment": "checkout"`)
	assert.Contains(t, out, `"visitor_id": "B-002"`)

	_, err = run(t, dir, "export", "checkout", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestConclude(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 100, []int{10, 11})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath, "--variants", "A,B")
	require.NoError(t, err)

	_, err = run(t, dir, "conclude", "checkout", "--variant", "Z")
	assert.ErrorContains(t, err, `invalid variant "Z"`)

	out, err := run(t, dir, "conclude", "checkout", "--variant", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "Declared winner for experiment 'checkout': B")
	assert.Contains(t, out, "not statistically significant")

	_, err = run(t, dir, "conclude", "checkout", "--variant", "A")
	assert.ErrorContains(t, err, "not running")

	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")
}

func TestReopen(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 10, []int{1, 2})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath, "--variants", "A,B")
	require.NoError(t, err)

	_, err = run(t, dir, "reopen", "checkout")
	assert.ErrorContains(t, err, "already running")

	_, err = run(t, dir, "conclude", "checkout", "--variant", "B")
	require.NoError(t, err)

	out, err := run(t, dir, "reopen", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Reopened experiment 'checkout'")

	out, err = run(t, dir, "results", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "STATE: running")
	assert.NotContains(t, out, "WINNER:")

	_, err = run(t, dir, "conclude", "checkout", "--variant", "A")
	assert.NoError(t, err)

	_, err = run(t, dir, "reopen", "nonexistent")
	assert.EqualError(t, err, "experiment 'nonexistent' not found")
}

func TestDelete(t *testing.T) {
	dir := setupWorkspace(t)
	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 3, []int{0, 0})

	_, err := run(t, dir, "import", "checkout", "--file", csvPath)
	require.NoError(t, err)

	out, err := run(t, dir, "delete", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted experiment 'checkout'")

	_, err = run(t, dir, "delete", "checkout")
	assert.EqualError(t, err, "experiment 'checkout' not found")
}

func TestIngestThenBuild(t *testing.T) {
	dir := setupWorkspace(t)
	raw := filepath.Join(dir, "data", "raw", "olist")
	require.NoError(t, os.MkdirAll(raw, 0o755))

	files := map[string]string{
		experiment.OlistOrdersFile: "order_id,customer_id,order_status,order_purchase_timestamp\n" +
			"o1,c1,delivered,2017-08-03 10:00:00\n" +
			"o2,c2,delivered,2017-07-15 09:00:00\n" +
			"o3,c1,delivered,2017-08-20 11:00:00\n",
		experiment.OlistPaymentsFile: "order_id,payment_value\n" +
			"o1,30\n" +
			"o1,20.5\n" +
			"o2,20\n" +
			"o3,10\n",
		experiment.OlistCustomersFile: "customer_id,customer_unique_id,customer_city,customer_state\n" +
			"c1,u1,sao paulo,SP\n" +
			"c2,u2,rio de janeiro,RJ\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(raw, name), []byte(body), 0o644))
	}

	out, err := run(t, dir, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "with 3 rows")
	assert.FileExists(t, filepath.Join(dir, "data", "processed", "orders_enriched.csv"))

	_, err = run(t, dir, "build")
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "data", "ab_data.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := experiment.ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]experiment.VisitorRecord)
	for _, r := range records {
		byID[r.VisitorID] = r
	}
	assert.True(t, byID["u1"].Converted)
	assert.Equal(t, 60.5, byID["u1"].Revenue)
	assert.False(t, byID["u2"].Converted)

	_, err = run(t, dir, "ingest", "--raw", filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "failed to open")
}

func TestBuild(t *testing.T) {
	dir := setupWorkspace(t)
	ordersPath := filepath.Join(dir, "orders.csv")
	orders := "customer_unique_id,customer_state,order_purchase_timestamp,order_revenue\n" +
		"c1,SP,2017-08-03 10:00:00,50.5\n" +
		"c2,RJ,2017-07-15 09:00:00,20\n" +
		"c1,SP,2017-08-20 11:00:00,10\n" +
		"c3,MG,2017-08-31 23:59:59,5\n" +
		"c4,SP,2017-09-01 00:00:00,99\n"
	require.NoError(t, os.WriteFile(ordersPath, []byte(orders), 0o644))

	outPath := filepath.Join(dir, "data", "ab_data.csv")
	_, err := run(t, dir, "build", "--orders", ordersPath, "--out", outPath, "--seed", "7")
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := experiment.ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, records, 4)

	byID := make(map[string]experiment.VisitorRecord)
	for _, r := range records {
		byID[r.VisitorID] = r
		assert.Contains(t, []string{"A", "B"}, r.Group)
	}
	assert.True(t, byID["c1"].Converted)
	assert.InDelta(t, 60.5, byID["c1"].Revenue, 1e-9)
	assert.False(t, byID["c2"].Converted)
	assert.True(t, byID["c3"].Converted)
	assert.False(t, byID["c4"].Converted)

	// same seed, same table
	again, err := run(t, dir, "build", "--orders", ordersPath, "--out", "-", "--seed", "7")
	require.NoError(t, err)
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), again)
}

func TestOTP(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := run(t, dir, "otp")
	assert.ErrorContains(t, err, "no server running")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".abr-token"), []byte("a1b2c3d4"), 0o600))
	out, err := run(t, dir, "otp")
	require.NoError(t, err)
	assert.Contains(t, out, "Current dashboard token: a1b2c3d4")
	assert.Contains(t, out, "http://localhost:8080/dashboard?token=a1b2c3d4")
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abr.yaml"),
		[]byte("confidence: 0.9\nreport:\n  title: Checkout redesign\n"), 0o644))

	csvPath := filepath.Join(dir, "ab_data.csv")
	writeExposureCSV(t, csvPath, []string{"A", "B"}, 50, []int{5, 6})

	out, err := run(t, dir, "analyze", "--file", csvPath, "--markdown", "--report", "REPORT.md")
	require.NoError(t, err)
	assert.Contains(t, out, "90% CI")

	md, err := os.ReadFile(filepath.Join(dir, "REPORT.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# A/B Test Results: Checkout redesign")
	assert.FileExists(t, filepath.Join(dir, "outputs", reportJSONFile))

	_, err = run(t, dir, "list", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}
