package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"apexintel/internal/core/app"
	"apexintel/internal/core/config"
	"apexintel/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestWorkspace(t *testing.T, tmpDir string) {
	accountCls := `public class Account {
	public String name;

	public String getName() {
		return name;
	}
}`
	err := os.WriteFile(filepath.Join(tmpDir, "Account.cls"), []byte(accountCls), 0644)
	require.NoError(t, err)

	serviceCls := `public class AccountService {
	public Account load() {
		Account a = new Account();
		return a;
	}
}`
	err = os.WriteFile(filepath.Join(tmpDir, "AccountService.cls"), []byte(serviceCls), 0644)
	require.NoError(t, err)

	// Excluded directory contents must never reach the graph.
	err = os.MkdirAll(filepath.Join(tmpDir, "node_modules", "pkg"), 0755)
	require.NoError(t, err)
	hiddenCls := `public class Hidden {}`
	err = os.WriteFile(filepath.Join(tmpDir, "node_modules", "pkg", "Hidden.cls"), []byte(hiddenCls), 0644)
	require.NoError(t, err)

	readme := `not apex`
	err = os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte(readme), 0644)
	require.NoError(t, err)
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestWorkspace(t, tmpDir)

	cfg := config.Default()
	cfg.Workspace.Roots = []string{tmpDir}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = filepath.Join(tmpDir, "state", "documents.db")
	cfg.Scheduler.Workers = 2
	cfg.Scheduler.TaskTimeout = 5 * time.Second

	a, err := app.New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	found, err := a.InitialScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, found)

	accountPath := filepath.Join(tmpDir, "Account.cls")
	servicePath := filepath.Join(tmpDir, "AccountService.cls")

	state, err := a.Resolve(ctx, servicePath, resolver.DetailFull)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateCrossFileResolved, state.State)

	// Both classes in the graph, the excluded one absent.
	assert.Len(t, a.Query("Account"), 1)
	assert.Len(t, a.Query("AccountService"), 1)
	assert.Empty(t, a.Query("Hidden"))

	// The service references Account across files.
	assert.NotEmpty(t, a.Usages("Account"))

	// Simulate a watcher-reported edit: Account gains a subclass.
	personCls := `public class PersonAccount extends Account {
	public String email;
}`
	personPath := filepath.Join(tmpDir, "PersonAccount.cls")
	require.NoError(t, os.WriteFile(personPath, []byte(personCls), 0644))
	a.HandleFileChanges(ctx, []string{personPath})

	state, err = a.Resolve(ctx, personPath, resolver.DetailFull)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateCrossFileResolved, state.State)

	subs := a.Subtypes("Account")
	require.Len(t, subs, 1)
	assert.Equal(t, "PersonAccount", subs[0].Name)

	// A watcher-reported deletion drops the file's symbols.
	require.NoError(t, os.Remove(personPath))
	a.HandleFileChanges(ctx, []string{personPath})
	assert.Empty(t, a.Query("PersonAccount"))

	// The scan stored documents in sqlite, surviving an app restart.
	require.NoError(t, a.Close(ctx))

	reopened, err := app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, reopened.Start(ctx))
	t.Cleanup(func() { _ = reopened.Close(context.Background()) })

	doc, err := reopened.Store.GetDocument(app.NormalizeURI(accountPath))
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "class Account")
}
