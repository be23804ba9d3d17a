package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/djeeyo/nmreggae/internal/database"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	content := fmt.Sprintf(`environment: test
logging:
  level: error
database:
  driver: sqlite
  dsn: "file:%s?mode=memory&cache=shared"
  max_open_conns: 1
admin:
  password: hunter2
  jwt_secret: very-secret
`, uuid.NewString())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile, logLevel = "", ""
		importFile, importApply = "", false
		backupOut = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	out, err := execute(t, "config", "--config", writeConfig(t))
	require.NoError(t, err)

	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "very-secret")
}

func TestVersionCommandNeedsNoConfig(t *testing.T) {
	out, err := execute(t, "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestImportDryRunStoresNothing(t *testing.T) {
	cfgPath := writeConfig(t)
	csvPath := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,event_name,city\n2025-07-15,Roots Night,Santa Fe\nnot-a-date,Bad Row,Taos\n"), 0o600))

	out, err := execute(t, "import", "--config", cfgPath, "--file", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Roots Night")
	assert.Contains(t, out, "1 accepted, 1 skipped")
	assert.Contains(t, out, "dry run")
}

func TestImportMissingFile(t *testing.T) {
	_, err := execute(t, "import", "--config", writeConfig(t), "--file", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open CSV file")
}

func TestScheduledBackupJob(t *testing.T) {
	previous := cfg
	t.Cleanup(func() { cfg = previous })

	backupDir := filepath.Join(t.TempDir(), "backups")
	cfg = config.Config{
		DB: config.DatabaseConfig{
			Driver:       database.DriverSQLite,
			DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			MaxOpenConns: 1,
		},
		Calendar: config.CalendarConfig{Timezone: "America/Denver", WindowMonths: 6},
		Backup:   config.BackupConfig{Dir: backupDir, Interval: time.Hour},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApplication(ctx, cfg)
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, database.Migrate(app.db))

	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	require.NoError(t, scheduleJobs(ctx, scheduler, app))
	scheduler.Start()
	defer scheduler.Shutdown()

	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(backupDir)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
