package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmantele/vollt-uws/internal/config"
	"github.com/gmantele/vollt-uws/internal/joblist"
	"github.com/gmantele/vollt-uws/internal/logging"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

func TestBuildCLIRegistersSubcommands(t *testing.T) {
	root := BuildCLI()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["status"])
	assert.True(t, names["submit"])
}

func TestBuildServiceRegistersConfiguredLists(t *testing.T) {
	cfg := &config.Config{
		Lists: []config.ListConfig{
			{Name: "results", Policy: "delete", MaxRunning: 2},
			{Name: "archive", Policy: "always_archive"},
		},
	}
	logger := logging.NewSlogLogger(nil)
	svc, collector := BuildService(cfg, logger)

	assert.Nil(t, collector)
	assert.ElementsMatch(t, []string{"results", "archive"}, svc.ListNames())

	l := svc.JobList("results")
	require.NotNil(t, l)
}

func TestBuildServiceWiresControllersFromConfig(t *testing.T) {
	cfg := &config.Config{
		Lists: []config.ListConfig{
			{
				Name:                       "results",
				DefaultExecutionDuration:   "300s",
				MaxExecutionDuration:       "3600s",
				DefaultDestructionInterval: "24h",
				MaxDestructionInterval:     "168h",
			},
		},
	}
	logger := logging.NewSlogLogger(nil)
	svc, _ := BuildService(cfg, logger)

	l := svc.JobList("results")
	require.NotNil(t, l)

	job, err := l.NewJob(uws.JobConfig{RunID: "r1"})
	require.NoError(t, err)

	assert.Equal(t, int64(300), job.ExecutionDuration())
	assert.False(t, job.DestructionTime().IsZero())
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, joblist.AlwaysDelete, parsePolicy("delete"))
	assert.Equal(t, joblist.ArchiveOnDate, parsePolicy("archive_on_date"))
	assert.Equal(t, joblist.AlwaysArchive, parsePolicy("always_archive"))
	assert.Equal(t, joblist.AlwaysDelete, parsePolicy("unknown"))
}
