//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/extract"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDimension = 8

var testDB *Client

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, metrics.NewCollector())
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx, testDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// axis returns a unit vector along dimension i.
func axis(i int) []float32 {
	v := make([]float32, testDimension)
	v[i] = 1
	return v
}

func TestInitSchemaRejectsBadDimension(t *testing.T) {
	assert.Error(t, testDB.InitSchema(context.Background(), 0))
}

func TestChunkSearch(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	fileA, fileB := uuid.NewString(), uuid.NewString()
	require.NoError(t, testDB.AddChunks(ctx, []models.Chunk{
		{FileID: fileA, UploadID: "u1", Content: "squats", Position: 0, Embedding: axis(0),
			Metadata: map[string]any{models.MetaFileID: fileA}},
		{FileID: fileA, UploadID: "u1", Content: "lunges", Position: 1, Embedding: axis(1),
			Metadata: map[string]any{models.MetaFileID: fileA}},
		{FileID: fileB, UploadID: "u2", Content: "rows", Position: 0, Embedding: axis(2),
			Metadata: map[string]any{models.MetaFileID: fileB}},
	}))

	t.Run("nearest first", func(t *testing.T) {
		got, err := testDB.SimilaritySearch(ctx, axis(2), 2)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "rows", got[0].Content)
		assert.Equal(t, fileB, got[0].FileID)
		assert.InDelta(t, 1.0, got[0].Score, 0.001)
	})

	t.Run("by file id", func(t *testing.T) {
		got, err := testDB.FindByFileIDs(ctx, []string{fileA}, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].Position)
		assert.Equal(t, 1, got[1].Position)
		assert.Equal(t, fileA, got[0].Metadata[models.MetaFileID])
	})

	t.Run("unknown file", func(t *testing.T) {
		got, err := testDB.FindByFileIDs(ctx, []string{"missing"}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("missing embedding", func(t *testing.T) {
		err := testDB.AddChunks(ctx, []models.Chunk{{FileID: fileA, Content: "x"}})
		assert.Error(t, err)
	})
}

func TestPlanRoundTrip(t *testing.T) {
	ctx := context.Background()

	saved, err := testDB.SavePlan(ctx, models.PlanRecord{
		JobID:    uuid.NewString(),
		Program:  extract.FallbackProgram(),
		Fallback: true,
		FileIDs:  []string{"f1", "f2"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := testDB.GetPlan(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Fallback)
	assert.Equal(t, []string{"f1", "f2"}, got.FileIDs)
	assert.Equal(t, extract.FallbackProgram().ProgramName, got.Program.ProgramName)
	assert.Len(t, got.Program.WorkoutPlan.Schedule, models.MinScheduleDays)

	missing, err := testDB.GetPlan(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPlanUniquePerJob(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.NewString()

	_, err := testDB.SavePlan(ctx, models.PlanRecord{JobID: jobID, Program: extract.FallbackProgram()})
	require.NoError(t, err)

	_, err = testDB.SavePlan(ctx, models.PlanRecord{JobID: jobID, Program: extract.FallbackProgram()})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}
