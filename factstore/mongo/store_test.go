package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	testMongoClient    *mongodriver.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, MongoDB tests will be skipped: %v\n", containerErr)
		skipMongoTests = true
	} else if err := connectTestMongo(ctx); err != nil {
		fmt.Printf("Failed to connect to MongoDB: %v\n", err)
		skipMongoTests = true
	}

	code := m.Run()

	if testMongoClient != nil {
		_ = testMongoClient.Disconnect(ctx)
	}
	if testMongoContainer != nil {
		_ = testMongoContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func connectTestMongo(ctx context.Context) error {
	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		return err
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		return err
	}
	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	return testMongoClient.Ping(ctx, nil)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	ctx := context.Background()
	st, err := New(ctx, Options{Client: testMongoClient, Database: "factstore_test", Collection: t.Name()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Cleanup(context.Background()) })
	return st
}

func TestNewRequiresClientAndDatabase(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
	_, err = New(context.Background(), Options{Database: "x"})
	require.Error(t, err)
}

func TestGetFactMissingReturnsFalse(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.GetFact(context.Background(), "status", "rover1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetFactThenGetFactReturnsMostRecent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetFact(ctx, "status", "rover1", "docked"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.SetFact(ctx, "status", "rover1", "available"))

	v, ok, err := st.GetFact(ctx, "status", "rover1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "available", v)
}

func TestGetFactAtReturnsHistoricalValue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetFact(ctx, "status", "rover1", "docked"))
	cutover := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.SetFact(ctx, "status", "rover1", "available"))

	v, ok, err := st.GetFactAt(ctx, "status", "rover1", cutover)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "docked", v)
}
