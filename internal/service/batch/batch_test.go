package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mholen/hvacctl/internal/actuator/fake"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/domain/plan"
	"github.com/mholen/hvacctl/internal/service/executor"
)

// writeOperations dumps a JSON document into a temp file.
func writeOperations(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "operations.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestLoadOperationsBareList verifies the bare-list file shape.
func TestLoadOperationsBareList(t *testing.T) {
	t.Parallel()

	path := writeOperations(t, `[
		{"action": "force", "point": "fan", "value": "100"},
		{"action": "unforce", "point": "damper"}
	]`)

	operations, err := LoadOperations(path)
	require.NoError(t, err)
	require.Len(t, operations, 2)
	require.Equal(t, plan.OpForce, operations[0].Operation)
	require.Equal(t, "fan", operations[0].Point)
	require.NotNil(t, operations[0].Value)
	require.Equal(t, "100", *operations[0].Value)
	require.Equal(t, plan.OpUnforce, operations[1].Operation)
	require.Nil(t, operations[1].Value)
}

// TestLoadOperationsWrappedObject verifies the object file shape with an
// "operations" list.
func TestLoadOperationsWrappedObject(t *testing.T) {
	t.Parallel()

	path := writeOperations(t, `{"operations": [
		{"action": "read", "point": "RT40"}
	]}`)

	operations, err := LoadOperations(path)
	require.NoError(t, err)
	require.Len(t, operations, 1)
	require.Equal(t, plan.OpRead, operations[0].Operation)
}

// TestLoadOperationsErrors covers missing files and undecodable documents.
func TestLoadOperationsErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadOperations(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)

	_, err = LoadOperations(writeOperations(t, "not json"))
	require.Error(t, err)
}

// TestRunSucceeds verifies a clean batch returns nil.
func TestRunSucceeds(t *testing.T) {
	t.Parallel()

	act := fake.New()
	operations := []plan.ActionSpec{
		{Operation: plan.OpForce, Point: "fan", Value: strPtr("100")},
		{Operation: plan.OpRead, Point: "fan"},
	}

	err := Run(context.Background(), act, operations, executor.RetryOptions{
		Attempts:    2,
		BaseBackoff: time.Millisecond,
	}, audit.Discard())
	require.NoError(t, err)

	forced, ok := act.ForcedValue("fan")
	require.True(t, ok)
	require.Equal(t, "100", forced)
}

// TestRunReportsFailure verifies exhausted retries surface as
// ErrOperationsFailed while later operations still run.
func TestRunReportsFailure(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.FailPoint("fan", "force rejected")

	operations := []plan.ActionSpec{
		{Operation: plan.OpForce, Point: "fan", Value: strPtr("100")},
		{Operation: plan.OpForce, Point: "damper", Value: strPtr("50")},
	}

	err := Run(context.Background(), act, operations, executor.RetryOptions{
		Attempts:    2,
		BaseBackoff: time.Millisecond,
	}, audit.Discard())
	require.ErrorIs(t, err, ErrOperationsFailed)

	_, ok := act.ForcedValue("damper")
	require.True(t, ok, "later operations must still run")
}

func strPtr(s string) *string {
	return &s
}
