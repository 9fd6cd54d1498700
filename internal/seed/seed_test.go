package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrika/internal/store/memory"
)

const sample = `
owner: demo
endpoints:
  - name: users
    method: post
    fields:
      - name: name
        type: varchar
        required: true
      - name: status
        type: VARCHAR
        default: active
  - name: tasks
    fields:
      - name: done
        type: boolean
`

func writeSeed(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "demo.yaml", sample)
	writeSeed(t, dir, "ignored.txt", "not yaml")

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, Apply(ctx, st, dir))

	owner, err := st.EnsureOwner(ctx, "demo", "")
	require.NoError(t, err)

	ep, err := st.ResolveEndpoint(ctx, owner.ID, "users")
	require.NoError(t, err)
	require.Len(t, ep.Fields, 2)
	assert.True(t, ep.Fields[0].Required)
	require.NotNil(t, ep.Fields[1].Default)
	assert.Equal(t, "active", *ep.Fields[1].Default)

	_, err = st.ResolveEndpoint(ctx, owner.ID, "tasks")
	assert.NoError(t, err)
}

func TestApplyIsAdditive(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "demo.yaml", sample)

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, Apply(ctx, st, dir))
	// повторный запуск (рестарт сервера) ничего не ломает и не дублирует
	require.NoError(t, Apply(ctx, st, dir))

	owner, err := st.EnsureOwner(ctx, "demo", "")
	require.NoError(t, err)
	eps, err := st.ListEndpoints(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, eps, 2)
}

func TestApplyMissingDirIsFine(t *testing.T) {
	st := memory.New()
	assert.NoError(t, Apply(context.Background(), st, "no/such/dir"))
}

func TestApplyRejectsBadDefinitions(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	dir := t.TempDir()
	writeSeed(t, dir, "bad.yaml", `
owner: demo
endpoints:
  - name: broken
    fields:
      - name: geo
        type: GEOMETRY
`)
	err := Apply(ctx, st, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	dir2 := t.TempDir()
	writeSeed(t, dir2, "noowner.yaml", `
endpoints:
  - name: x
`)
	assert.Error(t, Apply(ctx, st, dir2))
}
