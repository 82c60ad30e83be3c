package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewledger/internal/adapter/driven/memory"
	"github.com/ericfisherdev/reviewledger/internal/adapter/driving/contract"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/bootstrap"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// mapCredentials is an in-memory CredentialStore.
type mapCredentials struct {
	values map[model.CredentialKey]string
}

func (m *mapCredentials) Set(_ context.Context, key model.CredentialKey, plaintext string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	m.values[key] = plaintext
	return nil
}

func (m *mapCredentials) Get(_ context.Context, key model.CredentialKey) (string, error) {
	return m.values[key], nil
}

func (m *mapCredentials) Resolve(_ context.Context, key model.CredentialKey) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return m.values[key.Global()], nil
}

func (m *mapCredentials) List(context.Context) ([]model.Credential, error) {
	var out []model.Credential
	for key, value := range m.values {
		out = append(out, model.Credential{Key: key, Value: value, UpdatedAt: time.Unix(0, 0)})
	}
	return out, nil
}

func (m *mapCredentials) Delete(_ context.Context, key model.CredentialKey) error {
	delete(m.values, key)
	return nil
}

type testEnv struct {
	store  *memory.Store
	creds  *mapCredentials
	closed int
}

func newTestEnv() *testEnv {
	return &testEnv{store: memory.NewStore(), creds: &mapCredentials{values: map[model.CredentialKey]string{}}}
}

func (e *testEnv) opener(withCreds bool) appOpener {
	return func(context.Context) (*app, error) {
		svc := application.NewLedgerService(e.store)
		a := &app{
			ledger:   svc,
			contract: contract.New(svc),
			close: func() error {
				e.closed++
				return nil
			},
		}
		if withCreds {
			a.creds = e.creds
		}
		return a, nil
	}
}

func run(t *testing.T, open appOpener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRecordQueryHistory(t *testing.T) {
	env := newTestEnv()
	open := env.opener(false)

	out, err := run(t, open, "record", "R1", "abc123", "alice", "pending", "--timestamp", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	doc := `{"reviewId":"R1","commitId":"abc123","reviewer":"alice","timestamp":"2024-01-01T00:00:00Z","status":"pending","type":"review"}`
	assert.Equal(t, doc+"\n", out)

	out, err = run(t, open, "query", "R1")
	require.NoError(t, err)
	assert.Equal(t, doc+"\n", out)

	_, err = run(t, open, "update-status", "R1", "approved")
	require.NoError(t, err)

	out, err = run(t, open, "history", "R1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"reviewId":"R1"`))
	assert.Contains(t, out, `"status":"approved"`)

	out, err = run(t, open, "history", "R1", "--table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "VERSION"))
	assert.Contains(t, lines[2], "approved")

	assert.Equal(t, 5, env.closed)
}

func TestRecord_DefaultTimestamp(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(false), "record", "R1", "abc123", "alice", "pending")
	require.NoError(t, err)

	rec, err := application.NewLedgerService(env.store).GetReview(context.Background(), "R1")
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, rec.Timestamp)
	assert.NoError(t, err)
}

func TestQuery_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(false), "query", "R9")

	require.Error(t, err)
	assert.Equal(t, "Review R9 does not exist", err.Error())
}

func TestRecord_InvalidUTF8(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(false), "record", "R\xff", "abc123", "al\xfeice", "pending")
	require.ErrorIs(t, err, model.ErrInvalidField)

	_, err = run(t, env.opener(false), "invoke", "recordReview", "R\xff", "abc123", "alice", "t", "pending")
	require.ErrorIs(t, err, model.ErrInvalidField)

	entries, err := env.store.Entries(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArgsValidated(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(false), "record", "R1", "abc123")
	assert.Error(t, err)
	assert.Equal(t, 0, env.closed, "store must not be opened for invalid args")
}

func TestVerifyAndLog(t *testing.T) {
	env := newTestEnv()
	open := env.opener(false)
	_, err := run(t, open, "record", "R1", "abc123", "alice", "pending", "--timestamp", "t")
	require.NoError(t, err)
	_, err = run(t, open, "record", "R2", "def456", "bob", "approved", "--timestamp", "t")
	require.NoError(t, err)

	out, err := run(t, open, "verify")
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 entries verified\n", out)

	out, err = run(t, open, "log", "--after", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "R2")
	assert.Contains(t, lines[1], "approved")
}

func TestInvoke(t *testing.T) {
	env := newTestEnv()
	open := env.opener(false)

	out, err := run(t, open, "invoke", "initLedger")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, open, "invoke", "getReviewHistory", "R9")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	_, err = run(t, open, "invoke", "dropLedger")
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrUnknownFunction)
	assert.Contains(t, err.Error(), "recordReview")
}

func TestCredentials(t *testing.T) {
	env := newTestEnv()
	open := env.opener(true)
	global := model.CredentialKey{Service: "github"}
	scoped := model.CredentialKey{Service: "github", Scope: "acme/widgets"}

	out, err := run(t, open, "credentials", "set", "github", "ghp_abcdefghijkl")
	require.NoError(t, err)
	assert.Equal(t, "stored credential github\n", out)
	assert.Equal(t, "ghp_abcdefghijkl", env.creds.values[global])

	out, err = run(t, open, "credentials", "set", "github", "ghp_widgets_wxyz", "--repo", "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "stored credential github:acme/widgets\n", out)
	assert.Equal(t, "ghp_widgets_wxyz", env.creds.values[scoped])

	out, err = run(t, open, "credentials", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "REPO")
	assert.Contains(t, out, "****ijkl")
	assert.Contains(t, out, "acme/widgets")
	assert.Contains(t, out, "****wxyz")
	assert.NotContains(t, out, "ghp_abcdefghijkl")

	_, err = run(t, open, "credentials", "delete", "github", "--repo", "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, map[model.CredentialKey]string{global: "ghp_abcdefghijkl"}, env.creds.values)

	_, err = run(t, open, "credentials", "delete", "github")
	require.NoError(t, err)
	assert.Empty(t, env.creds.values)
}

func TestCredentials_InvalidRepo(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(true), "credentials", "set", "github", "ghp_x", "--repo", "widgets")

	assert.ErrorIs(t, err, model.ErrInvalidField)
	assert.Empty(t, env.creds.values)
}

func TestCredentials_Unsupported(t *testing.T) {
	env := newTestEnv()

	_, err := run(t, env.opener(false), "credentials", "set", "github", "ghp_x")

	assert.ErrorIs(t, err, bootstrap.ErrCredentialsUnsupported)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****6789", maskSecret("0123456789"))
}
