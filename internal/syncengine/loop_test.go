package syncengine

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/journal"
	"github.com/opensync/syftsync/internal/permspec"
	"github.com/opensync/syftsync/internal/status"
	"github.com/opensync/syftsync/internal/syncaction"
	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoopClient struct {
	syncclient.Client
	remote   []syncclient.RemoteFile
	content  map[string]string
	bulkZip  []byte
	bulkErr  error
	deleted  []string
}

func (f *fakeLoopClient) GetRemoteState(ctx context.Context, datasite string) ([]syncclient.RemoteFile, error) {
	return f.remote, nil
}

func (f *fakeLoopClient) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewBufferString(f.content[path])), nil
}

func (f *fakeLoopClient) DownloadBulk(ctx context.Context, paths []string) (io.ReadCloser, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return io.NopCloser(bytes.NewReader(f.bulkZip)), nil
}

func (f *fakeLoopClient) Delete(ctx context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestLoop(t *testing.T, root string, client syncclient.Client) (*Loop, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	ignore := syncignore.New(root)
	ignore.Load()

	tree := acltree.NewTree()
	tree.AddFile(permspec.NewFile("", permspec.NewRule("**", permspec.Everyone, permspec.Read, permspec.Write)))

	loop := NewLoop(root, "alice@example.com", "alice@example.com", client, tree, j, status.New(), ignore, nil, 1<<20, 2)
	return loop, j
}

func TestLoop_RunCycle_BootstrapsFreshClonViaBulkDownload(t *testing.T) {
	root := t.TempDir()
	zipBytes := buildZip(t, map[string]string{"a.txt": "hello", "b.txt": "world"})

	client := &fakeLoopClient{
		remote: []syncclient.RemoteFile{
			{Path: "a.txt", Hash: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", FileSize: 5},
			{Path: "b.txt", Hash: "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7", FileSize: 5},
		},
		bulkZip: zipBytes,
	}
	loop, j := newTestLoop(t, root, client)

	require.NoError(t, loop.RunCycle(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	meta, action, err := j.Get("a.txt")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, syncaction.CreateLocal, action)
	assert.NotEmpty(t, meta.Hash)
}

func TestLoop_RunCycle_FallsBackToPerFileWhenBulkFails(t *testing.T) {
	root := t.TempDir()
	client := &fakeLoopClient{
		remote: []syncclient.RemoteFile{
			{Path: "a.txt", Hash: "h1", FileSize: 5},
		},
		content: map[string]string{"a.txt": "hello"},
		bulkErr: assertErr,
	}
	loop, _ := newTestLoop(t, root, client)

	require.NoError(t, loop.RunCycle(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestJobRunner_RunsJobImmediatelyAndOnTick(t *testing.T) {
	calls := make(chan struct{}, 10)
	job := Job{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		Run:      func(ctx context.Context) { calls <- struct{}{} },
	}
	runner := NewJobRunner(job)

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("expected immediate run")
	}
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("expected a ticked run")
	}

	cancel()
	runner.Wait()
}

var assertErr = errAssert{}

type errAssert struct{}

func (errAssert) Error() string { return "bulk download unavailable" }
