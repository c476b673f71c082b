package syncengine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/journal"
	"github.com/opensync/syftsync/internal/permspec"
	"github.com/opensync/syftsync/internal/status"
	"github.com/opensync/syftsync/internal/syncaction"
	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecClient struct {
	syncclient.Client
	downloadContent string
	downloadErr     error
	uploadErr       error
	deleteErr       error
	uploadedPath    string
}

func (f *fakeExecClient) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(bytes.NewBufferString(f.downloadContent)), nil
}

func (f *fakeExecClient) Upload(ctx context.Context, path string, content io.Reader, sig syncmeta.RollingSignature) (*syncmeta.FileMetadata, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploadedPath = path
	data, _ := io.ReadAll(content)
	return &syncmeta.FileMetadata{Path: path, Hash: "h", FileSize: int64(len(data))}, nil
}

func (f *fakeExecClient) Delete(ctx context.Context, path string) error {
	return f.deleteErr
}

func openTreeEveryonePerms(t *testing.T) *acltree.Tree {
	t.Helper()
	tree := acltree.NewTree()
	tree.AddFile(permspec.NewFile("", permspec.NewRule("**", permspec.Everyone, permspec.Read, permspec.Write)))
	return tree
}

func newTestConsumer(t *testing.T, root string, client syncclient.Client) (*Consumer, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	tracker := status.New()
	tree := openTreeEveryonePerms(t)
	return NewConsumer(root, "alice@example.com", "alice@example.com", client, tree, j, tracker, nil, 1<<20), j
}

func TestConsumer_Execute_Noop_IsSuccessWithoutSideEffects(t *testing.T) {
	root := t.TempDir()
	c, _ := newTestConsumer(t, root, &fakeExecClient{})

	outcome := c.Execute(context.Background(), syncaction.Action{Path: "a.txt", Kind: syncaction.NOOP})
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestConsumer_Execute_CreateLocal_WritesFileAndJournal(t *testing.T) {
	root := t.TempDir()
	client := &fakeExecClient{downloadContent: "hello world"}
	c, j := newTestConsumer(t, root, client)

	action := syncaction.Determine("a.txt", nil, nil, &syncmeta.FileMetadata{Path: "a.txt", Hash: "x"})
	outcome := c.Execute(context.Background(), action)
	require.Equal(t, OutcomeSuccess, outcome)

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	meta, _, err := j.Get("a.txt")
	require.NoError(t, err)
	require.NotNil(t, meta)
}

func TestConsumer_Execute_DeleteLocal_RemovesFileAndJournalEntry(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	c, j := newTestConsumer(t, root, &fakeExecClient{})
	require.NoError(t, j.Set(&syncmeta.FileMetadata{Path: "a.txt", Hash: "x"}, syncaction.CreateLocal))

	outcome := c.Execute(context.Background(), syncaction.Action{Path: "a.txt", Kind: syncaction.DeleteLocal, Reversal: syncaction.ReversalRedownload})
	require.Equal(t, OutcomeSuccess, outcome)

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	meta, _, err := j.Get("a.txt")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestConsumer_Execute_CreateRemote_UploadsFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("payload"), 0o644))

	client := &fakeExecClient{}
	c, _ := newTestConsumer(t, root, client)

	local, err := syncmeta.HashFile(target, root)
	require.NoError(t, err)

	action := syncaction.Action{Path: "a.txt", Kind: syncaction.CreateRemote, Local: local, Reversal: syncaction.ReversalDeleteOrRestoreLocal}
	outcome := c.Execute(context.Background(), action)
	require.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, "a.txt", client.uploadedPath)
}

func TestConsumer_Execute_UploadExceedsSizeLimit_IsInvalid(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("payload"), 0o644))

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	tree := openTreeEveryonePerms(t)
	c := NewConsumer(root, "alice@example.com", "alice@example.com", &fakeExecClient{}, tree, j, status.New(), nil, 1)

	local, err := syncmeta.HashFile(target, root)
	require.NoError(t, err)

	action := syncaction.Action{Path: "a.txt", Kind: syncaction.CreateRemote, Local: local, Reversal: syncaction.ReversalDeleteOrRestoreLocal}
	outcome := c.Execute(context.Background(), action)
	assert.Equal(t, OutcomeInvalid, outcome)
}

func TestConsumer_Execute_PermissionRejection_MarksConflict(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("payload"), 0o644))

	client := &fakeExecClient{uploadErr: errors.Join(syncclient.ErrPermission, errors.New("403"))}
	c, _ := newTestConsumer(t, root, client)

	local, err := syncmeta.HashFile(target, root)
	require.NoError(t, err)
	previous := &syncmeta.FileMetadata{Path: "a.txt", Hash: "old"}

	action := syncaction.Action{Path: "a.txt", Kind: syncaction.ModifyRemote, Local: local, Previous: previous, Reversal: syncaction.ReversalDeleteOrRestoreLocal}
	outcome := c.Execute(context.Background(), action)
	assert.Equal(t, OutcomeRejected, outcome)

	marked := GetMarkers(target)
	_ = marked
	conflictPath := asMarkedPath(target, Conflict)
	_, statErr := os.Stat(conflictPath)
	assert.NoError(t, statErr)
}

func TestConsumer_Execute_NoPermission_SkipsAction(t *testing.T) {
	root := t.TempDir()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	tree := acltree.NewTree() // no rules granted at all
	c := NewConsumer(root, "bob@example.com", "mallory@example.com", &fakeExecClient{}, tree, j, status.New(), nil, 1<<20)

	outcome := c.Execute(context.Background(), syncaction.Action{Path: "a.txt", Kind: syncaction.CreateRemote})
	assert.Equal(t, OutcomeSuccess, outcome)
}
