package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/artifact"
	"github.com/lunara/reportmesh/core"
)

var _ core.ArtifactStore = (*Store)(nil)

type object struct {
	data     []byte
	mimeType string
	modified time.Time
}

// fakeClient is an in-memory bucket. Listing pages by pageSize to exercise
// continuation handling.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string]object
	clock    time.Time
	pageSize int
	listErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]object{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), pageSize: 2}
}

func (f *fakeClient) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.clock = f.clock.Add(time.Second)
	f.objects[aws.ToString(in.Key)] = object{data: data, mimeType: aws.ToString(in.ContentType), modified: f.clock}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), ContentType: aws.String(obj.mimeType)}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := start + f.pageSize
	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), LastModified: aws.Time(obj.modified)})
	}
	return out, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

var key = core.SessionKey{AppName: "lunara_report_builder", UserID: "u1", SessionID: "report_u1_1"}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewWithClient(client, "bucket", "/artifacts/")

	require.NoError(t, store.Save(ctx, key, core.Artifact{Name: "chart_1.png", Data: []byte("png")}))
	_, ok := client.objects["artifacts/lunara_report_builder/u1/report_u1_1/chart_1.png"]
	assert.True(t, ok)

	a, err := store.Load(ctx, key, "chart_1.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, []byte("png"), a.Data)

	_, err = store.Load(ctx, key, "missing.png")
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
}

func TestStore_ListKeysPagesAndOrdersByUploadTime(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewWithClient(client, "bucket", "")

	for _, n := range []string{"z.png", "a.png", "m.png"} {
		require.NoError(t, store.Save(ctx, key, core.Artifact{Name: n, Data: []byte(n)}))
	}

	other := key
	other.SessionID = "report_u1_2"
	require.NoError(t, store.Save(ctx, other, core.Artifact{Name: "b.png"}))

	names, err := store.ListKeys(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"z.png", "a.png", "m.png"}, names)

	require.NoError(t, store.Delete(ctx, key, "a.png"))
	names, err = store.ListKeys(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"z.png", "m.png"}, names)
}

func TestStore_ListKeysError(t *testing.T) {
	client := newFakeClient()
	client.listErr = errors.New("throttled")
	store := NewWithClient(client, "bucket", "")

	_, err := store.ListKeys(context.Background(), key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
