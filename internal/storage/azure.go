package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/starford/othala/internal/apperr"
)

// azureClient is the narrow blob surface the adapter calls. The real
// implementation wraps the azblob SDK; tests install a fake. Absent keys
// come back as apperr.ErrNotFound already translated.
type azureClient interface {
	Ping(ctx context.Context) error
	ListHierarchy(ctx context.Context, prefix string) (prefixes, blobs []string, err error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Azure implements Tree on an Azure Blob Storage container. As with S3,
// tree containers are implicit key prefixes.
type Azure struct {
	client azureClient
}

// NewAzure connects with a connection string and verifies the blob
// container is reachable. Container provisioning is a deployment concern.
func NewAzure(ctx context.Context, connectionString, containerName string) (*Azure, error) {
	svc, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: azure client: %w: %v", apperr.ErrBackendUnavailable, err)
	}
	return newAzure(ctx, &azblobClient{svc: svc, container: containerName})
}

func newAzure(ctx context.Context, client azureClient) (*Azure, error) {
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage: azure container: %w: %v", apperr.ErrBackendUnavailable, err)
	}
	return &Azure{client: client}, nil
}

// List enumerates dir with a "/" delimiter query: blob prefixes come back
// as containers, blobs as leaves.
func (t *Azure) List(ctx context.Context, dir string) ([]Entry, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	prefixes, blobs, err := t.client.ListHierarchy(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(prefixes)+len(blobs))
	for _, p := range prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if name != "" {
			entries = append(entries, Entry{Name: name, Kind: KindContainer})
		}
	}
	for _, b := range blobs {
		name := strings.TrimPrefix(b, prefix)
		if name != "" {
			entries = append(entries, Entry{Name: name, Kind: KindLeaf})
		}
	}
	return entries, nil
}

// Exists reports whether a blob exists at path.
func (t *Azure) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := t.client.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("storage: head %s: %w", path, err)
	}
	return ok, nil
}

// OpenRead streams the blob at path.
func (t *Azure) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := t.client.Download(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", path, err)
	}
	return rc, nil
}

// Write replaces the blob at path.
func (t *Azure) Write(ctx context.Context, path string, data []byte) error {
	if err := t.client.Upload(ctx, path, data); err != nil {
		return fmt.Errorf("storage: put %s: %w", path, err)
	}
	return nil
}

// EnsureDir is a no-op: prefixes exist exactly as long as blobs under them
// do.
func (t *Azure) EnsureDir(ctx context.Context, path string) error { return nil }

// DeleteIfExists removes the blob at path, treating absence as success.
// Container deletion has nothing to remove.
func (t *Azure) DeleteIfExists(ctx context.Context, path string, kind Kind) error {
	if kind == KindContainer {
		return nil
	}
	if err := t.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no exclusive resources.
func (t *Azure) Close() error { return nil }

// azblobClient is the production azureClient.
type azblobClient struct {
	svc       *azblob.Client
	container string
}

func (c *azblobClient) Ping(ctx context.Context) error {
	_, err := c.svc.ServiceClient().NewContainerClient(c.container).GetProperties(ctx, nil)
	return err
}

func (c *azblobClient) ListHierarchy(ctx context.Context, prefix string) ([]string, []string, error) {
	pager := c.svc.ServiceClient().NewContainerClient(c.container).
		NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{Prefix: &prefix})
	var prefixes, blobs []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				prefixes = append(prefixes, *p.Name)
			}
		}
		for _, b := range page.Segment.BlobItems {
			if b.Name != nil {
				blobs = append(blobs, *b.Name)
			}
		}
	}
	return prefixes, blobs, nil
}

func (c *azblobClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.svc.DownloadStream(ctx, c.container, key, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

func (c *azblobClient) Upload(ctx context.Context, key string, data []byte) error {
	_, err := c.svc.UploadBuffer(ctx, c.container, key, data, nil)
	return err
}

func (c *azblobClient) Delete(ctx context.Context, key string) error {
	_, err := c.svc.DeleteBlob(ctx, c.container, key, nil)
	if err != nil && !isAzureNotFound(err) {
		return err
	}
	return nil
}

func (c *azblobClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.svc.ServiceClient().NewContainerClient(c.container).
		NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isAzureNotFound matches the 404 the service returns for missing blobs
// and containers.
func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
