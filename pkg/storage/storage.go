// Package storage keeps write-once blobs in an Azure Blob Storage container.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/geogov/pkg/lifecycle"
)

// Object describes a stored blob.
type Object struct {
	ContentType string
	// Metadata keys must be valid C# identifiers; the service lowercases them.
	Metadata map[string]string
}

// System stores immutable blobs. A key, once written, is never replaced.
type System interface {
	// Start registers the container bootstrap and the readiness probe.
	Start(lc *lifecycle.Coordinator) error
	// Put writes body under key. It returns ErrExists if key is taken.
	Put(ctx context.Context, key string, body io.Reader, obj Object) error
	// Get opens the blob at key along with its description. The caller
	// closes the reader. A missing blob is ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New builds a System from cfg. No request is made until Start's hook runs.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func dial(cfg *Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}
	if cfg.ServiceURL == "" {
		return nil, ErrNotConfigured
	}
	var cred azcore.TokenCredential
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default credential: %w", err)
	}
	return azblob.NewClient(cfg.ServiceURL, cred, nil)
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	containerClient := a.client.ServiceClient().NewContainerClient(a.container)

	lc.OnStartup("storage", func(ctx context.Context) error {
		_, err := containerClient.Create(ctx, nil)
		switch {
		case err == nil:
			a.logger.Info("storage container created")
		case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
			a.logger.Debug("storage container present")
		default:
			return fmt.Errorf("create container %s: %w", a.container, err)
		}
		return nil
	})

	lc.Probe("storage", func(ctx context.Context) error {
		_, err := containerClient.GetProperties(ctx, nil)
		return err
	})

	return nil
}

func (a *azure) Put(ctx context.Context, key string, body io.Reader, obj Object) error {
	if err := checkKey(key); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(obj.ContentType)},
		Metadata:    toPtrMap(obj.Metadata),
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	}

	if _, err := a.client.UploadStream(ctx, a.container, key, body, opts); err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("put %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "blob written", "key", key, "content_type", obj.ContentType)
	return nil
}

func (a *azure) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	if err := checkKey(key); err != nil {
		return nil, Object{}, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, Object{}, fmt.Errorf("get %s: %w", key, err)
	}

	obj := Object{Metadata: fromPtrMap(resp.Metadata)}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	return resp.Body, obj, nil
}

// checkKey rejects empty keys and keys with a ".." segment.
func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

func toPtrMap(m map[string]string) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}

func fromPtrMap(m map[string]*string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[strings.ToLower(k)] = *v
		}
	}
	return out
}
