package massifs

import (
	"context"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/google/uuid"
)

// blobStore is the subset of the datatrails azblob client used by the
// object store: read a blob by path, write a blob by path, list blobs
// under a prefix to find the head of a log.
type blobStore interface {
	azblob.Reader
	Put(ctx context.Context, identity string, body io.ReadCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	List(ctx context.Context, opts ...azblob.Option) (*azblob.ListerResponse, error)
}

// ObjectStore resolves and publishes massif and checkpoint blobs for a log,
// keyed by the conventions in storage.go.
type ObjectStore struct {
	store blobStore
}

// NewObjectStore constructs an ObjectStore over an Azure Blob Storage
// container reached through the datatrails azblob client.
func NewObjectStore(store blobStore) *ObjectStore {
	return &ObjectStore{store: store}
}

// MassifData reads the raw bytes of the massif blob holding massifIndex.
func (s *ObjectStore) MassifData(ctx context.Context, massifHeight uint8, logID uuid.UUID, massifIndex uint32) ([]byte, error) {
	return s.read(ctx, MassifObjectKey(massifHeight, logID, massifIndex))
}

// CheckpointData reads the raw bytes of the checkpoint blob for massifIndex.
func (s *ObjectStore) CheckpointData(ctx context.Context, massifHeight uint8, logID uuid.UUID, massifIndex uint32) ([]byte, error) {
	return s.read(ctx, CheckpointObjectKey(massifHeight, logID, massifIndex))
}

func (s *ObjectStore) read(ctx context.Context, key string) ([]byte, error) {
	rr, err := s.store.Reader(ctx, key)
	if err != nil {
		return nil, err
	}
	if rr.Body == nil {
		return nil, nil
	}
	defer rr.Body.Close()
	return io.ReadAll(rr.Body)
}

// PutMassifData publishes the massif blob holding massifIndex. failIfExists
// guards creation of a new massif against a racing writer; updates to the
// still-open (last) massif go through without that guard, matching the
// append-in-place nature of the log data region.
func (s *ObjectStore) PutMassifData(ctx context.Context, massifHeight uint8, logID uuid.UUID, massifIndex uint32, data []byte, failIfExists bool) error {
	opts := []azblob.Option{}
	if failIfExists {
		opts = append(opts, azblob.WithEtagNoneMatch("*"))
	}
	_, err := s.store.Put(ctx, MassifObjectKey(massifHeight, logID, massifIndex), azblob.NewBytesReaderCloser(data), opts...)
	return err
}

// PutCheckpointData publishes the checkpoint blob closing massifIndex.
// Checkpoints are written once and never amended, so creation always fails
// if the blob is already present.
func (s *ObjectStore) PutCheckpointData(ctx context.Context, massifHeight uint8, logID uuid.UUID, massifIndex uint32, data []byte) error {
	_, err := s.store.Put(ctx, CheckpointObjectKey(massifHeight, logID, massifIndex), azblob.NewBytesReaderCloser(data), azblob.WithEtagNoneMatch("*"))
	return err
}

// HeadMassifIndex finds the most recently created massif for a log by
// listing under its object prefix and taking the highest indexed name.
func (s *ObjectStore) HeadMassifIndex(ctx context.Context, massifHeight uint8, logID uuid.UUID) (uint32, bool, error) {
	prefix := massifPrefix(massifHeight, logID)
	listing, err := s.store.List(ctx, azblob.WithListPrefix(prefix))
	if err != nil {
		return 0, false, err
	}
	return latestMassifIndex(listing.Names)
}
