package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const publicObjectPath = "/storage/v1/object/public/"

// NewClient connects to MongoDB and pings it
func NewClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		// Connect does not dial; an error here is a bad URI
		return nil, retry.Permanent(fmt.Errorf("failed to connect to mongo: %w", err))
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// Store implements domain.ObjectStore with one GridFS bucket per storage bucket
type Store struct {
	db      *mongo.Database
	baseURL string
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewStore creates an object store. baseURL is the public backend URL that
// object URLs are built on.
func NewStore(db *mongo.Database, baseURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:             "object_store",
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, gridfs.ErrFileNotFound)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.ObserveBreakerState(name, int(to))
			logger.Warn("object store breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Store{
		db:      db,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: breaker,
		logger:  logger,
	}
}

// Upload stores data at path in bucket and returns the stored path
func (s *Store) Upload(ctx context.Context, bucketName, path string, data io.Reader, contentType string) (string, error) {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		bucket, err := s.bucket(bucketName)
		if err != nil {
			return err
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := bucket.SetWriteDeadline(deadline); err != nil {
				return err
			}
		}

		opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
		_, err = bucket.UploadFromStream(path, data, opts)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucketName, path, err)
	}

	s.logger.Debug("object uploaded",
		slog.String("bucket", bucketName),
		slog.String("path", path),
	)
	return path, nil
}

// Open returns a reader for the newest object stored at path and its content type
func (s *Store) Open(ctx context.Context, bucketName, path string) (io.ReadCloser, string, error) {
	var stream *gridfs.DownloadStream
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		bucket, err := s.bucket(bucketName)
		if err != nil {
			return err
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := bucket.SetReadDeadline(deadline); err != nil {
				return err
			}
		}
		stream, err = bucket.OpenDownloadStreamByName(path)
		return err
	})
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open %s/%s: %w", bucketName, path, err)
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok && v != "" {
			contentType = v
		}
	}
	return stream, contentType, nil
}

// PublicURL builds the externally reachable URL of an object
func (s *Store) PublicURL(bucketName, path string) string {
	return PublicURL(s.baseURL, bucketName, path)
}

// StoredObject is one object as listed by ListOlderThan
type StoredObject struct {
	Path       string
	UploadedAt time.Time
}

type gridFile struct {
	ID         any       `bson:"_id"`
	Name       string    `bson:"filename"`
	UploadDate time.Time `bson:"uploadDate"`
}

// ListOlderThan lists objects in bucket uploaded before cutoff, oldest first
func (s *Store) ListOlderThan(ctx context.Context, bucketName string, cutoff time.Time) ([]StoredObject, error) {
	files, err := s.find(ctx, bucketName, bson.M{"uploadDate": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	objects := make([]StoredObject, 0, len(files))
	for _, f := range files {
		objects = append(objects, StoredObject{Path: f.Name, UploadedAt: f.UploadDate})
	}
	return objects, nil
}

// Delete removes every revision stored at path. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucketName, path string) error {
	files, err := s.find(ctx, bucketName, bson.M{"filename": path})
	if err != nil {
		return err
	}

	bucket, err := s.bucket(bucketName)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	for _, f := range files {
		if err := bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete %s/%s: %w", bucketName, path, err)
		}
	}
	return nil
}

func (s *Store) find(ctx context.Context, bucketName string, filter bson.M) ([]gridFile, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}

	cursor, err := bucket.Find(filter, options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", bucketName, err)
	}
	var files []gridFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode %s listing: %w", bucketName, err)
	}
	return files, nil
}

func (s *Store) bucket(name string) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", name, err)
	}
	return bucket, nil
}

// PublicURL is {baseURL}/storage/v1/object/public/{bucket}/{path} with each
// path segment escaped
func PublicURL(baseURL, bucketName, path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + publicObjectPath + url.PathEscape(bucketName) + "/" + strings.Join(segments, "/")
}
