package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/resumescan/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Store = (*FirestoreStore)(nil)
var _ Watcher = (*FirestoreStore)(nil)

// ClientContextDoc is the Firestore document holding one client context's keys
type ClientContextDoc struct {
	Values    map[string]string `firestore:"values"`
	UpdatedAt time.Time         `firestore:"updated_at"`
}

// FirestoreStore keeps a client context's keys in a single Firestore document so
// several devices or processes can share one signed-in session.
//
// Reads and writes both return errors. Unlike a browser's local storage the
// substrate can be unreachable, and the session layer decides what to do.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	contextID  string
}

// NewFirestoreStore connects to Firestore and binds the store to one document
func NewFirestoreStore(ctx context.Context, projectID, database, collection, contextID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if contextID == "" {
		return nil, fmt.Errorf("contextID is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return NewFirestoreStoreWithClient(client, collection, contextID), nil
}

// NewFirestoreStoreWithClient wraps an existing client, e.g. one pointed at the emulator
func NewFirestoreStoreWithClient(client *firestore.Client, collection, contextID string) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: collection,
		contextID:  contextID,
	}
}

func (s *FirestoreStore) doc() *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(s.contextID)
}

func (s *FirestoreStore) Get(ctx context.Context, key Key) (string, error) {
	snap, err := s.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get client context from Firestore: %w", err)
	}

	var doc ClientContextDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("failed to unmarshal client context: %w", err)
	}
	v, ok := doc.Values[string(key)]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key Key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data := map[string]any{
		"values":     map[string]any{string(key): value},
		"updated_at": time.Now(),
	}
	if _, err := s.doc().Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to store %s in Firestore: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Remove(ctx context.Context, key Key) error {
	_, err := s.doc().Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"values", string(key)}, Value: firestore.Delete},
		{Path: "updated_at", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete %s from Firestore: %w", key, err)
	}
	return nil
}

// Watch streams changes to the client context document from Firestore snapshots
func (s *FirestoreStore) Watch(ctx context.Context) (<-chan Change, error) {
	iter := s.doc().Snapshots(ctx)
	out := make(chan Change, 16)

	go func() {
		defer close(out)
		defer iter.Stop()

		var last map[Key]string
		for {
			snap, err := iter.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || ctx.Err() != nil || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
					return
				}
				log.LogErrorWithFields("storage", "Firestore snapshot listener stopped", map[string]any{
					"context_id": s.contextID,
					"error":      err.Error(),
				})
				return
			}

			current := make(map[Key]string)
			if snap.Exists() {
				var doc ClientContextDoc
				if err := snap.DataTo(&doc); err != nil {
					log.LogWarnWithFields("storage", "Failed to decode client context snapshot", map[string]any{
						"context_id": s.contextID,
						"error":      err.Error(),
					})
					continue
				}
				for k, v := range doc.Values {
					current[Key(k)] = v
				}
			}

			if last != nil {
				for _, c := range diff(last, current) {
					select {
					case out <- c:
					case <-ctx.Done():
						return
					}
				}
			}
			last = current
		}
	}()

	return out, nil
}

// Close releases the Firestore client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
