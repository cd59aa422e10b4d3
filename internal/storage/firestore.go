package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/idp"
	"github.com/dgellow/gsession/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage stores one document per session in a collection.
//
// Tokens are encrypted before being written. Firestore has no per-document
// TTL unless a TTL policy is configured on expires_at, so Get filters expired
// documents and CleanupExpiredSessions sweeps them.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
	now        func() time.Time
}

// Ensure FirestoreStorage implements Store
var _ Store = (*FirestoreStorage)(nil)

// SessionDoc represents a session document in Firestore
type SessionDoc struct {
	State        string    `firestore:"state"`
	AuthURL      string    `firestore:"auth_url"`
	AccessToken  string    `firestore:"access_token,omitempty"`  // encrypted
	RefreshToken string    `firestore:"refresh_token,omitempty"` // encrypted
	IDToken      string    `firestore:"id_token,omitempty"`      // encrypted
	IDInfo       string    `firestore:"id_info,omitempty"`       // JSON claims
	CreatedAt    time.Time `firestore:"created_at"`
	CompletedAt  time.Time `firestore:"completed_at"`
	ExpiresAt    time.Time `firestore:"expires_at"`
}

func toSessionDoc(session *Session, encryptor crypto.Encryptor) (*SessionDoc, error) {
	sealed, err := sealTokens(session, encryptor)
	if err != nil {
		return nil, err
	}

	doc := &SessionDoc{
		State:        sealed.State,
		AuthURL:      sealed.AuthURL,
		AccessToken:  sealed.AccessToken,
		RefreshToken: sealed.RefreshToken,
		IDToken:      sealed.IDToken,
		CreatedAt:    sealed.CreatedAt,
		CompletedAt:  sealed.CompletedAt,
		ExpiresAt:    sealed.ExpiresAt,
	}
	if sealed.IDInfo != nil {
		info, err := json.Marshal(sealed.IDInfo)
		if err != nil {
			return nil, fmt.Errorf("encoding id info: %w", err)
		}
		doc.IDInfo = string(info)
	}
	return doc, nil
}

func (d *SessionDoc) toSession(encryptor crypto.Encryptor) (*Session, error) {
	session := &Session{
		State:        d.State,
		AuthURL:      d.AuthURL,
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		IDToken:      d.IDToken,
		CreatedAt:    d.CreatedAt,
		CompletedAt:  d.CompletedAt,
		ExpiresAt:    d.ExpiresAt,
	}
	if d.IDInfo != "" {
		var claims idp.Claims
		if err := json.Unmarshal([]byte(d.IDInfo), &claims); err != nil {
			return nil, fmt.Errorf("decoding id info: %w", err)
		}
		session.IDInfo = &claims
	}
	if err := openTokens(session, encryptor); err != nil {
		return nil, err
	}
	return session, nil
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
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

	return &FirestoreStorage{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
		now:        time.Now,
	}, nil
}

// Get loads the session document for state
func (s *FirestoreStorage) Get(ctx context.Context, state string) (*Session, error) {
	snap, err := s.client.Collection(s.collection).Doc(state).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from Firestore: %w", err)
	}

	var doc SessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session, err := doc.toSession(s.encryptor)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Put writes the session document, replacing any previous version
func (s *FirestoreStorage) Put(ctx context.Context, session *Session) error {
	if session == nil || session.State == "" {
		return fmt.Errorf("session state cannot be empty")
	}

	doc, err := toSessionDoc(session, s.encryptor)
	if err != nil {
		return err
	}

	if _, err := s.client.Collection(s.collection).Doc(session.State).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store session in Firestore: %w", err)
	}
	return nil
}

// Delete removes the session document; missing documents are ignored
func (s *FirestoreStorage) Delete(ctx context.Context, state string) error {
	if _, err := s.client.Collection(s.collection).Doc(state).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete session from Firestore: %w", err)
	}
	return nil
}

// CleanupExpiredSessions deletes documents whose expires_at has passed
func (s *FirestoreStorage) CleanupExpiredSessions(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", "<=", s.now()).
		Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("error iterating expired sessions: %w", err)
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queueing delete for %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	removed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			log.LogWarnWithFields("storage", "Failed to delete expired session", map[string]any{
				"error": err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
