package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const refreshTokensCollection = "refresh_tokens"

// RefreshTokenRepository stores refresh tokens keyed by their SHA-256 digest;
// the raw token never reaches the database.
type RefreshTokenRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{col: db.Collection(refreshTokensCollection), now: time.Now}
}

var _ ports.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

type mongoRefreshToken struct {
	Digest    string    `bson:"_id"`
	SubjectID string    `bson:"subject_id"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toRefreshDoc(rec *domain.RefreshTokenRecord) mongoRefreshToken {
	return mongoRefreshToken{
		Digest:    digest(rec.Token),
		SubjectID: rec.SubjectID,
		IssuedAt:  rec.IssuedAt.UTC(),
		ExpiresAt: rec.ExpiresAt.UTC(),
	}
}

// validFilter matches token only while it is unexpired.
func (r *RefreshTokenRepository) validFilter(token string) bson.M {
	return bson.M{
		"_id":        digest(token),
		"expires_at": bson.M{"$gt": r.now().UTC()},
	}
}

func (r *RefreshTokenRepository) Save(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toRefreshDoc(rec)); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindValid(ctx context.Context, token string) (*domain.RefreshTokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoRefreshToken
	if err := r.col.FindOne(ctx, r.validFilter(token)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &domain.RefreshTokenRecord{
		Token:     token,
		SubjectID: doc.SubjectID,
		IssuedAt:  doc.IssuedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": digest(token)}); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteAllFor(ctx context.Context, subjectID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{"subject_id": subjectID}); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	return nil
}

// Rotate claims oldToken with a single FindOneAndDelete. The server applies it
// atomically, so among concurrent rotations of the same token only one finds
// the document; the rest get ErrInvalidRefreshToken.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *domain.RefreshTokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := r.col.FindOneAndDelete(ctx, r.validFilter(oldToken), options.FindOneAndDelete().SetProjection(bson.M{"_id": 1})).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrInvalidRefreshToken
		}
		return fmt.Errorf("consume refresh token: %w", err)
	}

	if _, err := r.col.InsertOne(ctx, toRefreshDoc(next)); err != nil {
		return fmt.Errorf("insert rotated refresh token: %w", err)
	}
	return nil
}

// EnsureIndexes adds the subject index and a TTL index so expired tokens are
// removed by the server.
func (r *RefreshTokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "subject_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return err
}
