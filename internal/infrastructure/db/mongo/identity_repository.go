package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	usersCollection   = "users"
	clientsCollection = "clients"
)

// IdentityRepository reads users and CPF clients. The auth service never writes them.
type IdentityRepository struct {
	users   *mongo.Collection
	clients *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		users:   db.Collection(usersCollection),
		clients: db.Collection(clientsCollection),
	}
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	Role         string             `bson:"role"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	ClientID     string             `bson:"client_id,omitempty"`
	EmployeeID   string             `bson:"employee_id,omitempty"`
	Active       bool               `bson:"active"`
}

type mongoClient struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	CPF    string             `bson:"cpf"`
	Name   string             `bson:"name"`
	UserID string             `bson:"user_id,omitempty"`
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findUser(ctx, bson.M{"email": email})
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findUser(ctx, bson.M{"_id": oid})
}

func (r *IdentityRepository) FindLinkedUser(ctx context.Context, clientOrEmployeeID string) (*domain.Identity, error) {
	return r.findUser(ctx, bson.M{
		"active": true,
		"$or": bson.A{
			bson.M{"client_id": clientOrEmployeeID},
			bson.M{"employee_id": clientOrEmployeeID},
		},
	})
}

func (r *IdentityRepository) FindClientByCPF(ctx context.Context, cpf string) (*domain.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mc mongoClient
	if err := r.clients.FindOne(ctx, bson.M{"cpf": cpf}).Decode(&mc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCPFNotFound
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	return &domain.Client{
		ID:           mc.ID.Hex(),
		CPF:          mc.CPF,
		Name:         mc.Name,
		LinkedUserID: mc.UserID,
	}, nil
}

func (r *IdentityRepository) findUser(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (mu *mongoUser) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:           mu.ID.Hex(),
		Email:        mu.Email,
		DisplayName:  mu.Name,
		Role:         mu.Role,
		ClientRef:    mu.ClientID,
		EmployeeRef:  mu.EmployeeID,
		PasswordHash: mu.PasswordHash,
		Active:       mu.Active,
	}
}

// EnsureIndexes creates the lookup indexes used by the auth flows.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	if _, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "employee_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if _, err := r.clients.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "cpf", Value: 1}}}); err != nil {
		return fmt.Errorf("clients indexes: %w", err)
	}
	return nil
}
